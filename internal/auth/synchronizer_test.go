package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/state"
	"github.com/hitoshi/scurrysheets/internal/storage"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// --- モック ---

type mockEventSource struct {
	getSessionFn func(ctx context.Context) (*model.Session, error)

	mu        sync.Mutex
	listeners []supabase.AuthStateListener
	subscribe int
	sessions  int
}

func (m *mockEventSource) OnAuthStateChange(fn supabase.AuthStateListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribe++
	m.listeners = append(m.listeners, fn)
	return func() {}
}

func (m *mockEventSource) GetSession(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx)
	}
	return nil, nil
}

func (m *mockEventSource) emit(event supabase.AuthChangeEvent, session *model.Session) {
	m.mu.Lock()
	fns := append([]supabase.AuthStateListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(event, session)
	}
}

type mockProfileSyncer struct {
	appState *state.AppState

	mu      sync.Mutex
	fetched []string
	resets  int
}

func (m *mockProfileSyncer) FetchProfile(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, userID)
	return nil
}

func (m *mockProfileSyncer) Reset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
	m.appState.Profile.Set(nil)
}

func (m *mockProfileSyncer) fetchedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

type mockNavigator struct {
	paths []string
}

func (m *mockNavigator) Goto(path string) {
	m.paths = append(m.paths, path)
}

// --- compile-time interface checks ---
var _ EventSource = (*supabase.AuthClient)(nil)
var _ EventSource = (*mockEventSource)(nil)
var _ ProfileSyncer = (*mockProfileSyncer)(nil)

func newTestSynchronizer(events *mockEventSource) (*Synchronizer, *state.AppState, *mockProfileSyncer, *mockNavigator) {
	appState := state.New(storage.NewMemoryStorage(), nil)
	profiles := &mockProfileSyncer{appState: appState}
	nav := &mockNavigator{}
	return NewSynchronizer(events, profiles, appState, nav, nil), appState, profiles, nav
}

func testSession(userID string) *model.Session {
	return &model.Session{
		AccessToken: "token-" + userID,
		User:        &model.User{ID: userID, Email: userID + "@example.com"},
	}
}

// --- テスト ---

func TestInitialize_WithStartupSession_SetsSessionAndFetchesProfile(t *testing.T) {
	events := &mockEventSource{
		getSessionFn: func(ctx context.Context) (*model.Session, error) {
			return testSession("u-1"), nil
		},
	}
	syncer, appState, profiles, _ := newTestSynchronizer(events)

	syncer.Initialize(context.Background())
	syncer.Wait()

	us := appState.Session.Get()
	if us == nil || us.User.ID != "u-1" {
		t.Fatalf("Session = %+v, want u-1", us)
	}
	if got := profiles.fetchedIDs(); len(got) != 1 || got[0] != "u-1" {
		t.Errorf("FetchProfile 呼び出し = %v, want [u-1]", got)
	}
}

func TestInitialize_NoStartupSession_LeavesStateEmpty(t *testing.T) {
	events := &mockEventSource{}
	syncer, appState, profiles, _ := newTestSynchronizer(events)

	syncer.Initialize(context.Background())
	syncer.Wait()

	if appState.Session.Get() != nil {
		t.Error("セッションがない場合はSessionを設定しない")
	}
	if len(profiles.fetchedIDs()) != 0 {
		t.Error("セッションがない場合はプロフィールを取得しない")
	}
}

func TestInitialize_StartupSessionError_IsSwallowed(t *testing.T) {
	events := &mockEventSource{
		getSessionFn: func(ctx context.Context) (*model.Session, error) {
			return nil, errors.New("network down")
		},
	}
	syncer, appState, _, _ := newTestSynchronizer(events)

	syncer.Initialize(context.Background())

	if appState.Session.Get() != nil {
		t.Error("エラー時はSessionを設定しない")
	}
	if events.subscribe != 1 {
		t.Error("起動時のエラーでも購読は行う")
	}
}

func TestInitialize_RunsOnlyOnce(t *testing.T) {
	events := &mockEventSource{}
	syncer, _, _, _ := newTestSynchronizer(events)

	syncer.Initialize(context.Background())
	syncer.Initialize(context.Background())
	syncer.Initialize(context.Background())

	if events.subscribe != 1 {
		t.Errorf("購読回数 = %d, want 1", events.subscribe)
	}
	if events.sessions != 1 {
		t.Errorf("GetSession 呼び出し回数 = %d, want 1", events.sessions)
	}
}

func TestHandleEvent_SignedInAndTokenRefreshed(t *testing.T) {
	events := &mockEventSource{}
	syncer, appState, profiles, _ := newTestSynchronizer(events)
	syncer.Initialize(context.Background())

	events.emit(supabase.EventSignedIn, testSession("u-1"))
	syncer.Wait()
	events.emit(supabase.EventTokenRefreshed, testSession("u-1"))
	syncer.Wait()

	if us := appState.Session.Get(); us == nil || us.Session.AccessToken != "token-u-1" {
		t.Errorf("Session = %+v", us)
	}
	if got := profiles.fetchedIDs(); len(got) != 2 {
		t.Errorf("FetchProfile 呼び出し = %v, want 2回", got)
	}
}

func TestHandleEvent_SignedOut_ClearsStateAndNavigatesToRoot(t *testing.T) {
	events := &mockEventSource{}
	syncer, appState, profiles, nav := newTestSynchronizer(events)
	syncer.Initialize(context.Background())

	appState.Session.Set(&model.UserSession{User: &model.User{ID: "u-1"}})
	appState.Profile.Set(&model.UserProfile{ID: "u-1"})

	events.emit(supabase.EventSignedOut, nil)

	if appState.Session.Get() != nil {
		t.Error("SIGNED_OUT後のSessionはnilであるべき")
	}
	if appState.Profile.Get() != nil {
		t.Error("SIGNED_OUT後のProfileはnilであるべき")
	}
	if profiles.resets != 1 {
		t.Errorf("Reset 呼び出し回数 = %d, want 1", profiles.resets)
	}
	if len(nav.paths) != 1 || nav.paths[0] != "/" {
		t.Errorf("遷移先 = %v, want [/]", nav.paths)
	}
}

func TestHandleEvent_SignedOutWithoutPriorState(t *testing.T) {
	events := &mockEventSource{}
	syncer, appState, _, nav := newTestSynchronizer(events)
	syncer.Initialize(context.Background())

	events.emit(supabase.EventSignedOut, nil)

	if appState.Session.Get() != nil || appState.Profile.Get() != nil {
		t.Error("状態はnilのままであるべき")
	}
	if len(nav.paths) != 1 || nav.paths[0] != "/" {
		t.Errorf("遷移先 = %v, want [/]", nav.paths)
	}
}

func TestHandleEvent_IgnoresOtherEventsAndEmptyPayload(t *testing.T) {
	events := &mockEventSource{}
	syncer, appState, profiles, nav := newTestSynchronizer(events)
	syncer.Initialize(context.Background())

	events.emit(supabase.EventUserUpdated, testSession("u-1"))
	events.emit(supabase.EventInitialSession, testSession("u-1"))
	events.emit(supabase.EventSignedIn, nil)
	events.emit(supabase.EventSignedIn, &model.Session{AccessToken: "no-user"})
	syncer.Wait()

	if appState.Session.Get() != nil {
		t.Error("対象外のイベントでSessionを変更しない")
	}
	if len(profiles.fetchedIDs()) != 0 {
		t.Error("対象外のイベントでプロフィールを取得しない")
	}
	if len(nav.paths) != 0 {
		t.Error("対象外のイベントで遷移しない")
	}
}
