package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/navigation"
	"github.com/hitoshi/scurrysheets/internal/state"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// EventSource は認証イベントと現在のセッションを提供するインターフェース。
// supabase.AuthClientが実装する。
type EventSource interface {
	OnAuthStateChange(fn supabase.AuthStateListener) (unsubscribe func())
	GetSession(ctx context.Context) (*model.Session, error)
}

// ProfileSyncer はプロフィールの取得と破棄を行うインターフェース。
// user.ProfileServiceが実装する。
type ProfileSyncer interface {
	FetchProfile(ctx context.Context, userID string) error
	Reset()
}

// Navigator はアプリ内の画面遷移を行うインターフェース。
type Navigator interface {
	Goto(path string)
}

// Synchronizer は認証イベントを購読し、SessionとProfileの状態を同期する。
//
//   - SIGNED_IN / TOKEN_REFRESHED: Sessionを設定し、プロフィールを取得する
//   - SIGNED_OUT: SessionとProfileをnilにし、ルートへ遷移する
//
// プロフィール取得はイベント配信を止めないよう別goroutineで行う。
// 重複した取得は合流させず、最後に完了したものが反映される。
type Synchronizer struct {
	events    EventSource
	profiles  ProfileSyncer
	state     *state.AppState
	navigator Navigator
	logger    *slog.Logger

	once sync.Once
	ctx  context.Context
	wg   sync.WaitGroup
}

// NewSynchronizer はSynchronizerを生成する。Initializeを呼ぶまで購読は行わない。
func NewSynchronizer(
	events EventSource,
	profiles ProfileSyncer,
	appState *state.AppState,
	navigator Navigator,
	logger *slog.Logger,
) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		events:    events,
		profiles:  profiles,
		state:     appState,
		navigator: navigator,
		logger:    logger,
	}
}

// Initialize は認証イベントを購読し、起動時のセッションを一度だけ問い合わせる。
// プロセス内で一度だけ実行され、2回目以降の呼び出しは何もしない。
// 購読は解除しない。ctxはプロフィール取得に引き継がれる。
func (s *Synchronizer) Initialize(ctx context.Context) {
	s.once.Do(func() {
		s.ctx = ctx
		s.events.OnAuthStateChange(s.handleEvent)

		session, err := s.events.GetSession(ctx)
		if err != nil {
			s.logger.Error("Error loading initial session", slog.String("error", err.Error()))
			return
		}
		if session == nil {
			s.logger.Debug("no initial session")
			return
		}
		s.signedIn(session)
	})
}

// Wait は実行中のプロフィール取得の完了を待つ。
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

func (s *Synchronizer) handleEvent(event supabase.AuthChangeEvent, session *model.Session) {
	switch event {
	case supabase.EventSignedIn, supabase.EventTokenRefreshed:
		if session == nil {
			return
		}
		s.signedIn(session)
	case supabase.EventSignedOut:
		s.signedOut()
	default:
		s.logger.Debug("ignoring auth event", slog.String("event", string(event)))
	}
}

func (s *Synchronizer) signedIn(session *model.Session) {
	if session.User == nil {
		s.logger.Warn("session without user, skipping profile sync")
		return
	}

	s.state.Session.Set(&model.UserSession{User: session.User, Session: session})

	userID := session.User.ID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// エラーはProfileService側で記録済み
		_ = s.profiles.FetchProfile(s.ctx, userID)
	}()
}

func (s *Synchronizer) signedOut() {
	s.state.Session.Set(nil)
	s.profiles.Reset()
	s.navigator.Goto(navigation.RootPath)
}
