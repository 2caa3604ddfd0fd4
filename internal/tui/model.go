// Package tui はscurrysheetsの端末UIを提供する。
// 画面の内容はAppStateの購読から導出し、操作は各サービスへ委譲する。
package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/state"
	"github.com/hitoshi/scurrysheets/internal/theme"
)

// actionTimeout はキー操作から起動するリモート呼び出し1回あたりの上限時間。
const actionTimeout = 15 * time.Second

// AuthActions はサインイン・サインアウト操作のインターフェース。
type AuthActions interface {
	SignInWithGoogle(ctx context.Context) (string, model.Result)
	SignOut(ctx context.Context) model.Result
}

// ProfileActions はプロフィール更新操作のインターフェース。
type ProfileActions interface {
	UpdateVisionAPIKey(ctx context.Context, apiKey string) model.Result
}

// ConnectivityChecker は接続診断のインターフェース。
type ConnectivityChecker interface {
	Validate(ctx context.Context) model.ConnectivityResult
}

// Deps はModelの生成に必要な依存関係。
type Deps struct {
	State     *state.AppState
	Auth      AuthActions
	Profiles  ProfileActions
	Validator ConnectivityChecker
	Theme     *theme.Theme
}

// Model はbubbleteaのモデル。
type Model struct {
	deps Deps
	th   theme.Theme
	ctx  context.Context

	changes <-chan struct{}
	stop    func()

	width  int
	height int

	// AppStateのスナップショット。stateChangedMsgのたびに読み直す。
	panel   model.PanelType
	session *model.UserSession
	profile *model.UserProfile
	path    string

	editing bool
	input   string
	busy    bool

	authURL   string
	status    string
	statusErr bool
}

type stateChangedMsg struct{}

type signInMsg struct {
	url    string
	result model.Result
}

type signOutMsg struct {
	result model.Result
}

type saveKeyMsg struct {
	result model.Result
}

type validateMsg struct {
	result model.ConnectivityResult
}

// New はModelを生成し、AppStateの購読を開始する。
// 終了時はCloseで購読を解除すること。
func New(ctx context.Context, deps Deps) Model {
	th := theme.Default()
	if deps.Theme != nil {
		th = *deps.Theme
	}
	changes, stop := watch(deps.State)
	m := Model{
		deps:    deps,
		th:      th,
		ctx:     ctx,
		changes: changes,
		stop:    stop,
	}
	return m.refresh()
}

// Close は状態の購読を解除する。
func (m Model) Close() {
	if m.stop != nil {
		m.stop()
	}
}

// Init は状態変化の待ち受けを開始する。
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// Update はメッセージを処理する。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = t.Width
		m.height = t.Height
		return m, nil
	case stateChangedMsg:
		m = m.refresh()
		return m, waitForChange(m.changes)
	case signInMsg:
		m.busy = false
		if !t.result.Success {
			m = m.fail("Sign-in failed: " + t.result.Error)
			return m, nil
		}
		m.authURL = t.url
		m = m.info("Open the URL below in your browser to sign in.")
		return m, nil
	case signOutMsg:
		m.busy = false
		m.authURL = ""
		if !t.result.Success {
			m = m.fail("Sign-out failed: " + t.result.Error)
			return m, nil
		}
		m = m.info("Signed out.")
		return m, nil
	case saveKeyMsg:
		m.busy = false
		if !t.result.Success {
			m = m.fail(t.result.Error)
			return m, nil
		}
		m.editing = false
		m.input = ""
		m = m.info("Vision API key saved.")
		return m, nil
	case validateMsg:
		m.busy = false
		if t.result.Valid {
			m = m.info(t.result.Message)
		} else {
			m = m.fail(t.result.Message)
		}
		return m, nil
	case tea.KeyMsg:
		if t.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateEditing(t)
		}
		return m.updateNormal(t)
	}
	return m, nil
}

func (m Model) updateNormal(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3":
		i := int(k.Runes[0] - '1')
		m.deps.State.Panel.Set(model.Panels[i])
		return m.refresh(), nil
	case "tab":
		m.deps.State.Panel.Next()
		return m.refresh(), nil
	case "l":
		if m.busy || m.deps.Auth == nil {
			return m, nil
		}
		m.busy = true
		return m.info("Starting Google sign-in..."), m.signIn()
	case "o":
		if m.busy || m.deps.Auth == nil || m.session == nil {
			return m, nil
		}
		m.busy = true
		return m.info("Signing out..."), m.signOut()
	case "v":
		if m.busy || m.deps.Validator == nil {
			return m, nil
		}
		m.busy = true
		return m.info("Checking Supabase connection..."), m.validate()
	case "k":
		if m.panel != model.PanelProfile || m.session == nil || m.deps.Profiles == nil {
			return m, nil
		}
		m.editing = true
		m.input = ""
		return m.info("Enter your Google Cloud Vision API key."), nil
	}
	return m, nil
}

func (m Model) updateEditing(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input = ""
		return m.info(""), nil
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		key := strings.TrimSpace(m.input)
		if key == "" {
			return m.fail("API key must not be empty."), nil
		}
		m.busy = true
		return m.info("Saving..."), m.saveKey(key)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(k.Runes)
		return m, nil
	}
	return m, nil
}

// refresh はAppStateの現在値をスナップショットへ反映する。
func (m Model) refresh() Model {
	st := m.deps.State
	m.panel = st.Panel.Get()
	m.session = st.Session.Get()
	m.profile = st.Profile.Get()
	m.path = st.Route.Path()
	if m.session != nil {
		m.authURL = ""
	} else {
		m.editing = false
		m.input = ""
	}
	return m
}

func (m Model) info(s string) Model {
	m.status = s
	m.statusErr = false
	return m
}

func (m Model) fail(s string) Model {
	m.status = s
	m.statusErr = true
	return m
}

func (m Model) actionContext() (context.Context, context.CancelFunc) {
	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, actionTimeout)
}

func (m Model) signIn() tea.Cmd {
	auth := m.deps.Auth
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		url, res := auth.SignInWithGoogle(ctx)
		return signInMsg{url: url, result: res}
	}
}

func (m Model) signOut() tea.Cmd {
	auth := m.deps.Auth
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		return signOutMsg{result: auth.SignOut(ctx)}
	}
}

func (m Model) saveKey(key string) tea.Cmd {
	profiles := m.deps.Profiles
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		return saveKeyMsg{result: profiles.UpdateVisionAPIKey(ctx, key)}
	}
}

func (m Model) validate() tea.Cmd {
	v := m.deps.Validator
	return func() tea.Msg {
		ctx, cancel := m.actionContext()
		defer cancel()
		return validateMsg{result: v.Validate(ctx)}
	}
}
