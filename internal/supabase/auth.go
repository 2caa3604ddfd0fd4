package supabase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/scurrysheets/internal/model"
)

// AuthChangeEvent は認証状態の変化を表すイベント名。
type AuthChangeEvent string

const (
	// EventSignedIn はサインインが完了したことを示す。
	EventSignedIn AuthChangeEvent = "SIGNED_IN"
	// EventTokenRefreshed はアクセストークンが更新されたことを示す。
	EventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	// EventSignedOut はサインアウトしたことを示す。
	EventSignedOut AuthChangeEvent = "SIGNED_OUT"
	// EventUserUpdated はユーザー情報が更新されたことを示す。
	EventUserUpdated AuthChangeEvent = "USER_UPDATED"
	// EventInitialSession は購読開始時点のセッションを示す。
	EventInitialSession AuthChangeEvent = "INITIAL_SESSION"
)

const (
	// autoRefreshTick は自動リフレッシュの確認間隔。
	autoRefreshTick = 30 * time.Second
	// expiryMargin はこの時間以内に期限切れになるセッションを更新対象とする。
	expiryMargin = 3 * autoRefreshTick
)

// ErrCodeVerifierMissing はPKCEの検証子が保存されていないことを示す。
// サインインを開始したプロセス・ストレージと異なる環境でコールバックを受けた場合に発生する。
var ErrCodeVerifierMissing = errors.New("PKCE code verifier not found in storage")

// AuthStateListener は認証イベントの購読者。サインアウト時のsessionはnil。
type AuthStateListener func(event AuthChangeEvent, session *model.Session)

// SignInWithOAuthOptions はOAuthサインインの設定。
type SignInWithOAuthOptions struct {
	Provider   string
	RedirectTo string
	Scopes     string
}

// OAuthResponse はOAuthサインイン開始時の結果。URLにユーザーを遷移させる。
type OAuthResponse struct {
	Provider string
	URL      string
}

// AuthClient はGoTrue認証APIのクライアント。
// セッションをストレージに永続化し、認証イベントを購読者に配信する。
type AuthClient struct {
	client     *Client
	storageKey string
	now        func() time.Time

	mu      sync.Mutex
	session *model.Session
	loaded  bool

	// refreshGroup は同時に起きたリフレッシュを1回のリクエストにまとめる。
	refreshGroup singleflight.Group

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]AuthStateListener
	order       []int
}

func newAuthClient(c *Client) *AuthClient {
	return &AuthClient{
		client:     c,
		storageKey: storageKeyFor(c.baseURL),
		now:        time.Now,
		listeners:  make(map[int]AuthStateListener),
	}
}

// storageKeyFor はURLのホスト名の先頭ラベル（プロジェクトref）からストレージキーを作る。
func storageKeyFor(baseURL string) string {
	ref := "default"
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		ref = strings.Split(u.Hostname(), ".")[0]
	}
	return "sb-" + ref + "-auth-token"
}

// StorageKey はセッションの保存キーを返す。
func (a *AuthClient) StorageKey() string {
	return a.storageKey
}

func (a *AuthClient) codeVerifierKey() string {
	return a.storageKey + "-code-verifier"
}

// OnAuthStateChange は認証イベントの購読者を登録する。
// 戻り値の関数で購読を解除する。
func (a *AuthClient) OnAuthStateChange(fn AuthStateListener) (unsubscribe func()) {
	a.listenersMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.order = append(a.order, id)
	a.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.listenersMu.Lock()
			defer a.listenersMu.Unlock()
			delete(a.listeners, id)
			for i, oid := range a.order {
				if oid == id {
					a.order = append(a.order[:i], a.order[i+1:]...)
					break
				}
			}
		})
	}
}

// emit はイベントを登録順に全購読者へ配信する。
func (a *AuthClient) emit(event AuthChangeEvent, session *model.Session) {
	a.listenersMu.Lock()
	fns := make([]AuthStateListener, 0, len(a.order))
	for _, id := range a.order {
		fns = append(fns, a.listeners[id])
	}
	a.listenersMu.Unlock()

	a.client.logger.Debug("auth state changed", slog.String("event", string(event)))
	for _, fn := range fns {
		fn(event, session)
	}
}

// currentSession はメモリ上のセッションを返す。初回はストレージから復元する。
func (a *AuthClient) currentSession() *model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		a.loaded = true
		if raw, ok := a.client.storage.GetItem(a.storageKey); ok && raw != "" {
			var s model.Session
			if err := json.Unmarshal([]byte(raw), &s); err == nil && s.AccessToken != "" {
				a.session = &s
			} else {
				a.client.logger.Warn("discarding unreadable persisted session")
			}
		}
	}
	return a.session
}

// saveSession はセッションをメモリとストレージに保存する。
func (a *AuthClient) saveSession(s *model.Session) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = a.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}

	a.mu.Lock()
	a.session = s
	a.loaded = true
	a.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		a.client.logger.Error("failed to encode session", slog.String("error", err.Error()))
		return
	}
	if err := a.client.storage.SetItem(a.storageKey, string(data)); err != nil {
		a.client.logger.Error("failed to persist session", slog.String("error", err.Error()))
	}
}

// removeSession はセッションをメモリとストレージから削除する。
func (a *AuthClient) removeSession() {
	a.mu.Lock()
	a.session = nil
	a.loaded = true
	a.mu.Unlock()

	if err := a.client.storage.RemoveItem(a.storageKey); err != nil {
		a.client.logger.Error("failed to remove persisted session", slog.String("error", err.Error()))
	}
}

// GetSession は現在のセッションを返す。セッションがない場合はnil, nilを返す。
// 期限切れが近い場合は先にリフレッシュし、TOKEN_REFRESHEDを配信する。
func (a *AuthClient) GetSession(ctx context.Context) (*model.Session, error) {
	s := a.currentSession()
	if s == nil {
		return nil, nil
	}
	if !s.ExpiresWithin(a.now(), expiryMargin) {
		return s, nil
	}
	return a.refreshShared(ctx, s)
}

// accessToken はリクエストに使うアクセストークンを返す。
// セッションがない、または取得に失敗した場合は空文字列（anonキーを使用）を返す。
func (a *AuthClient) accessToken(ctx context.Context) string {
	s, err := a.GetSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

// RefreshSession はリフレッシュトークンでセッションを更新する。
// 実行中のリフレッシュがあればその結果を共有する。
// リモートがリフレッシュトークンを拒否した場合はセッションを破棄しSIGNED_OUTを配信する。
// 5xxは一時的な障害とみなし、セッションを保持したままエラーを返す。
func (a *AuthClient) RefreshSession(ctx context.Context) (*model.Session, error) {
	return a.refreshShared(ctx, nil)
}

// refreshShared はリフレッシュをsingleflightで実行する。
// staleが非nilの場合、待っている間に別の呼び出しが更新を済ませていればリクエストせずにその結果を返す。
func (a *AuthClient) refreshShared(ctx context.Context, stale *model.Session) (*model.Session, error) {
	v, err, _ := a.refreshGroup.Do("refresh", func() (any, error) {
		if stale != nil {
			if cur := a.currentSession(); cur != stale && cur != nil && !cur.ExpiresWithin(a.now(), expiryMargin) {
				return cur, nil
			}
		}
		return a.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(*model.Session)
	return s, nil
}

func (a *AuthClient) refresh(ctx context.Context) (*model.Session, error) {
	current := a.currentSession()
	if current == nil || current.RefreshToken == "" {
		return nil, nil
	}

	var refreshed model.Session
	err := a.client.do(ctx, request{
		op:     "auth:refresh",
		method: http.MethodPost,
		url:    a.client.endpoint(authPath+"/token", url.Values{"grant_type": {"refresh_token"}}),
		body:   map[string]string{"refresh_token": current.RefreshToken},
	}, &refreshed)
	if err != nil {
		var remote *Error
		if errors.As(err, &remote) && remote.Status < http.StatusInternalServerError {
			a.removeSession()
			a.emit(EventSignedOut, nil)
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	a.saveSession(&refreshed)
	a.emit(EventTokenRefreshed, &refreshed)
	return &refreshed, nil
}

// GetUser は現在のセッションのユーザー情報をリモートから取得する。
// セッションがない場合はnil, nilを返す。
func (a *AuthClient) GetUser(ctx context.Context) (*model.User, error) {
	s, err := a.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}

	var user model.User
	if err := a.client.do(ctx, request{
		op:     "auth:user",
		method: http.MethodGet,
		url:    a.client.endpoint(authPath+"/user", nil),
		token:  s.AccessToken,
	}, &user); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// SignInWithOAuth はPKCEフローでOAuthサインインを開始し、認可URLを返す。
// 検証子はストレージに保存し、ExchangeCodeForSessionで使用する。
func (a *AuthClient) SignInWithOAuth(ctx context.Context, opts SignInWithOAuthOptions) (*OAuthResponse, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("oauth provider is required")
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	if err := a.client.storage.SetItem(a.codeVerifierKey(), verifier); err != nil {
		return nil, fmt.Errorf("failed to store code verifier: %w", err)
	}

	params := url.Values{
		"provider":              {opts.Provider},
		"code_challenge":        {codeChallenge(verifier)},
		"code_challenge_method": {"s256"},
	}
	if opts.RedirectTo != "" {
		params.Set("redirect_to", opts.RedirectTo)
	}
	if opts.Scopes != "" {
		params.Set("scopes", opts.Scopes)
	}

	return &OAuthResponse{
		Provider: opts.Provider,
		URL:      a.client.endpoint(authPath+"/authorize", params),
	}, nil
}

// ExchangeCodeForSession は認可コードをセッションに交換し、SIGNED_INを配信する。
func (a *AuthClient) ExchangeCodeForSession(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	verifier, ok := a.client.storage.GetItem(a.codeVerifierKey())
	if !ok || verifier == "" {
		return nil, ErrCodeVerifierMissing
	}

	var s model.Session
	if err := a.client.do(ctx, request{
		op:     "auth:exchange",
		method: http.MethodPost,
		url:    a.client.endpoint(authPath+"/token", url.Values{"grant_type": {"pkce"}}),
		body: map[string]string{
			"auth_code":     code,
			"code_verifier": verifier,
		},
	}, &s); err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := a.client.storage.RemoveItem(a.codeVerifierKey()); err != nil {
		a.client.logger.Warn("failed to remove code verifier", slog.String("error", err.Error()))
	}
	a.saveSession(&s)
	a.emit(EventSignedIn, &s)
	return &s, nil
}

// SignOut はリモートのセッションを失効させ、ローカルのセッションを破棄してSIGNED_OUTを配信する。
// セッションが既に無効（401/403/404）の場合もローカルの破棄は行う。
func (a *AuthClient) SignOut(ctx context.Context) error {
	if s := a.currentSession(); s != nil {
		err := a.client.do(ctx, request{
			op:     "auth:logout",
			method: http.MethodPost,
			url:    a.client.endpoint(authPath+"/logout", url.Values{"scope": {"global"}}),
			token:  s.AccessToken,
		}, nil)
		if err != nil && !isIgnorableLogoutError(err) {
			return fmt.Errorf("failed to sign out: %w", err)
		}
	}

	a.removeSession()
	a.emit(EventSignedOut, nil)
	return nil
}

func isIgnorableLogoutError(err error) bool {
	var remote *Error
	if !errors.As(err, &remote) {
		return false
	}
	switch remote.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

// RunAutoRefresh は期限切れが近いセッションを定期的にリフレッシュする。
// ctxがキャンセルされるまでブロックする。
func (a *AuthClient) RunAutoRefresh(ctx context.Context) {
	ticker := time.NewTicker(autoRefreshTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshIfNeeded(ctx)
		}
	}
}

func (a *AuthClient) refreshIfNeeded(ctx context.Context) {
	s := a.currentSession()
	if s == nil || !s.ExpiresWithin(a.now(), expiryMargin) {
		return
	}
	if _, err := a.refreshShared(ctx, s); err != nil {
		a.client.logger.Warn("auto refresh failed", slog.String("error", err.Error()))
	}
}

// generateCodeVerifier はPKCEの検証子をランダムに生成する。
func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// codeChallenge は検証子からS256のチャレンジを計算する。
func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
