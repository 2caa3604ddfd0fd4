package auth

import (
	"strings"

	"github.com/hitoshi/scurrysheets/internal/supabase"
)

const (
	// CallbackPath はOAuthのリダイレクト先パス。ローカルのHTTPサーバーが受け付ける。
	CallbackPath = "/auth/callback"

	googleProvider = "google"
)

// GoogleScopes はサインイン時に追加で要求するGoogle APIのスコープ。
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/monitoring.read",
}

// GoogleOAuthConfig はGoogleサインインの設定。
type GoogleOAuthConfig struct {
	// BaseURL はアプリケーションのオリジン（例: http://localhost:5173）。
	BaseURL string
	// Scopes が空の場合はGoogleScopesを使用する。
	Scopes []string
}

// RedirectURL は<BaseURL>/auth/callbackを返す。
func (c GoogleOAuthConfig) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + CallbackPath
}

// Options はSignInWithOAuthに渡すオプションを組み立てる。
// スコープは空白区切りで渡す。
func (c GoogleOAuthConfig) Options() supabase.SignInWithOAuthOptions {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = GoogleScopes
	}
	return supabase.SignInWithOAuthOptions{
		Provider:   googleProvider,
		RedirectTo: c.RedirectURL(),
		Scopes:     strings.Join(scopes, " "),
	}
}
