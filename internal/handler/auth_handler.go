// Package handler はローカルHTTPサーバーのハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/scurrysheets/internal/middleware"
	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/supabase"
	"github.com/hitoshi/scurrysheets/internal/theme"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignInWithGoogle(ctx context.Context) (string, model.Result)
	CompleteSignIn(ctx context.Context, code string) error
}

// AuthHandler はOAuthのサインイン開始とコールバックを処理する。
type AuthHandler struct {
	service AuthServiceInterface
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>scurrysheets</title>
<style>
body { background: {{.Palette.Background}}; color: {{.Palette.Text}}; font-family: {{.Palette.FontBody}}; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
main { background: {{.Palette.Surface}}; padding: 2rem 3rem; border-radius: 8px; text-align: center; }
h1 { font-family: {{.Palette.FontHeader}}; color: {{if .OK}}{{.Palette.Primary}}{{else}}{{.Palette.Error}}{{end}}; }
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</main>
</body>
</html>
`))

type resultPageData struct {
	OK      bool
	Title   string
	Message string
	Palette pagePalette
}

type pagePalette struct {
	Background, Surface, Text, Primary, Error template.CSS
	FontHeader, FontBody                      template.CSS
}

var defaultPalette = pagePalette{
	Background: theme.ColorBackground,
	Surface:    theme.ColorSurface,
	Text:       theme.ColorText,
	Primary:    theme.ColorPrimary,
	Error:      theme.ColorError,
	FontHeader: theme.FontHeader,
	FontBody:   theme.FontBody,
}

// Login はGoogleサインインを開始し、認可URLへリダイレクトする。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, result := h.service.SignInWithGoogle(r.Context())
	if !result.Success {
		middleware.WriteErrorResponse(w, r, http.StatusInternalServerError, middleware.CodeSignInFailed, result.Error)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、結果をHTMLで表示する。
// GET /auth/callback?code=xxx
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// プロバイダー側で拒否された場合はerror/error_descriptionが付与される
	if providerErr := query.Get("error"); providerErr != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = providerErr
		}
		h.logger.Warn("oauth provider returned error",
			slog.String("error", providerErr),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		h.render(w, http.StatusBadRequest, resultPageData{Title: "Sign-in failed", Message: desc})
		return
	}

	code := query.Get("code")
	if code == "" {
		h.render(w, http.StatusBadRequest, resultPageData{Title: "Sign-in failed", Message: "Missing authorization code."})
		return
	}

	if err := h.service.CompleteSignIn(r.Context(), code); err != nil {
		status := callbackErrorStatus(err)
		h.logger.Error("oauth callback failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		h.render(w, status, resultPageData{Title: "Sign-in failed", Message: "Could not complete sign-in. Please try again from the app."})
		return
	}

	h.render(w, http.StatusOK, resultPageData{OK: true, Title: "Signed in", Message: "You can close this tab and return to scurrysheets."})
}

// callbackErrorStatus は検証子の欠落とリモートの4xxをクライアント起因（400）として扱う。
func callbackErrorStatus(err error) int {
	if errors.Is(err, supabase.ErrCodeVerifierMissing) {
		return http.StatusBadRequest
	}
	var remote *supabase.Error
	if errors.As(err, &remote) && remote.Status >= 400 && remote.Status < 500 {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *AuthHandler) render(w http.ResponseWriter, status int, data resultPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data.Palette = defaultPalette
	if err := resultPage.Execute(w, data); err != nil {
		h.logger.Error("failed to render result page", slog.String("error", err.Error()))
	}
}
