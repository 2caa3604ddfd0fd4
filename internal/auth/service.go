// Package auth はOAuthサインインの開始と完了、認証イベントに応じた状態同期を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// OAuthClient は外部認証サービスのOAuth操作のインターフェース。
// supabase.AuthClientが実装する。
type OAuthClient interface {
	SignInWithOAuth(ctx context.Context, opts supabase.SignInWithOAuthOptions) (*supabase.OAuthResponse, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*model.Session, error)
	SignOut(ctx context.Context) error
}

// Service はサインイン・サインアウトの操作を提供する。
// 状態の更新はここでは行わず、認証イベントを受けたSynchronizerが行う。
type Service struct {
	oauth  OAuthClient
	google GoogleOAuthConfig
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(oauth OAuthClient, google GoogleOAuthConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauth:  oauth,
		google: google,
		logger: logger,
	}
}

// SignInWithGoogle はGoogleサインインを開始し、ユーザーが開くべき認可URLを返す。
func (s *Service) SignInWithGoogle(ctx context.Context) (string, model.Result) {
	resp, err := s.oauth.SignInWithOAuth(ctx, s.google.Options())
	if err != nil {
		s.logger.Error("Error signing in with Google", slog.String("error", err.Error()))
		return "", model.FailErr(err)
	}

	s.logger.Info("google sign-in started",
		slog.String("redirect_to", s.google.RedirectURL()),
	)
	return resp.URL, model.OK()
}

// CompleteSignIn はOAuthコールバックで受け取った認可コードをセッションに交換する。
// 成功すると外部認証サービスがSIGNED_INを配信する。
func (s *Service) CompleteSignIn(ctx context.Context, code string) error {
	session, err := s.oauth.ExchangeCodeForSession(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to complete sign-in: %w", err)
	}

	s.logger.Info("user signed in", slog.String("user_id", session.UserID()))
	return nil
}

// SignOut はサインアウトする。成功すると外部認証サービスがSIGNED_OUTを配信する。
func (s *Service) SignOut(ctx context.Context) model.Result {
	if err := s.oauth.SignOut(ctx); err != nil {
		s.logger.Error("Error signing out", slog.String("error", err.Error()))
		return model.FailErr(err)
	}

	s.logger.Info("user signed out")
	return model.OK()
}

// compile-time interface check
var _ OAuthClient = (*supabase.AuthClient)(nil)
