// Package user はユーザープロフィール（user_settings）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/repository"
	"github.com/hitoshi/scurrysheets/internal/security"
	"github.com/hitoshi/scurrysheets/internal/store"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// SessionSource はライブのセッションとユーザー情報を取得するインターフェース。
// キャッシュ済みの状態ではなく、外部サービスに毎回問い合わせる。
type SessionSource interface {
	GetSession(ctx context.Context) (*model.Session, error)
	GetUser(ctx context.Context) (*model.User, error)
}

// FetchRecorder はプロフィール取得結果の記録インターフェース。
type FetchRecorder interface {
	RecordProfileFetch(outcome string)
}

// プロフィール取得結果の分類。
const (
	OutcomeSuccess = "success"
	OutcomeMissing = "missing"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// ProfileService はプロフィールの取得・作成・更新を行い、Profileコンテナを更新する。
// 書き込みは常にリモートを先に行い、その後に再取得してコンテナへ反映する。
type ProfileService struct {
	repo      repository.UserSettingsRepository
	auth      SessionSource
	sanitizer security.MetadataSanitizerService
	profile   *store.Writable[*model.UserProfile]
	recorder  FetchRecorder
	logger    *slog.Logger
	now       func() time.Time

	// generation はResetのたびに進む。取得開始時と値が異なる結果は破棄する。
	generation atomic.Uint64
}

// NewProfileService はProfileServiceを生成する。recorderはnilでもよい。
func NewProfileService(
	repo repository.UserSettingsRepository,
	auth SessionSource,
	sanitizer security.MetadataSanitizerService,
	profile *store.Writable[*model.UserProfile],
	recorder FetchRecorder,
	logger *slog.Logger,
) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		repo:      repo,
		auth:      auth,
		sanitizer: sanitizer,
		profile:   profile,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Profile は現在のプロフィールを返す。未取得またはサインアウト中はnil。
func (s *ProfileService) Profile() *model.UserProfile {
	return s.profile.Get()
}

// HasVisionAPIKey は現時点のプロフィールにVision APIキーが設定されているかを返す。
// その時点の値を読むだけで、変更を追跡したい場合はProfileコンテナを購読すること。
func (s *ProfileService) HasVisionAPIKey() bool {
	return s.profile.Get().HasVisionAPIKey()
}

// Reset はプロフィールをnilにし、実行中の取得結果が後から反映されないようにする。
func (s *ProfileService) Reset() {
	s.generation.Add(1)
	s.profile.Set(nil)
}

// FetchProfile はリモートからプロフィールを取得してコンテナへ反映する。
// 行が存在しない場合はCreateProfileを呼び出し、この呼び出し自体はコンテナを変更しない。
// その他のエラーはログに記録し、コンテナは以前の値のままにする。
func (s *ProfileService) FetchProfile(ctx context.Context, userID string) error {
	return s.fetchProfile(ctx, userID, s.generation.Load(), true)
}

// fetchProfile はgenの時点で開始した取得を行う。
// 作成後の再取得もgenを引き継ぎ、途中のResetを検出できるようにする。
func (s *ProfileService) fetchProfile(ctx context.Context, userID string, gen uint64, createIfMissing bool) error {
	row, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.record(OutcomeError)
		s.logger.Error("Error fetching user profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}

	if row == nil {
		s.record(OutcomeMissing)
		if !createIfMissing {
			s.logger.Warn("user profile still missing after creation",
				slog.String("user_id", userID),
			)
			return nil
		}
		s.logger.Info("user profile not found, creating",
			slog.String("user_id", userID),
		)
		return s.createProfile(ctx, userID, gen)
	}

	p := row.ToProfile(userID, s.now())
	applied := false
	s.profile.Update(func(current *model.UserProfile) *model.UserProfile {
		if s.generation.Load() != gen {
			return current
		}
		applied = true
		return p
	})

	if !applied {
		s.record(OutcomeStale)
		s.logger.Info("discarding stale user profile",
			slog.String("user_id", userID),
		)
		return nil
	}

	s.record(OutcomeSuccess)
	return nil
}

// CreateProfile はサインイン中ユーザーのメタデータからプロフィールを作成する。
// ユーザーを取得できない場合は何もしない。作成に成功したら再取得してコンテナへ反映する。
func (s *ProfileService) CreateProfile(ctx context.Context, userID string) error {
	return s.createProfile(ctx, userID, s.generation.Load())
}

func (s *ProfileService) createProfile(ctx context.Context, userID string, gen uint64) error {
	u, err := s.auth.GetUser(ctx)
	if err != nil {
		s.logger.Error("Error loading user for profile creation",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if u == nil {
		return nil
	}

	settings := model.NewUserSettings(
		userID,
		u.Email,
		s.sanitizer.SanitizeText(u.DisplayName()),
		s.sanitizer.SanitizeURL(u.Avatar()),
		s.now(),
	)

	if err := s.repo.Create(ctx, settings); err != nil {
		s.logger.Error("Error creating user profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("user profile created", slog.String("user_id", userID))
	return s.fetchProfile(ctx, userID, gen, false)
}

// UpdateVisionAPIKey はサインイン中ユーザーのVision APIキーを更新する。
// ユーザーIDはキャッシュではなく毎回ライブのセッションから解決する。
func (s *ProfileService) UpdateVisionAPIKey(ctx context.Context, apiKey string) model.Result {
	gen := s.generation.Load()
	session, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve session for api key update",
			slog.String("error", err.Error()),
		)
	}
	userID := session.UserID()
	if userID == "" {
		return model.FailErr(model.ErrNotAuthenticated)
	}

	if _, err := s.repo.UpdateVisionAPIKey(ctx, userID, apiKey, s.now()); err != nil {
		s.logger.Error("Error updating Vision API key",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		var remote *supabase.Error
		if errors.As(err, &remote) {
			return model.Fail(remote.Message)
		}
		return model.FailErr(err)
	}

	_ = s.fetchProfile(ctx, userID, gen, true)
	return model.OK()
}

func (s *ProfileService) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordProfileFetch(outcome)
	}
}
