package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// SupabaseUserSettingsRepo はPostgREST経由でuser_settingsテーブルを操作するリポジトリ。
// 行レベルセキュリティによりサインイン中のユーザー自身の行のみが対象となる。
type SupabaseUserSettingsRepo struct {
	client *supabase.Client
}

// NewSupabaseUserSettingsRepo はSupabaseUserSettingsRepoを生成する。
func NewSupabaseUserSettingsRepo(client *supabase.Client) *SupabaseUserSettingsRepo {
	return &SupabaseUserSettingsRepo{client: client}
}

// FindByUserID は指定ユーザーの設定行を取得する。見つからない場合はnilを返す。
func (r *SupabaseUserSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error) {
	var row model.UserSettings
	err := r.client.From(UserSettingsTable).
		Select("*").
		Eq("user_id", userID).
		Single().
		Execute(ctx, &row)

	if supabase.HasCode(err, supabase.CodeNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user settings: %w", err)
	}

	return &row, nil
}

// Create は設定行を新規作成する。
func (r *SupabaseUserSettingsRepo) Create(ctx context.Context, settings *model.UserSettings) error {
	err := r.client.From(UserSettingsTable).
		Insert([]*model.UserSettings{settings}).
		Execute(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to insert user settings: %w", err)
	}
	return nil
}

// UpdateVisionAPIKey はVision APIキーとupdated_atを更新し、更新後の行を返す。
func (r *SupabaseUserSettingsRepo) UpdateVisionAPIKey(ctx context.Context, userID, apiKey string, updatedAt time.Time) (*model.UserSettings, error) {
	var row model.UserSettings
	err := r.client.From(UserSettingsTable).
		Update(map[string]any{
			"vision_api_key": apiKey,
			"updated_at":     updatedAt.UTC().Format(time.RFC3339Nano),
		}).
		Eq("user_id", userID).
		Select("*").
		Single().
		Execute(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to update vision api key: %w", err)
	}
	return &row, nil
}

// Probe はテーブルから最大1行を読み出す。
func (r *SupabaseUserSettingsRepo) Probe(ctx context.Context) error {
	var rows []model.UserSettings
	return r.client.From(UserSettingsTable).
		Select("*").
		Limit(1).
		Execute(ctx, &rows)
}

// compile-time interface check
var _ UserSettingsRepository = (*SupabaseUserSettingsRepo)(nil)
