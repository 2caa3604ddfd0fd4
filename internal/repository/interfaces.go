// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/scurrysheets/internal/model"
)

// UserSettingsTable はユーザー設定を保持するリモートテーブル名。
const UserSettingsTable = "user_settings"

// UserSettingsRepository はユーザー設定（1ユーザー1行）の永続化インターフェース。
type UserSettingsRepository interface {
	// FindByUserID は指定ユーザーの設定行を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error)

	// Create は設定行を新規作成する。
	Create(ctx context.Context, settings *model.UserSettings) error

	// UpdateVisionAPIKey はVision APIキーとupdated_atを更新し、更新後の行を返す。
	UpdateVisionAPIKey(ctx context.Context, userID, apiKey string, updatedAt time.Time) (*model.UserSettings, error)

	// Probe はテーブルから最大1行を読み出し、接続確認を行う。
	// リモートのエラーはそのまま返す。
	Probe(ctx context.Context) error
}
