// Package diagnostics は外部サービスへの接続診断を提供する。
// 通常の処理経路からは呼ばれず、validateコマンドとUIから明示的に実行する。
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/supabase"
)

// 診断結果のメッセージ。
const (
	MessageNoClient       = "Must run in an initialized client environment"
	MessageTableMissing   = "Connected to Supabase but user_settings table not found"
	MessageUnreachable    = "Could not connect to Supabase. Check your network connection and environment variables."
	MessageConfigured     = "Supabase client configured correctly"
	MessageDatabaseOK     = "Database connection OK"
	supabaseErrorPrefix   = "Supabase error: "
	unexpectedErrorPrefix = "Unexpected error: "
)

// Prober はプロフィールテーブルに対して1件だけ読み取るインターフェース。
// repository.SupabaseUserSettingsRepoが実装する。
type Prober interface {
	Probe(ctx context.Context) error
}

// DatabasePinger はデータベースへの疎通確認のインターフェース。*sql.DBが実装する。
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// Validator は接続診断を行う。リトライは行わない。
type Validator struct {
	prober Prober
	logger *slog.Logger
}

// NewValidator はValidatorを生成する。proberがnilの場合は常に実行環境エラーとなる。
func NewValidator(prober Prober, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{prober: prober, logger: logger}
}

// Validate はuser_settingsテーブルへlimit 1の読み取りを1回だけ行い、結果を分類する。
func (v *Validator) Validate(ctx context.Context) model.ConnectivityResult {
	if v.prober == nil {
		return model.ConnectivityResult{Valid: false, Message: MessageNoClient}
	}

	err := v.prober.Probe(ctx)
	result := classify(err)
	if err != nil {
		v.logger.Warn("connectivity check failed",
			slog.Bool("valid", result.Valid),
			slog.String("error", err.Error()),
		)
	}
	return result
}

func classify(err error) model.ConnectivityResult {
	if err == nil {
		return model.ConnectivityResult{Valid: true, Message: MessageConfigured}
	}

	// テーブルがない場合も接続自体は成功している
	if supabase.HasCode(err, supabase.CodeTableNotFound, supabase.CodeUndefinedTable, supabase.CodeNoRows) {
		return model.ConnectivityResult{Valid: true, Message: MessageTableMissing}
	}

	if errors.Is(err, supabase.ErrFetchFailed) || strings.Contains(err.Error(), supabase.ErrFetchFailed.Error()) {
		return model.ConnectivityResult{Valid: false, Message: MessageUnreachable}
	}

	var remote *supabase.Error
	if errors.As(err, &remote) {
		return model.ConnectivityResult{Valid: false, Message: supabaseErrorPrefix + remote.Message}
	}

	return model.ConnectivityResult{Valid: false, Message: unexpectedErrorPrefix + err.Error()}
}

// ValidateDatabase はDATABASE_URLが設定されている場合のデータベース疎通確認を行う。
func ValidateDatabase(ctx context.Context, db DatabasePinger) model.ConnectivityResult {
	if db == nil {
		return model.ConnectivityResult{Valid: false, Message: MessageNoClient}
	}
	if err := db.PingContext(ctx); err != nil {
		return model.ConnectivityResult{Valid: false, Message: fmt.Sprintf("Database error: %v", err)}
	}
	return model.ConnectivityResult{Valid: true, Message: MessageDatabaseOK}
}
