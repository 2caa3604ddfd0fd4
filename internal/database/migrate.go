// Package database はuser_settingsスキーマのマイグレーションとデータベース接続を提供する。
// アプリケーション本体はSupabaseのREST API経由でのみデータにアクセスし、
// このパッケージはmigrate/validateコマンドからのみ使用する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗し、手動での修復が必要な状態を表す。
var ErrDirtySchema = errors.New("user_settings schema is dirty")

// SchemaStatus はマイグレーション適用後のスキーマの状態。
type SchemaStatus struct {
	Version uint
	// Applied は今回の実行で1件以上のマイグレーションを適用したかどうか。
	Applied bool
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のスキーマ状態を返す。
// すでに最新の場合はApplied=falseで返る。
// dirtyなスキーマにはUpを試みず、ErrDirtySchemaを返す。
func RunMigrations(databaseURL string) (SchemaStatus, error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return SchemaStatus{}, err
	}
	defer m.Close()

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return SchemaStatus{Version: before}, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaStatus{}, fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return SchemaStatus{Version: after, Applied: after != before}, nil
}

// RollbackMigrations はすべてのマイグレーションを取り消す。テスト用のデータベースの初期化に使う。
func RollbackMigrations(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}
