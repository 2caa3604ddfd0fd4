package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
)

// ErrUnsupportedURL はDATABASE_URLがPostgreSQLの接続URLでないことを表す。
var ErrUnsupportedURL = errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")

// validate/migrateは単発のコマンドなので、接続は1本あれば足りる。
const (
	maxOpenConns    = 1
	connMaxLifetime = time.Minute
)

// Open はdatabaseURLのPostgreSQLへの接続プールを返す。
// sql.Openは接続を試行しないため、到達可否はPingContextで確認すること。
func Open(databaseURL string) (*sql.DB, error) {
	u, err := url.Parse(databaseURL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return nil, ErrUnsupportedURL
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}
