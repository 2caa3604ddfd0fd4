package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 外部サービスの既定値。動作しないプレースホルダーで、未設定でも起動は止めない。
const (
	DefaultSupabaseURL     = "http://localhost:54321"
	DefaultSupabaseAnonKey = "placeholder-key"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Supabase
	SupabaseURL     string
	SupabaseAnonKey string

	// Database（migrate / validate のみで使用。未設定可）
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Rate Limit（/auth/* へのIPごとの毎分リクエスト数）
	RateLimitAuth int

	// HTTP
	HTTPTimeout time.Duration

	// Local state
	StateDir string

	// Logging
	LogLevel slog.Level
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリの.env.localと.envがあれば先に読み込む。既に設定済みの環境変数は上書きしないため、
// 優先順位はプロセスの環境変数、.env.local、.envの順になる。
// SupabaseのURL・キーが未設定でもエラーにはせず、プレースホルダーを使う。
func Load() (*Config, error) {
	loadDotEnv(".env.local", ".env")

	cfg := &Config{}

	cfg.SupabaseURL = getEnvString("VITE_SUPABASE_URL", DefaultSupabaseURL)
	cfg.SupabaseAnonKey = getEnvString("VITE_SUPABASE_ANON_KEY", DefaultSupabaseAnonKey)
	if cfg.SupabaseURL == DefaultSupabaseURL || cfg.SupabaseAnonKey == DefaultSupabaseAnonKey {
		slog.Warn("Supabase environment variables are not set, using placeholders")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServerPort = getEnvString("SERVER_PORT", "5173")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 30)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.StateDir = getEnvString("STATE_DIR", ".scurrysheets")
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)

	return cfg, nil
}

// loadDotEnv は存在するファイルだけを前から順に読み込む。先に読んだファイルの値が優先される。
// godotenv.Loadは1つでも欠けるとエラーになるため個別に読む。
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("failed to load env file",
				slog.String("file", f),
				slog.String("error", err.Error()),
			)
		}
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
