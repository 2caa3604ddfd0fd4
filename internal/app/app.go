// Package app はscurrysheetsのサブコマンドの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/scurrysheets/internal/config"
	"github.com/hitoshi/scurrysheets/internal/database"
	"github.com/hitoshi/scurrysheets/internal/diagnostics"
	"github.com/hitoshi/scurrysheets/internal/logger"
	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/tui"
)

// shutdownTimeout はコールバックサーバーのグレースフルシャットダウンの上限時間。
const shutdownTimeout = 10 * time.Second

// stdout はvalidateコマンドの結果出力先。
var stdout io.Writer = os.Stdout

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, nil)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		writeUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5173"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("supabase_url", cfg.SupabaseURL),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandServe:
		return runServe(ctx, cfg)
	case CommandValidate:
		return runValidate(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runUI(ctx, cfg)
	}
}

// runUI は端末UIを起動する。
// 描画を壊さないよう、ログはSTATE_DIR配下のファイルへ切り替える。
// サインインの完了を受けるため、コールバックサーバーも並行して起動する。
func runUI(ctx context.Context, cfg *config.Config) error {
	f, err := logger.OpenFile(cfg.StateDir)
	if err != nil {
		return err
	}
	defer f.Close()
	log := logger.SetupDefault(f, cfg.LogLevel)

	c, err := newComponents(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.syncer.Initialize(ctx)
	go c.client.Auth.RunAutoRefresh(ctx)

	server, err := startServer(cfg, c.router(log))
	if err != nil {
		return err
	}
	defer shutdownServer(server)

	m := tui.New(ctx, tui.Deps{
		State:     c.state,
		Auth:      c.auth,
		Profiles:  c.profiles,
		Validator: c.validator,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}

// runServe はUIなしで認証同期・自動リフレッシュ・コールバックサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	c, err := newComponents(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	c.syncer.Initialize(ctx)
	go c.client.Auth.RunAutoRefresh(ctx)

	server, err := startServer(cfg, c.router(log))
	if err != nil {
		return err
	}

	slog.Info("sign in by opening the login URL",
		slog.String("url", cfg.BaseURL+"/auth/login"),
	)

	<-ctx.Done()
	slog.Info("shutting down callback server...")
	shutdownServer(server)
	slog.Info("callback server stopped gracefully")
	return nil
}

// startServer はコールバックサーバーを起動する。
// ポートの確保に失敗した場合は同期的にエラーを返す。
func startServer(cfg *config.Config, h http.Handler) (*http.Server, error) {
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	go func() {
		slog.Info("callback server starting", slog.String("addr", server.Addr))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()
	return server, nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", slog.String("error", err.Error()))
	}
}

// runValidate は接続診断を1回実行し、結果をJSONで出力する。
// DATABASE_URLが設定されている場合はデータベースへの疎通も確認する。
// いずれかが無効な場合はエラーを返す。
func runValidate(ctx context.Context, cfg *config.Config) error {
	c, err := newComponents(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	results := map[string]model.ConnectivityResult{
		"supabase": c.validator.Validate(ctx),
	}

	if cfg.DatabaseURL != "" {
		results["database"] = validateDatabase(ctx, cfg.DatabaseURL)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	for _, name := range []string{"supabase", "database"} {
		if r, ok := results[name]; ok && !r.Valid {
			return fmt.Errorf("%s validation failed: %s", name, r.Message)
		}
	}
	return nil
}

func validateDatabase(ctx context.Context, databaseURL string) model.ConnectivityResult {
	db, err := database.Open(databaseURL)
	if err != nil {
		return model.ConnectivityResult{Valid: false, Message: err.Error()}
	}
	defer db.Close()
	return diagnostics.ValidateDatabase(ctx, db)
}

// runMigrate はuser_settingsスキーマのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed",
		slog.Uint64("schema_version", uint64(status.Version)),
		slog.Bool("applied", status.Applied),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
