package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/scurrysheets/internal/auth"
	"github.com/hitoshi/scurrysheets/internal/config"
	"github.com/hitoshi/scurrysheets/internal/diagnostics"
	"github.com/hitoshi/scurrysheets/internal/handler"
	"github.com/hitoshi/scurrysheets/internal/metrics"
	"github.com/hitoshi/scurrysheets/internal/middleware"
	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/repository"
	"github.com/hitoshi/scurrysheets/internal/security"
	"github.com/hitoshi/scurrysheets/internal/state"
	"github.com/hitoshi/scurrysheets/internal/storage"
	"github.com/hitoshi/scurrysheets/internal/supabase"
	"github.com/hitoshi/scurrysheets/internal/user"
)

// components はプロセス内で1つずつ生成する依存関係をまとめる。
type components struct {
	storage   *storage.FileStorage
	client    *supabase.Client
	state     *state.AppState
	registry  *prometheus.Registry
	collector *metrics.Collector
	profiles  *user.ProfileService
	syncer    *auth.Synchronizer
	auth      *auth.Service
	validator *diagnostics.Validator
	limiter   *middleware.RateLimiter

	unsubscribe func()
}

// newComponents は全依存関係をワイヤリングする。リモートへの通信は行わない。
func newComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	// 1. 永続化（パネル選択・セッション・PKCE検証子）
	fs, err := storage.NewFileStorage(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. Supabaseクライアント
	client := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey,
		supabase.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		supabase.WithStorage(fs),
		supabase.WithObserver(collector),
		supabase.WithLogger(logger),
	)
	unsubscribe := client.Auth.OnAuthStateChange(func(event supabase.AuthChangeEvent, _ *model.Session) {
		collector.RecordAuthEvent(string(event))
	})

	// 4. 状態とサービス
	appState := state.New(fs, logger)
	repo := repository.NewSupabaseUserSettingsRepo(client)
	profiles := user.NewProfileService(
		repo, client.Auth, security.NewMetadataSanitizer(),
		appState.Profile, collector, logger,
	)
	syncer := auth.NewSynchronizer(client.Auth, profiles, appState, appState.Route, logger)
	authService := auth.NewService(client.Auth, auth.GoogleOAuthConfig{BaseURL: cfg.BaseURL}, logger)
	validator := diagnostics.NewValidator(repo, logger)

	return &components{
		storage:     fs,
		client:      client,
		state:       appState,
		registry:    registry,
		collector:   collector,
		profiles:    profiles,
		syncer:      syncer,
		auth:        authService,
		validator:   validator,
		limiter:     middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitAuth)),
		unsubscribe: unsubscribe,
	}, nil
}

// router はコールバックサーバーのハンドラーを構築する。
func (c *components) router(logger *slog.Logger) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		AuthService: c.auth,
		RateLimiter: c.limiter,
		Gatherer:    c.registry,
		Logger:      logger,
	})
}

// Close はバックグラウンド処理を停止する。
func (c *components) Close() {
	c.syncer.Wait()
	c.limiter.Stop()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
