// Package supabase はホスト型バックエンド（GoTrue認証とPostgREST）のクライアントを提供する。
// 認証・データ操作はすべてこのパッケージのClientを経由する。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/scurrysheets/internal/storage"
)

const (
	// applicationName は全リクエストのx-application-nameヘッダーに付与する値。
	applicationName = "scurrysheets"

	restPath = "/rest/v1"
	authPath = "/auth/v1"
)

// RequestObserver はリモートリクエストの結果を受け取るインターフェース。
// メトリクス収集に使用する。errはトランスポート失敗時のみ非nil。
type RequestObserver interface {
	ObserveRequest(op string, status int, err error, duration time.Duration)
}

// Client は外部サービスへの唯一の入り口となるハンドル。
// 生成時にURLやキーを検証しない。設定ミスは実際の通信時に表面化する。
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   RequestObserver
	storage    storage.LocalStorage

	// Auth はGoTrue認証APIのクライアント。
	Auth *AuthClient
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger はロガーを指定する。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver はリクエストの観測者を指定する。
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithStorage はセッションとPKCE検証子の保存先を指定する。
// 未指定の場合はプロセス内メモリに保存する。
func WithStorage(s storage.LocalStorage) Option {
	return func(c *Client) {
		if s != nil {
			c.storage = s
		}
	}
}

// NewClient はClientを生成する。
func NewClient(supabaseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(supabaseURL, "/"),
		anonKey:    anonKey,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		storage:    storage.NewMemoryStorage(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Auth = newAuthClient(c)
	return c
}

// URL は設定されたベースURLを返す。
func (c *Client) URL() string {
	return c.baseURL
}

// request は1回のHTTPリクエストの内容を表す。
type request struct {
	op      string
	method  string
	url     string
	token   string
	body    any
	headers map[string]string
}

// do はリクエストを実行し、成功時はdstにレスポンスJSONをデコードする。
// 2xx以外は*Error、レスポンスを受け取れない場合は*FetchErrorを返す。
func (c *Client) do(ctx context.Context, r request, dst any) error {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token := r.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-application-name", applicationName)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.op, 0, err, time.Since(start))
		c.logger.Error("supabase request failed",
			slog.String("op", r.op),
			slog.String("error", err.Error()),
		)
		return &FetchError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(r.op, resp.StatusCode, nil, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: r.op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, data)
	}

	if dst == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, err error, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, err, d)
	}
}

// endpoint はベースURLにパスとクエリを連結する。
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
