package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/storage"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) ObserveRequest(op string, status int, err error, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	var buf bytes.Buffer
	base := []Option{
		WithHTTPClient(server.Client()),
		WithLogger(newTestLogger(&buf)),
	}
	return NewClient(server.URL, "anon-key", append(base, opts...)...)
}

func TestFrom_SelectEqSingle_SendsPostgRESTRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != "/rest/v1/user_settings" {
			t.Errorf("パス = %s, want /rest/v1/user_settings", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "eq.u-1" {
			t.Errorf("user_id = %q, want %q", got, "eq.u-1")
		}
		if got := r.URL.Query().Get("select"); got != "*" {
			t.Errorf("select = %q, want %q", got, "*")
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.pgrst.object+json" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q, want anon-key", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer anon-key" {
			t.Errorf("Authorization = %q, want Bearer anon-key", got)
		}
		if got := r.Header.Get("x-application-name"); got != "scurrysheets" {
			t.Errorf("x-application-name = %q, want scurrysheets", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"u-1","email":"a@example.com","api_usage_count":3}`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, server, WithObserver(obs))

	var row model.UserSettings
	err := c.From("user_settings").Select("*").Eq("user_id", "u-1").Single().Execute(context.Background(), &row)
	if err != nil {
		t.Fatalf("Execute がエラーを返した: %v", err)
	}
	if row.UserID != "u-1" || row.Email == nil || *row.Email != "a@example.com" {
		t.Errorf("デコード結果 = %+v", row)
	}
	if row.APIUsageCount == nil || *row.APIUsageCount != 3 {
		t.Errorf("api_usage_count = %v, want 3", row.APIUsageCount)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "select:user_settings" {
		t.Errorf("観測された操作 = %v, want [select:user_settings]", obs.ops)
	}
}

func TestFrom_Single_NoRowsReturnsPGRST116(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotAcceptable)
		w.Write([]byte(`{"code":"PGRST116","details":"The result contains 0 rows","hint":null,"message":"JSON object requested, multiple (or no) rows returned"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	var row model.UserSettings
	err := c.From("user_settings").Select("*").Eq("user_id", "nobody").Single().Execute(context.Background(), &row)
	if err == nil {
		t.Fatal("0行の場合はエラーが返されるべき")
	}
	if !HasCode(err, CodeNoRows) {
		t.Errorf("HasCode(PGRST116) = false, err = %v", err)
	}

	var remote *Error
	if !errors.As(err, &remote) {
		t.Fatalf("*Error として取得できない: %T", err)
	}
	if remote.Status != http.StatusNotAcceptable {
		t.Errorf("Status = %d, want 406", remote.Status)
	}
	if remote.Details != "The result contains 0 rows" {
		t.Errorf("Details = %q", remote.Details)
	}
}

func TestFrom_InsertWithoutSelect_UsesReturnMinimal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=minimal" {
			t.Errorf("Prefer = %q, want return=minimal", got)
		}
		if r.URL.Query().Has("select") {
			t.Error("return=minimal の場合はselectを付与しない")
		}
		body, _ := io.ReadAll(r.Body)
		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			t.Fatalf("リクエストボディが配列でない: %v", err)
		}
		if len(rows) != 1 || rows[0]["user_id"] != "u-1" {
			t.Errorf("rows = %v", rows)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	rows := []*model.UserSettings{model.NewUserSettings("u-1", "", "", "", time.Now())}
	if err := c.From("user_settings").Insert(rows).Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute がエラーを返した: %v", err)
	}
}

func TestFrom_UpdateWithSelect_ReturnsRepresentation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("HTTPメソッド = %s, want PATCH", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q, want return=representation", got)
		}
		if got := r.URL.Query().Get("user_id"); got != "eq.u-1" {
			t.Errorf("user_id = %q", got)
		}
		w.Write([]byte(`{"user_id":"u-1","vision_api_key":"k"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	var row model.UserSettings
	err := c.From("user_settings").
		Update(map[string]any{"vision_api_key": "k"}).
		Eq("user_id", "u-1").
		Select("*").
		Single().
		Execute(context.Background(), &row)
	if err != nil {
		t.Fatalf("Execute がエラーを返した: %v", err)
	}
	if row.VisionAPIKey == nil || *row.VisionAPIKey != "k" {
		t.Errorf("vision_api_key = %v, want k", row.VisionAPIKey)
	}
}

func TestFrom_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit = %q, want 1", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	var rows []model.UserSettings
	if err := c.From("user_settings").Select("*").Limit(1).Execute(context.Background(), &rows); err != nil {
		t.Fatalf("Execute がエラーを返した: %v", err)
	}
}

func TestDo_TransportFailure_ReturnsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(url, "anon-key", WithLogger(newTestLogger(&buf)))

	err := c.From("user_settings").Select("*").Limit(1).Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("接続できない場合はエラーが返されるべき")
	}
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("errors.Is(err, ErrFetchFailed) = false: %v", err)
	}
	if !strings.Contains(err.Error(), "Failed to fetch") {
		t.Errorf("エラーメッセージに Failed to fetch が含まれない: %v", err)
	}
}

func TestParseError_Variants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "PostgREST",
			body:     `{"code":"42P01","message":"relation \"public.user_settings\" does not exist"}`,
			wantCode: "42P01",
			wantMsg:  `relation "public.user_settings" does not exist`,
		},
		{
			name:     "GoTrue数値コード",
			body:     `{"code":400,"error_code":"bad_code_verifier","msg":"code challenge does not match"}`,
			wantCode: "bad_code_verifier",
			wantMsg:  "code challenge does not match",
		},
		{
			name:     "OAuth形式",
			body:     `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`,
			wantCode: "invalid_grant",
			wantMsg:  "Invalid Refresh Token",
		},
		{
			name:    "JSON以外",
			body:    "upstream timeout",
			wantMsg: "upstream timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseError(http.StatusBadRequest, []byte(tt.body))
			if e.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestStorageKeyFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://abcdefgh.supabase.co", "sb-abcdefgh-auth-token"},
		{"http://localhost:54321", "sb-localhost-auth-token"},
		{"::not a url", "sb-default-auth-token"},
	}
	for _, tt := range tests {
		if got := storageKeyFor(tt.url); got != tt.want {
			t.Errorf("storageKeyFor(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewClient_DoesNotValidateConfiguration(t *testing.T) {
	c := NewClient("", "")
	if c == nil || c.Auth == nil {
		t.Fatal("不正な設定でもClientは生成されるべき")
	}
	if _, ok := c.storage.(*storage.MemoryStorage); !ok {
		t.Errorf("既定のストレージは MemoryStorage であるべき: %T", c.storage)
	}
}
