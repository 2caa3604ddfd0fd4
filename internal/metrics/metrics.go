// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Supabaseクライアントやサービス層から利用する。
type MetricsCollector interface {
	ObserveRequest(op string, status int, err error, duration time.Duration)
	RecordAuthEvent(event string)
	RecordProfileFetch(outcome string)
}

// transportErrorStatus はトランスポート失敗時のstatusラベル。
const transportErrorStatus = "transport_error"

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	authEvents     *prometheus.CounterVec
	profileFetches *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scurrysheets_supabase_requests_total",
			Help: "Supabaseへのリクエスト数（操作・ステータス別）",
		}, []string{"op", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scurrysheets_supabase_request_duration_seconds",
			Help:    "Supabaseへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scurrysheets_auth_events_total",
			Help: "認証イベントの配信数",
		}, []string{"event"}),
		profileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scurrysheets_profile_fetch_total",
			Help: "プロフィール取得の結果別の回数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.authEvents,
		c.profileFetches,
	)

	return c
}

// ObserveRequest はリモートリクエストの結果とレイテンシを記録する。
func (c *Collector) ObserveRequest(op string, status int, err error, duration time.Duration) {
	label := strconv.Itoa(status)
	if err != nil {
		label = transportErrorStatus
	}
	c.requests.WithLabelValues(op, label).Inc()
	c.requestLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordProfileFetch はプロフィール取得の結果を記録する。
func (c *Collector) RecordProfileFetch(outcome string) {
	c.profileFetches.WithLabelValues(outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
