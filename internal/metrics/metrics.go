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
// ハンドラー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(method, status string)
	RecordSessionStarted()
	RecordSessionEnded()
	RecordSessionsPurged(count int64)
	RecordShortURLAllocated()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	sessionsEnded   prometheus.Counter
	sessionsPurged  prometheus.Counter
	shortURLs       prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_attempts_total",
			Help: "認証方式と結果別のログイン試行数",
		}, []string{"method", "status"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_started_total",
			Help: "発行したセッションの合計数",
		}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_ended_total",
			Help: "ログアウトで破棄したセッションの合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_purged_total",
			Help: "クリーンアップで削除した期限切れセッションの合計数",
		}),
		shortURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_short_urls_allocated_total",
			Help: "新規に採番した短縮URLの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.sessionsStarted,
		c.sessionsEnded,
		c.sessionsPurged,
		c.shortURLs,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthAttempt はログイン試行を記録する。methodはlocal/register/プロバイダー名。
func (c *Collector) RecordAuthAttempt(method, status string) {
	c.authAttempts.WithLabelValues(method, status).Inc()
}

// RecordSessionStarted はセッション発行を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordSessionEnded はセッション破棄を記録する。
func (c *Collector) RecordSessionEnded() {
	c.sessionsEnded.Inc()
}

// RecordSessionsPurged は期限切れセッションの削除件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordShortURLAllocated は短縮URLの新規採番を記録する。
func (c *Collector) RecordShortURLAllocated() {
	c.shortURLs.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		// 収集に失敗したメトリクスがあっても残りは返す
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
