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
// ゲートウェイ、Linearクライアント、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordUpstreamRequest(operation, outcome string, duration time.Duration)
	RecordCommentSubmitted()
	RecordCommentRejected(reason string)
	RecordUnknownState()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	upstreamRequests  *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	commentsSubmitted prometheus.Counter
	commentsRejected  *prometheus.CounterVec
	unknownStates     prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadmap_cache_hits_total",
			Help: "キャッシュヒット数",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadmap_cache_misses_total",
			Help: "キャッシュミス数",
		}, []string{"cache"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadmap_upstream_requests_total",
			Help: "Linear API呼び出し数（操作・結果別）",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roadmap_upstream_latency_seconds",
			Help:    "Linear API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		commentsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadmap_comments_submitted_total",
			Help: "投稿に成功したコメント数",
		}),
		commentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadmap_comments_rejected_total",
			Help: "拒否されたコメント投稿数（理由別）",
		}, []string{"reason"}),
		unknownStates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadmap_unknown_states_total",
			Help: "対応表にないワークフロー状態名の検出数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadmap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.upstreamRequests,
		c.upstreamLatency,
		c.commentsSubmitted,
		c.commentsRejected,
		c.unknownStates,
		c.httpStatus,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordUpstreamRequest はLinear API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamRequest(operation, outcome string, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(operation, outcome).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCommentSubmitted はコメント投稿成功を記録する。
func (c *Collector) RecordCommentSubmitted() {
	c.commentsSubmitted.Inc()
}

// RecordCommentRejected はコメント投稿の拒否を記録する。
func (c *Collector) RecordCommentRejected(reason string) {
	c.commentsRejected.WithLabelValues(reason).Inc()
}

// RecordUnknownState は未知のワークフロー状態名の検出を記録する。
func (c *Collector) RecordUnknownState() {
	c.unknownStates.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクス無効時とテストで使用する。
type Nop struct{}

func (Nop) RecordCacheHit(string)                                {}
func (Nop) RecordCacheMiss(string)                               {}
func (Nop) RecordUpstreamRequest(string, string, time.Duration) {}
func (Nop) RecordCommentSubmitted()                              {}
func (Nop) RecordCommentRejected(string)                         {}
func (Nop) RecordUnknownState()                                  {}
func (Nop) RecordHTTPStatus(int)                                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
