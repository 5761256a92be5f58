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
// 取得処理・ワーカー・通知から利用する。
type MetricsCollector interface {
	RecordFetchAttempt(platform string, success bool)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordHeadlessFallback(success bool)
	RecordCheck(outcome string)
	RecordAlert(kind string)
	RecordNotification(success bool)
	RecordEnqueued(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchAttempts    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	headlessFallback *prometheus.CounterVec
	checks           *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	enqueued         prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_fetch_attempts_total",
			Help: "商品ページ取得試行の合計数",
		}, []string{"platform", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salescout_fetch_latency_seconds",
			Help:    "商品ページ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		headlessFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_headless_fallback_total",
			Help: "ヘッドレスブラウザによる再取得の合計数",
		}, []string{"result"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_price_checks_total",
			Help: "価格チェックジョブの結果別合計数",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_alerts_total",
			Help: "発火したアラートの種類別合計数",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salescout_notifications_total",
			Help: "通知メール送信の結果別合計数",
		}, []string{"result"}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salescout_jobs_enqueued_total",
			Help: "キューに投入された価格チェックジョブの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchAttempts,
		c.httpStatus,
		c.fetchLatency,
		c.headlessFallback,
		c.checks,
		c.alerts,
		c.notifications,
		c.enqueued,
	)

	return c
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordFetchAttempt は1回の取得試行を記録する。
func (c *Collector) RecordFetchAttempt(platform string, success bool) {
	c.fetchAttempts.WithLabelValues(platform, resultLabel(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordHeadlessFallback はヘッドレスブラウザでの再取得結果を記録する。
func (c *Collector) RecordHeadlessFallback(success bool) {
	c.headlessFallback.WithLabelValues(resultLabel(success)).Inc()
}

// RecordCheck は価格チェックジョブの結果（done, retry, failed, skipped）を記録する。
func (c *Collector) RecordCheck(outcome string) {
	c.checks.WithLabelValues(outcome).Inc()
}

// RecordAlert はアラート発火を記録する。
func (c *Collector) RecordAlert(kind string) {
	c.alerts.WithLabelValues(kind).Inc()
}

// RecordNotification は通知メール送信結果を記録する。
func (c *Collector) RecordNotification(success bool) {
	c.notifications.WithLabelValues(resultLabel(success)).Inc()
}

// RecordEnqueued はキュー投入件数を記録する。
func (c *Collector) RecordEnqueued(count int) {
	c.enqueued.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordFetchAttempt(string, bool)  {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordHeadlessFallback(bool)      {}
func (Nop) RecordCheck(string)               {}
func (Nop) RecordAlert(string)               {}
func (Nop) RecordNotification(bool)          {}
func (Nop) RecordEnqueued(int)               {}
