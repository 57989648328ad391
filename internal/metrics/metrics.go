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
// APIクライアント、セッションゲート、商品ストアから利用する。
type MetricsCollector interface {
	RecordAPIRequest(operation string, statusCode int, duration time.Duration)
	RecordSessionTeardown(reason string)
	SetProductCount(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	teardowns    *prometheus.CounterVec
	productCount prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrogestao_api_requests_total",
			Help: "リモートAPIへのリクエスト数（操作・ステータスコード別）",
		}, []string{"operation", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrogestao_api_request_duration_seconds",
			Help:    "リモートAPIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrogestao_session_teardowns_total",
			Help: "セッション破棄の回数（理由別）",
		}, []string{"reason"}),
		productCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agrogestao_products",
			Help: "ストアが保持している商品数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.teardowns,
		c.productCount,
	)

	return c
}

// RecordAPIRequest はAPIリクエストの結果を記録する。
// 通信失敗でレスポンスがない場合はstatusCodeに0を渡す。
func (c *Collector) RecordAPIRequest(operation string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSessionTeardown はセッション破棄を記録する。
func (c *Collector) RecordSessionTeardown(reason string) {
	c.teardowns.WithLabelValues(reason).Inc()
}

// SetProductCount は現在の商品数を記録する。
func (c *Collector) SetProductCount(count int) {
	c.productCount.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成とテストで使用する。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordSessionTeardown(string)                {}
func (Nop) SetProductCount(int)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
