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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordSignIn(method string, success bool)
	RecordNoticeCreated(source string)
	RecordQuerySubmitted()
	RecordQueryResponded(status string)
	RecordHTTPStatus(statusCode int)
	RecordImportFailure(reason string)
	RecordImportLatency(duration time.Duration)
	RecordNoticesImported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns          *prometheus.CounterVec
	noticesCreated   *prometheus.CounterVec
	queriesSubmitted prometheus.Counter
	queriesResponded *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	importFail       *prometheus.CounterVec
	importLatency    prometheus.Histogram
	noticesImported  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collegeconnect_sign_in_total",
			Help: "サインイン試行数（方法・結果別）",
		}, []string{"method", "outcome"}),
		noticesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collegeconnect_notices_created_total",
			Help: "作成されたお知らせの合計数（作成元別）",
		}, []string{"source"}),
		queriesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collegeconnect_queries_submitted_total",
			Help: "投稿された質問の合計数",
		}),
		queriesResponded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collegeconnect_queries_responded_total",
			Help: "回答された質問の合計数（設定ステータス別）",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collegeconnect_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collegeconnect_import_fail_total",
			Help: "お知らせ取り込み失敗の合計数（理由別）",
		}, []string{"reason"}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collegeconnect_import_latency_seconds",
			Help:    "フィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		noticesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collegeconnect_notices_imported_total",
			Help: "フィードから取り込まれたお知らせの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.noticesCreated,
		c.queriesSubmitted,
		c.queriesResponded,
		c.httpStatus,
		c.importFail,
		c.importLatency,
		c.noticesImported,
	)

	return c
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(method string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.signIns.WithLabelValues(method, outcome).Inc()
}

// RecordNoticeCreated はお知らせの作成を記録する。sourceは"admin"または"import"。
func (c *Collector) RecordNoticeCreated(source string) {
	c.noticesCreated.WithLabelValues(source).Inc()
}

// RecordQuerySubmitted は質問の投稿を記録する。
func (c *Collector) RecordQuerySubmitted() {
	c.queriesSubmitted.Inc()
}

// RecordQueryResponded は質問への回答を記録する。
func (c *Collector) RecordQueryResponded(status string) {
	c.queriesResponded.WithLabelValues(status).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordImportFailure は取り込み失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordImportLatency は1フィード分の取り込みレイテンシを記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordNoticesImported は取り込まれたお知らせ数を記録する。
func (c *Collector) RecordNoticesImported(count int) {
	c.noticesImported.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで使う。
type Nop struct{}

func (Nop) RecordSignIn(string, bool) {}
func (Nop) RecordNoticeCreated(string) {}
func (Nop) RecordQuerySubmitted() {}
func (Nop) RecordQueryResponded(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordImportFailure(string) {}
func (Nop) RecordImportLatency(time.Duration) {}
func (Nop) RecordNoticesImported(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
