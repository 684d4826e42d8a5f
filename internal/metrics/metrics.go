// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordCallbackOutcome(outcome string)
	RecordAuthzDenied(action string)
	RecordOtpIssued()
	RecordRequestDuration(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginTotal      *prometheus.CounterVec
	callbackOutcome *prometheus.CounterVec
	authzDenied     *prometheus.CounterVec
	otpIssued       prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_login_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		callbackOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_callback_outcome_total",
			Help: "認証コールバック解決の結果別合計数",
		}, []string{"outcome"}),
		authzDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_authz_denied_total",
			Help: "認可拒否の操作別合計数",
		}, []string{"action"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aula_otp_issued_total",
			Help: "発行されたワンタイムトークンの合計数",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aula_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
	}

	reg.MustRegister(
		c.loginTotal,
		c.callbackOutcome,
		c.authzDenied,
		c.otpIssued,
		c.requestDuration,
	)

	return c
}

// RecordLogin はログイン試行の結果（success / failure）を記録する。
func (c *Collector) RecordLogin(result string) {
	c.loginTotal.WithLabelValues(result).Inc()
}

// RecordCallbackOutcome は認証コールバックの解決結果を記録する。
// outcomeはリダイレクト成功時は"redirect"、失敗時はエラーコード。
func (c *Collector) RecordCallbackOutcome(outcome string) {
	c.callbackOutcome.WithLabelValues(outcome).Inc()
}

// RecordAuthzDenied は認可拒否を操作ラベル付きで記録する。
func (c *Collector) RecordAuthzDenied(action string) {
	c.authzDenied.WithLabelValues(action).Inc()
}

// RecordOtpIssued はワンタイムトークンの発行を記録する。
func (c *Collector) RecordOtpIssued() {
	c.otpIssued.Inc()
}

// RecordRequestDuration はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(method, route string, statusCode int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// statusRecorder はレスポンスのステータスコードを捕捉するResponseWriter。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware はリクエスト処理時間と403応答を記録するHTTPミドルウェアを返す。
// ルートラベルにはchiのルートパターンを使用する（高カーディナリティ回避）。
func Middleware(collector MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}

			collector.RecordRequestDuration(r.Method, route, rec.status, time.Since(start))
			if rec.status == http.StatusForbidden {
				collector.RecordAuthzDenied(r.Method + " " + route)
			}
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
