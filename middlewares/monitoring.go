package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shop_service_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_service_operations_total",
			Help: "Total number of business operations",
		},
		[]string{"operation", "status"},
	)

	// 业务指标, 由 services 直接上报
	stockRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_service_stock_rejections_total",
			Help: "Reservations rejected because of insufficient stock",
		},
	)

	voucherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_service_voucher_events_total",
			Help: "Voucher applications, releases and redemptions",
		},
		[]string{"event"},
	)

	expiredOrders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_service_orders_expired_total",
			Help: "Unpaid orders cancelled by the payment check",
		},
	)

	paymentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_service_payments_total",
			Help: "Payment confirmations by result",
		},
		[]string{"result"},
	)
)

const (
	VoucherApplied      = "applied"
	VoucherBelowMinimum = "below_minimum"
	VoucherReleased     = "released"
	VoucherRedeemed     = "redeemed"

	PaymentConfirmed      = "confirmed"
	PaymentAmountMismatch = "amount_mismatch"
)

// PrometheusMiddleware 收集 Prometheus 指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)
	}
}

// RecordOrderOperation 记录业务操作指标, 4xx 以及 5xx 都算作 error
func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

// RecordOperation 在 handler 结束时按响应状态记录
func RecordOperation(c *gin.Context, operation string) {
	code := c.Writer.Status()
	RecordOrderOperation(operation, code >= 200 && code < 300)
}

func RecordStockRejection() {
	stockRejections.Inc()
}

func RecordVoucherEvent(event string) {
	voucherEvents.WithLabelValues(event).Inc()
}

func RecordOrderExpired() {
	expiredOrders.Inc()
}

func RecordPayment(result string) {
	paymentResults.WithLabelValues(result).Inc()
}
