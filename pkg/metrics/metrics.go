package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	wsConns    prometheus.Gauge
	wsRejected prometheus.Counter
	wsBcastCnt *prometheus.CounterVec
	wsDropped  prometheus.Counter
}

func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds"}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "websocket_connections"})
	wsRejected := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "websocket_handshakes_rejected_total"})
	wsBcastCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "websocket_broadcasts_total"}, []string{"kind"})
	wsDropped := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "websocket_deliveries_dropped_total"})
	r.MustRegister(wsConns, wsRejected, wsBcastCnt, wsDropped)

	return &Metrics{
		registry:   r,
		namespace:  namespace,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		wsConns:    wsConns,
		wsRejected: wsRejected,
		wsBcastCnt: wsBcastCnt,
		wsDropped:  wsDropped,
	}
}

func (m *Metrics) ConnOpened()   { m.wsConns.Inc() }
func (m *Metrics) ConnClosed()   { m.wsConns.Dec() }
func (m *Metrics) ConnRejected() { m.wsRejected.Inc() }

func (m *Metrics) Broadcast(kind string) { m.wsBcastCnt.WithLabelValues(kind).Inc() }
func (m *Metrics) DeliveryDropped()      { m.wsDropped.Inc() }

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
