package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/labelkit/pkg/errors"
)

const namespace = "labelkit"

// Prometheus implements every hook interface by recording metrics in a
// private registry. Safe for concurrent use.
type Prometheus struct {
	registry *prometheus.Registry

	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	labelsRendered prometheus.Counter

	prints        *prometheus.CounterVec
	printDuration *prometheus.HistogramVec
	printBytes    prometheus.Counter
	printRetries  prometheus.Counter
	inFlight      prometheus.Gauge

	cacheOps *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Label render calls by outcome.",
		}, []string{"outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering label artifacts.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"outcome"}),
		labelsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_rendered_total",
			Help:      "ZPL label blocks rendered.",
		}),
		prints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prints_total",
			Help:      "Print attempts by printer and error code.",
		}, []string{"printer", "code"}),
		printDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "print_duration_seconds",
			Help:      "Connect, write and close time per print attempt.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 6, 10},
		}, []string{"printer"}),
		printBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "print_bytes_total",
			Help:      "Payload bytes delivered to printers.",
		}),
		printRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "print_retries_total",
			Help:      "Print attempts repeated after a transient failure.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prints_in_flight",
			Help:      "Print attempts currently connecting or sending.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache lookups and writes by key type and result.",
		}, []string{"key_type", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.renders, p.renderDuration, p.labelsRendered,
		p.prints, p.printDuration, p.printBytes, p.printRetries, p.inFlight,
		p.cacheOps,
		p.httpRequests, p.httpDuration,
	)
	return p
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Register installs p as the render, print, cache and HTTP hooks.
func (p *Prometheus) Register() {
	SetRenderHooks(p)
	SetPrintHooks(p)
	SetCacheHooks(p)
	SetHTTPHooks(p)
}

func (p *Prometheus) OnRenderStart(context.Context, []string) {}

func (p *Prometheus) OnRenderComplete(_ context.Context, _ []string, blocks int, d time.Duration, err error) {
	o := outcome(err)
	p.renders.WithLabelValues(o).Inc()
	p.renderDuration.WithLabelValues(o).Observe(d.Seconds())
	if err == nil {
		p.labelsRendered.Add(float64(blocks))
	}
}

func (p *Prometheus) OnPrintStart(context.Context, string) {
	p.inFlight.Inc()
}

func (p *Prometheus) OnPrintComplete(_ context.Context, addr string, bytes int, d time.Duration, err error) {
	p.inFlight.Dec()
	code := "OK"
	if err != nil {
		if code = string(errors.GetCode(err)); code == "" {
			code = string(errors.ErrCodeInternal)
		}
	}
	p.prints.WithLabelValues(addr, code).Inc()
	p.printDuration.WithLabelValues(addr).Observe(d.Seconds())
	p.printBytes.Add(float64(bytes))
}

func (p *Prometheus) OnRetry(context.Context, string, int, error) {
	p.printRetries.Inc()
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, _ int) {
	p.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (p *Prometheus) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
