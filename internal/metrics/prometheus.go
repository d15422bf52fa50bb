//go:build !noprom

package metrics

import (
	"log/slog"
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphstore"

type promRecorder struct {
	dbTotal     *prom.CounterVec
	dbSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	poolInUse   prom.Gauge
	poolIdle    prom.Gauge
	stmtHits    *prom.CounterVec
	stmtMisses  *prom.CounterVec
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) ObservePoolStats(inUse, idle int) {
	p.poolInUse.Set(float64(inUse))
	p.poolIdle.Set(float64(idle))
}

func (p *promRecorder) IncStmtCacheHit(kind string) {
	p.stmtHits.WithLabelValues(kind).Inc()
}

func (p *promRecorder) IncStmtCacheMiss(kind string) {
	p.stmtMisses.WithLabelValues(kind).Inc()
}

// newPromRecorder builds the collectors and registers them on reg
func newPromRecorder(reg prom.Registerer) *promRecorder {
	p := &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "db_ops_total",
			Help:      "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "db_op_seconds",
			Help:      "DB operation duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_seconds",
			Help:      "Tool handler duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"tool", "success"}),
		poolInUse: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_in_use",
			Help:      "Connections currently acquired from the pool",
		}),
		poolIdle: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_idle",
			Help:      "Idle connections held by the pool",
		}),
		stmtHits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stmt_cache_hits_total",
			Help:      "Rendered statement cache hits",
		}, []string{"kind"}),
		stmtMisses: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stmt_cache_misses_total",
			Help:      "Rendered statement cache misses",
		}, []string{"kind"}),
	}
	reg.MustRegister(p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds,
		p.poolInUse, p.poolIdle, p.stmtHits, p.stmtMisses)
	return p
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	SetRecorder(newPromRecorder(registry))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("prometheus metrics enabled", "addr", addr)
	return nil
}
