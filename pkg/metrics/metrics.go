package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Simple, dependency-free metrics with Prometheus text exposition.
// Keep implementation minimal: atomic values, mutex-protected registries.

// Counter is a monotonically increasing number.
type Counter struct {
	name string
	help string
	val  int64
}

func (c *Counter) Inc(delta int64) { atomic.AddInt64(&c.val, delta) }
func (c *Counter) Get() int64      { return atomic.LoadInt64(&c.val) }

// Gauge is an arbitrary number that can go up and down.
type Gauge struct {
	name string
	help string
	f64  uint64 // float64 bits stored atomically
}

func (g *Gauge) SetFloat64(v float64) { atomic.StoreUint64(&g.f64, math.Float64bits(v)) }
func (g *Gauge) GetFloat64() float64  { return math.Float64frombits(atomic.LoadUint64(&g.f64)) }

// Histogram with fixed buckets (cumulative counts per upper bound) and sum/count.
type Histogram struct {
	name    string
	help    string
	buckets []float64 // sorted ascending, last is +Inf
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ub := range h.buckets {
		if v <= ub {
			h.counts[i]++
			break
		}
	}
	h.sum += v
	h.count++
}

// Registry holds all metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

var Default = NewRegistry()

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: sanitize(name), help: help}
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: sanitize(name), help: help}
	r.gauges[name] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sorted := append([]float64{}, buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{name: sanitize(name), help: help, buckets: sorted, counts: make([]uint64, len(sorted))}
	r.histograms[name] = h
	return h
}

// Handler returns an http.Handler that exposes metrics in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		r.mu.RLock()
		cs := make([]*Counter, 0, len(r.counters))
		for _, c := range r.counters {
			cs = append(cs, c)
		}
		gs := make([]*Gauge, 0, len(r.gauges))
		for _, g := range r.gauges {
			gs = append(gs, g)
		}
		hs := make([]*Histogram, 0, len(r.histograms))
		for _, h := range r.histograms {
			hs = append(hs, h)
		}
		r.mu.RUnlock()

		// stable ordering for determinism
		sort.Slice(cs, func(i, j int) bool { return cs[i].name < cs[j].name })
		sort.Slice(gs, func(i, j int) bool { return gs[i].name < gs[j].name })
		sort.Slice(hs, func(i, j int) bool { return hs[i].name < hs[j].name })

		for _, c := range cs {
			fmt.Fprintf(w, "# HELP %s %s\n", c.name, escapeHelp(c.help))
			fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(w, "%s %d\n", c.name, c.Get())
		}
		for _, g := range gs {
			fmt.Fprintf(w, "# HELP %s %s\n", g.name, escapeHelp(g.help))
			fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(w, "%s %g\n", g.name, g.GetFloat64())
		}
		for _, h := range hs {
			fmt.Fprintf(w, "# HELP %s %s\n", h.name, escapeHelp(h.help))
			fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
			h.mu.Lock()
			var cum uint64
			for i, ub := range h.buckets {
				cum += h.counts[i]
				if math.IsInf(ub, 1) {
					fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, cum)
				} else {
					fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", h.name, ub, cum)
				}
			}
			fmt.Fprintf(w, "%s_sum %g\n", h.name, h.sum)
			fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
			h.mu.Unlock()
		}
	})
}

func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		ok := r == '_' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\n", "\\n")
}
