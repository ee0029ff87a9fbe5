package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Registry holds named metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	help       map[string]string
	kinds      map[string]kind
	order      []string // base names in registration order
	collectors []func()
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		help:       make(map[string]string),
		kinds:      make(map[string]kind),
	}
}

func (r *Registry) track(name string, k kind, help string) {
	base := metricBaseName(name)
	if _, ok := r.kinds[base]; !ok {
		r.order = append(r.order, base)
	}
	r.kinds[base] = k
	if help != "" {
		r.help[base] = help
	}
}

// Counter returns the counter called name, creating it if needed.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.track(name, kindCounter, help)
	return c
}

// Gauge returns the gauge called name, creating it if needed.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.track(name, kindGauge, help)
	return g
}

// Histogram returns the histogram called name, creating it with buckets
// (DefaultBuckets when nil) if needed.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.histograms[name] = h
	r.track(name, kindHistogram, help)
	return h
}

// OnCollect registers f to run before every Render.
func (r *Registry) OnCollect(f func()) {
	r.mu.Lock()
	r.collectors = append(r.collectors, f)
	r.mu.Unlock()
}

// WithLabels appends label pairs to name:
// WithLabels("foo", "k", "v") => `foo{k="v"}`. An odd number of kvs is ignored.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kvs[i])
		b.WriteString(`="`)
		b.WriteString(labelEscaper.Replace(kvs[i+1]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func metricBaseName(name string) string {
	if idx := strings.IndexByte(name, '{'); idx != -1 {
		return name[:idx]
	}
	return name
}

// Render returns the registry in Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	collectors := append([]func(){}, r.collectors...)
	r.mu.RUnlock()
	for _, f := range collectors {
		f()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		k := r.kinds[base]
		if h, ok := r.help[base]; ok {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, h)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, k)

		switch k {
		case kindCounter:
			for _, n := range namesFor(r.counters, base) {
				fmt.Fprintf(&b, "%s %d\n", n, r.counters[n].Value())
			}
		case kindGauge:
			for _, n := range namesFor(r.gauges, base) {
				fmt.Fprintf(&b, "%s %g\n", n, r.gauges[n].Value())
			}
		case kindHistogram:
			for _, n := range namesFor(r.histograms, base) {
				writeHistogram(&b, base, n, r.histograms[n])
			}
		}
	}
	return b.String()
}

func writeHistogram(b *strings.Builder, base, name string, h *Histogram) {
	buckets, counts, sum, count := h.snapshot()
	labels := innerLabels(name)
	sep := ""
	if labels != "" {
		sep = ","
	}
	var cumulative uint64
	for i, bk := range buckets {
		cumulative += counts[i]
		fmt.Fprintf(b, "%s_bucket{%s%sle=\"%g\"} %d\n", base, labels, sep, bk, cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{%s%sle=\"+Inf\"} %d\n", base, labels, sep, count)
	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, suffix, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, suffix, count)
}

func namesFor[M any](m map[string]M, base string) []string {
	var out []string
	for n := range m {
		if metricBaseName(n) == base {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// innerLabels returns `k="v"` for `foo{k="v"}`.
func innerLabels(name string) string {
	idx := strings.IndexByte(name, '{')
	if idx == -1 || !strings.HasSuffix(name, "}") {
		return ""
	}
	return name[idx+1 : len(name)-1]
}

// Handler serves the registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}
