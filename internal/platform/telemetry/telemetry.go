// Package telemetry records HTTP and domain metrics in memory and serves them
// in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/platform/events"
)

// Config identifies the service in the exported build info metric.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// histogram counts observations into fixed upper bounds. Counts are kept
// per bucket and made cumulative when exported.
type histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []int64
	n      int64
	sum    float64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, counts: make([]int64, len(bounds))}
}

func (h *histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	h.n++
	h.sum += v
	if i < len(h.counts) {
		h.counts[i]++
	}
	h.mu.Unlock()
}

func (h *histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func (h *histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.counts))
	var total int64
	for i, c := range h.counts {
		total += c
		out[i] = total
	}
	return out
}

// LabelsKey joins label values into a series key.
func LabelsKey(values ...string) string {
	return strings.Join(values, "|")
}

// series maps label keys to metrics created on first use.
type series[M any] struct {
	mu    sync.RWMutex
	items map[string]M
	newM  func() M
}

func newSeries[M any](mk func() M) *series[M] {
	return &series[M]{items: make(map[string]M), newM: mk}
}

func (s *series[M]) at(key string) M {
	s.mu.RLock()
	m, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return m
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok = s.items[key]; !ok {
		m = s.newM()
		s.items[key] = m
	}
	return m
}

// get returns the metric for key without creating it.
func (s *series[M]) get(key string) (M, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[key]
	return m, ok
}

func (s *series[M]) snapshot() map[string]M {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]M, len(s.items))
	for k, m := range s.items {
		out[k] = m
	}
	return out
}

func counterValue(s *series[*atomic.Int64], key string) int64 {
	if c, ok := s.get(key); ok {
		return c.Load()
	}
	return 0
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// defaultDurationBuckets are request duration boundaries in seconds.
var defaultDurationBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

type gaugeFunc struct {
	name string
	help string
	fn   func() int64
}

// Provider holds every metric the process exports.
type Provider struct {
	cfg Config

	durations *series[*histogram]
	requests  *series[*atomic.Int64]
	events    *series[*atomic.Int64]
	active    atomic.Int64

	gaugeMu sync.RWMutex
	gauges  []gaugeFunc
}

func NewProvider(cfg Config) *Provider {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "medbliss"
	}
	return &Provider{
		cfg:       cfg,
		durations: newSeries(func() *histogram { return newHistogram(defaultDurationBuckets) }),
		requests:  newSeries(func() *atomic.Int64 { return new(atomic.Int64) }),
		events:    newSeries(func() *atomic.Int64 { return new(atomic.Int64) }),
	}
}

// GaugeFunc exports fn as a gauge, sampled on every scrape.
func (p *Provider) GaugeFunc(name, help string, fn func() int64) {
	p.gaugeMu.Lock()
	defer p.gaugeMu.Unlock()
	p.gauges = append(p.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

// Subscribe counts every client-visible domain event by topic.
func (p *Provider) Subscribe(bus *events.Bus) error {
	for _, topic := range events.Topics {
		if err := bus.Subscribe(topic, func(e events.Event) {
			p.events.at(e.Topic).Add(1)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RequestCount returns the number of finished requests for the labels.
func (p *Provider) RequestCount(method, route string, status int) int64 {
	return counterValue(p.requests, LabelsKey(method, route, strconv.Itoa(status)))
}

// EventCount returns how many events of topic were published.
func (p *Provider) EventCount(topic string) int64 {
	return counterValue(p.events, topic)
}

// ActiveRequests returns the number of requests in flight.
func (p *Provider) ActiveRequests() int64 {
	return p.active.Load()
}

// Middleware records request counts and durations keyed by route pattern, so
// /bookings/:id is one series regardless of the id.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			p.active.Add(1)
			start := time.Now()

			err := next(c)

			p.active.Add(-1)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			key := LabelsKey(c.Request().Method, route, strconv.Itoa(status))
			p.requests.at(key).Add(1)
			p.durations.at(key).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves GET /metrics.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		b.WriteString("# HELP medbliss_build_info Service build information.\n")
		b.WriteString("# TYPE medbliss_build_info gauge\n")
		fmt.Fprintf(&b, "medbliss_build_info{service=%q,version=%q,environment=%q} 1\n\n",
			p.cfg.ServiceName, p.cfg.ServiceVersion, p.cfg.Environment)

		b.WriteString("# HELP http_requests_total Finished HTTP requests.\n")
		b.WriteString("# TYPE http_requests_total counter\n")
		requests := p.requests.snapshot()
		for _, key := range sortedKeys(requests) {
			fmt.Fprintf(&b, "http_requests_total{%s} %d\n", requestLabels(key), requests[key].Load())
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_request_duration_seconds histogram\n")
		durations := p.durations.snapshot()
		for _, key := range sortedKeys(durations) {
			writeHistogram(&b, "http_request_duration_seconds", requestLabels(key), durations[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_requests_in_flight Requests currently being served.\n")
		b.WriteString("# TYPE http_requests_in_flight gauge\n")
		fmt.Fprintf(&b, "http_requests_in_flight %d\n\n", p.ActiveRequests())

		b.WriteString("# HELP medbliss_events_total Domain events published, by topic.\n")
		b.WriteString("# TYPE medbliss_events_total counter\n")
		evs := p.events.snapshot()
		for _, topic := range sortedKeys(evs) {
			fmt.Fprintf(&b, "medbliss_events_total{topic=%q} %d\n", topic, evs[topic].Load())
		}
		b.WriteByte('\n')

		p.gaugeMu.RLock()
		gauges := append([]gaugeFunc(nil), p.gauges...)
		p.gaugeMu.RUnlock()
		for _, g := range gauges {
			fmt.Fprintf(&b, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&b, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&b, "%s %d\n\n", g.name, g.fn())
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func requestLabels(key string) string {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return ""
	}
	return fmt.Sprintf("method=%q,route=%q,status=%q", parts[0], parts[1], parts[2])
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	for i, boundary := range h.bounds {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count())
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, h.Count())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
