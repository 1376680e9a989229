// Package metrics tracks runtime statistics of a relay server and
// exposes them to Prometheus.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "railrelay"

// Collector owns a private Prometheus registry plus atomic mirrors of
// the headline counters for Snapshot.
type Collector struct {
	reg *prometheus.Registry

	connsActive     prometheus.Gauge
	connsTotal      prometheus.Counter
	bytesIn         prometheus.Counter
	records         *prometheus.CounterVec
	decoded         prometheus.Counter
	errors          *prometheus.CounterVec
	identifiedPeers prometheus.GaugeFunc

	active   atomic.Int64
	total    atomic.Int64
	inBytes  atomic.Int64
	messages atomic.Int64
	errCount atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a collector with its own registry.  peers, if non-nil,
// is sampled for the identified-peer gauge.
func New(peers func() int) *Collector {
	c := &Collector{
		reg:       prometheus.NewRegistry(),
		startTime: time.Now(),
		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently being handled.",
		}),
		connsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Client connections accepted since start.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Bytes received from clients.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records received, by kind.",
		}, []string{"kind"}),
		decoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_decoded_total",
			Help:      "Payloads successfully deciphered and relayed.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Per-connection errors, by reason.",
		}, []string{"reason"}),
	}

	c.reg.MustRegister(c.connsActive, c.connsTotal, c.bytesIn, c.records, c.decoded, c.errors)
	if peers != nil {
		c.identifiedPeers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identified_peers",
			Help:      "Peers currently present in the session registry.",
		}, func() float64 { return float64(peers()) })
		c.reg.MustRegister(c.identifiedPeers)
	}
	return c
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.active.Add(1)
	c.total.Add(1)
	c.connsActive.Inc()
	c.connsTotal.Inc()
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.active.Add(-1)
	c.connsActive.Dec()
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// ── Traffic ──────────────────────────────────────────────────────────

// BytesReceived records n bytes read from a client.
func (c *Collector) BytesReceived(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.inBytes.Add(int64(n))
	c.bytesIn.Add(float64(n))
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.inBytes.Load()
}

// RecordReceived counts one record of the given kind
// ("identify", "payload", "disconnect").
func (c *Collector) RecordReceived(kind string) {
	if c == nil {
		return
	}
	c.records.WithLabelValues(kind).Inc()
}

// MessageDecoded counts one relayed payload.
func (c *Collector) MessageDecoded() {
	if c == nil {
		return
	}
	c.messages.Add(1)
	c.decoded.Inc()
}

// MessagesDecoded returns the number of relayed payloads.
func (c *Collector) MessagesDecoded() int64 {
	if c == nil {
		return 0
	}
	return c.messages.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError counts an error under reason and remembers msg.
func (c *Collector) RecordError(reason, msg string) {
	if c == nil {
		return
	}
	c.errCount.Add(1)
	c.errors.WithLabelValues(reason).Inc()
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errCount.Load()
}

// ── Exposition ───────────────────────────────────────────────────────

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes Handler at path on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of the headline counters.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	MessagesDecoded   int64  `json:"messages_decoded"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.active.Load(),
		ConnectionsTotal:  c.total.Load(),
		BytesIn:           c.inBytes.Load(),
		MessagesDecoded:   c.messages.Load(),
		ErrorsTotal:       c.errCount.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(data)
}
