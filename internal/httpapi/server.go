package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/highlight"
)

// Store lists persisted highlight events.
type Store interface {
	CountHighlights(ctx context.Context, filters Filters) (int64, error)
	ListHighlights(ctx context.Context, filters Filters) ([]core.HighlightEvent, error)
}

// Checker evaluates messages against the installed highlight rules.
type Checker interface {
	Check(msg *highlight.Message) (bool, highlight.Result)
	Sequence() highlight.Sequence
}

type Options struct {
	Addr        string
	CORSOrigins []string
	RateRPS     int
	RateBurst   int
	// CheckRPS and CheckBurst size the /check bucket, kept apart from the
	// read routes. Zero falls back to RateRPS and RateBurst.
	CheckRPS   int
	CheckBurst int
	// CheckMaxBytes caps a /check body; larger posts get 413.
	CheckMaxBytes int64
	Build         BuildInfo
	// Registry receives the HTTP collectors and is served at /metrics.
	// A private registry is used when nil.
	Registry *prometheus.Registry
	// DisableMetrics leaves /metrics unrouted; collectors still record.
	DisableMetrics bool
	// DefaultSoundURL is reported by /check when a rule asks for sound
	// without a custom URL.
	DefaultSoundURL string
}

const (
	transportSSE = "sse"
	transportWS  = "ws"

	clientBuffer     = 256
	keepAlive        = 20 * time.Second
	defaultCheckBody = 64 << 10

	routeInfo       = "/info"
	routeCount      = "/count"
	routeHighlights = "/highlights"
	routeStream     = "/stream"
	routeWS         = "/ws"
	routeCheck      = "/check"
	routeRules      = "/rules"
)

type streamClient struct {
	ch        chan core.HighlightEvent
	filters   Filters
	transport string
}

type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	store      Store
	checker    Checker
	opts       Options
	metrics    *Metrics
	origins    origins

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

func New(store Store, checker Checker, opts Options) *Server {
	srv := &Server{
		store:   store,
		checker: checker,
		opts:    opts,
		metrics: newMetrics(opts.Registry),
		origins: newOrigins(opts.CORSOrigins),
		clients: make(map[*streamClient]struct{}),
	}

	reads := newClientLimits(opts.RateRPS, opts.RateBurst)
	checkRPS, checkBurst := opts.CheckRPS, opts.CheckBurst
	if checkRPS <= 0 {
		checkRPS, checkBurst = opts.RateRPS, opts.RateBurst
	}
	checkBody := opts.CheckMaxBytes
	if checkBody <= 0 {
		checkBody = defaultCheckBody
	}
	get := []string{http.MethodGet, http.MethodHead}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	if !opts.DisableMetrics {
		mux.Handle("/metrics", srv.metrics.Handler())
	}
	for _, rt := range []struct {
		route
		h http.HandlerFunc
	}{
		{route{name: routeInfo, methods: get, limiter: reads}, srv.handleInfo},
		{route{name: routeCount, methods: get, limiter: reads}, srv.handleCount},
		{route{name: routeHighlights, methods: get, limiter: reads, compress: true}, srv.handleHighlights},
		{route{name: routeStream, methods: get, limiter: reads}, srv.handleStream},
		{route{name: routeWS, methods: get, limiter: reads}, srv.handleWS},
		{route{name: routeRules, methods: get, limiter: reads, compress: true}, srv.handleRules},
		{route{
			name:    routeCheck,
			methods: []string{http.MethodPost},
			limiter: newClientLimits(checkRPS, checkBurst),
			maxBody: checkBody,
		}, srv.handleCheck},
	} {
		mux.HandleFunc(rt.name, srv.wrap(rt.route, rt.h))
	}

	srv.mux = mux
	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Mux lets other packages mount extra routes, such as the admin endpoints.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// wrap applies the route policy: per-client limiting, CORS, the body cap
// and optional gzip. Every outcome is counted under the route name.
func (s *Server) wrap(rt route, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			s.metrics.observeRequest(rt, r.Method, sw.code(), time.Since(start))
		}()

		if !rt.limiter.allow(clientAddr(r), start) {
			s.metrics.limited(rt)
			sw.Header().Set("Retry-After", "1")
			http.Error(sw, "rate limited", http.StatusTooManyRequests)
			return
		}
		if ok, done := s.origins.cors(sw, r, rt); !ok || done {
			return
		}
		if rt.maxBody > 0 {
			r.Body = http.MaxBytesReader(sw, r.Body, rt.maxBody)
		}
		if rt.compress && acceptsGzip(r) {
			gz := &gzipWriter{ResponseWriter: sw}
			defer gz.Close()
			h(gz, r)
			return
		}
		h(sw, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, err := s.store.CountHighlights(r.Context(), filters)
	if err != nil {
		log.Printf("httpapi: count: %v", err)
		http.Error(w, "count error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.store.ListHighlights(r.Context(), filters)
	if err != nil {
		log.Printf("httpapi: list highlights: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []core.HighlightEvent{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) subscribe(filters Filters, transport string) (*streamClient, bool) {
	c := &streamClient{
		ch:        make(chan core.HighlightEvent, clientBuffer),
		filters:   filters.CloneForStream(),
		transport: transport,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.clients[c] = struct{}{}
	return c, true
}

func (s *Server) unsubscribe(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client, ok := s.subscribe(filters, transportSSE)
	if !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.unsubscribe(client)
	s.metrics.streamClient(transportSSE, 1)
	defer s.metrics.streamClient(transportSSE, -1)

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ":ok\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ":ping\n\n")
			flusher.Flush()
		case ev, ok := <-client.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: highlight\ndata: %s\n\n", ev.ID, data)
			flusher.Flush()
			s.metrics.delivered(transportSSE)
		}
	}
}

// Broadcast delivers ev to every stream client whose filters match. Slow
// clients lose events rather than block the caller.
func (s *Server) Broadcast(ev core.HighlightEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if !c.filters.Matches(ev) {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			s.metrics.dropped(c.transport)
		}
	}
}

// ReportWriteError counts a failed sink write.
func (s *Server) ReportWriteError() {
	s.metrics.writeFailed()
}

func (s *Server) Start() error {
	log.Printf("http api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for c := range s.clients {
		close(c.ch)
	}
	s.clients = make(map[*streamClient]struct{})
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
