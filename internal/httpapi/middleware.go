package httpapi

import (
	"bufio"
	"compress/gzip"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// route is the per-endpoint policy applied by Server.wrap.
type route struct {
	name     string
	methods  []string
	compress bool
	limiter  *clientLimits
	// maxBody caps the request body; zero leaves it unbounded.
	maxBody int64
}

func (rt route) allowedMethods() string {
	return strings.Join(append(append([]string(nil), rt.methods...), http.MethodOptions), ", ")
}

// statusWriter remembers the status code for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpapi: connection cannot be hijacked")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// gzipWriter compresses successful responses only. Error bodies from
// http.Error go out as plain text.
type gzipWriter struct {
	http.ResponseWriter
	gz      *gzip.Writer
	started bool
	plain   bool
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

func (g *gzipWriter) WriteHeader(code int) {
	if !g.started {
		g.started = true
		if code >= http.StatusBadRequest || code == http.StatusNoContent {
			g.plain = true
		} else {
			h := g.Header()
			h.Del("Content-Length")
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
		}
	}
	g.ResponseWriter.WriteHeader(code)
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	if !g.started {
		g.WriteHeader(http.StatusOK)
	}
	if g.plain {
		return g.ResponseWriter.Write(b)
	}
	if g.gz == nil {
		g.gz = gzip.NewWriter(g.ResponseWriter)
	}
	return g.gz.Write(b)
}

func (g *gzipWriter) Close() error {
	if g.gz == nil {
		return nil
	}
	return g.gz.Close()
}

// clientLimits keeps one token bucket per client address. A nil
// *clientLimits allows everything.
type clientLimits struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const (
	bucketIdle    = 5 * time.Minute
	sweepInterval = time.Minute
)

func newClientLimits(rps, burst int) *clientLimits {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return &clientLimits{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

func (l *clientLimits) allow(addr string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for key, b := range l.buckets {
			if now.Sub(b.seen) > bucketIdle {
				delete(l.buckets, key)
			}
		}
		l.nextSweep = now.Add(sweepInterval)
	}

	b, ok := l.buckets[addr]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[addr] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// clientAddr prefers the first X-Forwarded-For hop, then the socket peer.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// origins is the CORS allow list. Empty means any origin.
type origins struct {
	any     bool
	allowed map[string]struct{}
}

func newOrigins(list []string) origins {
	o := origins{allowed: make(map[string]struct{})}
	for _, raw := range list {
		origin := strings.TrimRight(strings.TrimSpace(raw), "/")
		switch origin {
		case "":
		case "*":
			o.any = true
		default:
			o.allowed[origin] = struct{}{}
		}
	}
	if len(o.allowed) == 0 {
		o.any = true
	}
	return o
}

func (o origins) permits(origin string) bool {
	if o.any {
		return true
	}
	_, ok := o.allowed[origin]
	return ok
}

// websocketPatterns turns the allow list into nhooyr origin patterns.
func (o origins) websocketPatterns() (patterns []string, skipVerify bool) {
	if o.any {
		return nil, true
	}
	for origin := range o.allowed {
		patterns = append(patterns, hostOf(origin))
	}
	return patterns, false
}

// cors writes the CORS headers for rt. It reports false when the origin is
// refused and true with done set when a preflight was answered.
func (o origins) cors(w http.ResponseWriter, r *http.Request, rt route) (ok, done bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true, false
	}
	if !o.permits(origin) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return false, true
	}

	h := w.Header()
	if o.any {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
	if r.Method != http.MethodOptions {
		return true, false
	}
	h.Set("Access-Control-Allow-Methods", rt.allowedMethods())
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
	return true, true
}
