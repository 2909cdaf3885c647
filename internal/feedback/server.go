package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// ServerOptions controls the feedback HTTP server.
type ServerOptions struct {
	// Bind address, e.g. "127.0.0.1:8082"
	Bind string
	// RPS is max requests per second (approximate). 0 disables rate limiting.
	RPS int
	// Burst is the token bucket size. If 0 and RPS>0, defaults to RPS.
	Burst  int
	Logger *log.Logger
}

// Server hosts the feedback handler at /api/feedback plus /healthz.
type Server struct {
	srv     *http.Server
	opts    ServerOptions
	limiter *simpleLimiter
	logger  *log.Logger
	started int32
	addr    atomic.Value
}

// NewServer constructs the HTTP server around h.
func NewServer(h http.Handler, opts ServerOptions) *Server {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8082"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	var lim *simpleLimiter
	if opts.RPS > 0 {
		if opts.Burst <= 0 {
			opts.Burst = opts.RPS
		}
		lim = newSimpleLimiter(opts.RPS, opts.Burst)
	}
	s := &Server{opts: opts, limiter: lim, logger: opts.Logger}

	mux := http.NewServeMux()
	mux.Handle("/api/feedback", s.rateLimited(h))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:         opts.Bind,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Addr is the bound listen address once Start has returned.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return s.opts.Bind
}

// Start starts the HTTP server concurrently and attaches to ctx for shutdown.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return errors.New("feedback server already started")
	}
	// Bind early to surface errors synchronously
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Bind, err)
	}
	s.addr.Store(ln.Addr().String())
	s.logger.Printf("Feedback endpoint listening on http://%s/api/feedback rps=%d burst=%d",
		s.Addr(), s.opts.RPS, s.opts.Burst)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("graceful shutdown failed: %v", err)
		}
		s.limiter.Close()
	}()
	return nil
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 250*time.Millisecond)
		defer cancel()
		if err := s.limiter.Wait(ctx); err != nil {
			writeJSON(w, http.StatusTooManyRequests, Response{Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// simpleLimiter is a minimal token bucket limiter
type simpleLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
}

func newSimpleLimiter(rps, burst int) *simpleLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	l := &simpleLimiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	go func() {
		interval := time.Second / time.Duration(rps)
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full
				}
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

func (l *simpleLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return errors.New("limiter stopped")
	case <-l.tokens:
		return nil
	}
}

func (l *simpleLimiter) Close() {
	if l == nil {
		return
	}
	close(l.stop)
}
