package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"task-optimizer/internal/cache"
	"task-optimizer/internal/geodesy"
	"task-optimizer/internal/handlers"
	"task-optimizer/internal/metrics"
	"task-optimizer/internal/optimizer"
)

var tracer = otel.Tracer("task-optimizer/server")

type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	store      cache.Store
	collector  *metrics.Collector
	listener   net.Listener
	addr       string
}

type Config struct {
	Addr       string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	Optimizer  optimizer.Config
	Cache      cache.Options
	BatchLimit int

	// Geodesy defaults to the WGS84 ellipsoid
	Geodesy geodesy.Provider
	// Registry receives the service metrics; nil uses the global registry
	Registry prometheus.Registerer
}

func New(cfg Config) (*Server, error) {
	geo := cfg.Geodesy
	if geo == nil {
		geo = geodesy.NewWGS84()
	}

	opt, err := optimizer.New(geo, cfg.Optimizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimizer: %w", err)
	}

	log.Printf("Initializing solve cache...")
	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize solve cache: %w", err)
	}

	collector, err := metrics.NewCollector(cfg.Registry)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	handler := &handlers.Handler{
		Solver:     cache.NewCachedSolver(opt, store, collector),
		Optimizer:  opt,
		BatchLimit: cfg.BatchLimit,
	}
	if hc, ok := store.(cache.HealthChecker); ok {
		handler.CacheHealth = hc.HealthCheck
	}

	mux := setupRoutes(handler, collector)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(collector, tracingMiddleware(corsMiddleware(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		store:      store,
		collector:  collector,
		addr:       cfg.Addr,
	}, nil
}

func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown drains in-flight requests and closes the cache
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.store != nil {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// routes lists the paths used as metric labels; anything else is "other"
var routes = map[string]bool{
	"/api/v1/health":         true,
	"/api/v1/tasks/optimize": true,
	"/api/v1/tasks/centers":  true,
	"/api/v1/tasks/sss":      true,
	"/api/v1/tasks/batch":    true,
	"/metrics":               true,
}

func routeLabel(path string) string {
	if routes[path] {
		return path
	}
	return "other"
}

func setupRoutes(handler *handlers.Handler, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleHealthCheck(w, r)
	})

	mux.HandleFunc("/api/v1/tasks/optimize", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handler.HandleOptimizeTask(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/tasks/centers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handler.HandleCenterDistance(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/tasks/sss", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handler.HandleSSSEntry(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/tasks/batch", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handler.HandleBatchOptimize(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/metrics", collector.Handler())

	return mux
}

func loggingMiddleware(collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		collector.ObserveHTTP(r.Method, routeLabel(r.URL.Path), lrw.statusCode, duration)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// tracingMiddleware continues an incoming W3C trace and opens a server span
func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+routeLabel(r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (local task planners and development)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, traceparent, tracestate")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
