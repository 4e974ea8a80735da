// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/metacat/pkg/build"
	"github.com/cockroachdb/metacat/pkg/catalog/metacache"
	"github.com/cockroachdb/metacat/pkg/catalog/metadata"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the catalog API of one region over HTTP.
type Server struct {
	cfg        Config
	instanceID uuid.UUID
	store      *storage.Store
	cache      *metacache.Cache
	coord      *metadata.Coordinator
	registry   *prometheus.Registry
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
	// done is closed when the HTTP server stops serving; serveErr is the
	// error which stopped it.
	done     chan struct{}
	serveErr error
}

// NewServer opens the store described by cfg and sets up the catalog
// coordinator and the HTTP handlers. The store is closed by Stop.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cfg.CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:        cfg,
		instanceID: uuid.New(),
		store:      store,
		cache:      metacache.New(cfg.Cache),
		registry:   prometheus.NewRegistry(),
		router:     mux.NewRouter(),
	}
	start, end := cfg.Region.Bounds()
	s.coord = metadata.NewCoordinator(metadata.Options{
		Store:                  store,
		Cache:                  s.cache,
		StartKey:               start,
		EndKey:                 end,
		SlowOperationThreshold: cfg.SlowOperationThreshold,
	})

	for _, c := range []prometheus.Collector{
		store.Metrics(),
		s.cache.Metrics(),
		s.coord.Metrics(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			_ = store.Close()
			return nil, errors.Wrap(err, "registering metrics")
		}
	}

	api := &apiServer{coord: s.coord}
	api.registerRoutes(s.router)
	s.router.Handle("/_status/vars", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: log.NewStdLogger(log.SeverityWarning, "metrics: "),
	})).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Coordinator returns the catalog coordinator of the server.
func (s *Server) Coordinator() *metadata.Coordinator { return s.coord }

// Registry returns the registry holding the server's metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// AnnotateCtx adds the server's log tags to ctx.
func (s *Server) AnnotateCtx(ctx context.Context) context.Context {
	return logtags.AddTag(ctx, "instance", s.instanceID.String())
}

// Start starts listening on the configured address and serving requests
// in the background.
func (s *Server) Start(ctx context.Context) error {
	ctx = s.AnnotateCtx(ctx)
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.ListenAddr)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.NewStdLogger(log.SeverityError, "http: "),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
		}
	}()
	log.Infof(ctx, "%s serving on %s", build.GetInfo().Short(), ln.Addr())
	return nil
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting requests, waits for in-flight requests up to the
// configured shutdown timeout and closes the store.
func (s *Server) Stop(ctx context.Context) error {
	ctx = s.AnnotateCtx(ctx)
	var err error
	if s.httpServer != nil {
		shutdownCtx := ctx
		if s.cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
		}
		err = s.httpServer.Shutdown(shutdownCtx)
		<-s.done
		err = errors.CombineErrors(err, s.serveErr)
	}
	s.cache.Close()
	err = errors.CombineErrors(err, s.store.Close())
	if err != nil {
		log.Warningf(ctx, "error stopping server: %v", err)
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// Done returns a channel closed when the started server stops serving.
func (s *Server) Done() <-chan struct{} { return s.done }

// Err returns the error which stopped the server. It is only valid once
// Done is closed.
func (s *Server) Err() error { return s.serveErr }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, struct {
		InstanceID string `json:"instance_id"`
		Status     string `json:"status"`
	}{s.instanceID.String(), "ok"})
}
