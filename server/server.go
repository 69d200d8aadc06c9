package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dirpy "github.com/redfin/dirpy"
	vipsadapter "github.com/redfin/dirpy/adapters/vips"
	"github.com/redfin/dirpy/cache"
	"github.com/redfin/dirpy/config"
	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/hooks"
	"github.com/redfin/dirpy/telemetry"
)

// Server owns the listening socket and dispatches to either the
// pre-forked worker pool or, in foreground mode, an in-process HTTP
// server — the same Handler serves both (§4.7).
type Server struct {
	Cfg    config.Config
	Logger core.Logger
}

// buildHandler assembles one worker's full dependency graph: codec
// registry, source loader, saver, cache adapter, telemetry sink — mirrors
// dirpy.New but also wires the C5/C6 pieces that are orthogonal to the
// library façade (§2).
func buildHandler(cfg config.Config, logger core.Logger) (*Handler, func(), error) {
	runner, err := dirpy.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	runner.AddHook(hooks.NewLoggingHook(logger))

	var closers []func()

	var cacheStore *cache.Store
	if len(cfg.RedisHosts) > 0 {
		cs, err := cache.NewStore(cache.Config{Hosts: cfg.RedisHosts, Cluster: cfg.RedisCluster, Prefix: cfg.RedisPrefix})
		if err != nil {
			return nil, nil, err
		}
		cacheStore = cs
	}

	var sink *telemetry.Sink
	if cfg.StatsdServer != "" {
		addr := fmt.Sprintf("%s:%d", cfg.StatsdServer, cfg.StatsdPort)
		s, err := telemetry.NewSink(addr, cfg.StatsdPrefix)
		if err != nil {
			logger.Warn("telemetry.sink.error", "error", err.Error())
		} else {
			sink = s
			closers = append(closers, func() { _ = s.Close() })
		}
	}

	h := &Handler{
		Runner:  runner,
		Cfg:     cfg,
		Cache:   cacheStore,
		Sink:    sink,
		Logger:  logger,
		Stats:   core.NewWorkerStats(),
		Limiter: core.NewLimiter(0),
	}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return h, cleanup, nil
}

// ServeWorker runs as one pre-forked OS process (§4.7/§5): it owns the
// inherited listening socket and never shares mutable state with its
// siblings. Requests are not serialized: http.Server handles each
// connection on its own goroutine, and the handler's Limiter admits up to
// runtime.NumCPU() pipeline runs at once.
func ServeWorker(ctx context.Context, cfg config.Config, logger core.Logger, lnFD int) error {
	vipsadapter.Startup(0)
	defer vipsadapter.Shutdown()

	f := os.NewFile(uintptr(lnFD), "listener")
	ln, err := net.FileListener(f)
	if err != nil {
		return fmt.Errorf("server: inherit listener fd %d: %w", lnFD, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if ok {
		ln = WrapConnOptions(tcpLn, cfg.ReqTimeout)
	}

	h, cleanup, err := buildHandler(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := &http.Server{Handler: h}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// RunForeground binds the socket and serves it directly in this process
// (no pre-fork), for --foreground/--debug runs (§6 "debug=false" default,
// SPEC_FULL supplemented feature "--debug/--foreground CLI flags").
func (s *Server) RunForeground(ctx context.Context) error {
	vipsadapter.Startup(0)
	defer vipsadapter.Shutdown()

	addr := fmt.Sprintf("%s:%d", s.Cfg.BindAddr, s.Cfg.BindPort)
	ln, err := Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	wrapped := WrapConnOptions(ln, s.Cfg.ReqTimeout)

	h, cleanup, err := buildHandler(s.Cfg, s.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := &http.Server{Handler: h}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(wrapped) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// RunPreForked binds the socket, spawns the worker pool, and blocks until
// SIGINT (§4.7 "SIGINT in the parent terminates the group") or a worker
// exhausts its restart budget.
func (s *Server) RunPreForked(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Cfg.BindAddr, s.Cfg.BindPort)
	ln, err := Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	lnFile, err := ln.File()
	if err != nil {
		return fmt.Errorf("server: dup listener fd: %w", err)
	}
	defer lnFile.Close()
	// The duplicated fd keeps the listener alive in children; the parent
	// itself never calls Accept on ln.
	_ = ln.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := NewWorkerPool(lnFile, s.Cfg.NumWorkers, s.Logger)
	return pool.Run(ctx)
}
