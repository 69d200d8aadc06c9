// Command dirpyd is dirpy's HTTP front end: it loads configuration, then
// either pre-forks a worker pool (§4.7 default) or, with --foreground,
// serves the listening socket directly in this process.
//
// Daemonization and PID-file writing are out of scope (spec §1): pass
// --pid-file and write it yourself around invoking dirpyd in the
// foreground, the same way the original treated them as an external
// collaborator's responsibility.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redfin/dirpy/config"
	"github.com/redfin/dirpy/hooks"
	"github.com/redfin/dirpy/server"
)

func main() {
	var (
		confPath   = flag.String("config", "", "path to dirpy.ini ([global] section, spec §6)")
		foreground = flag.Bool("foreground", false, "serve the listening socket directly, skipping the pre-forked worker pool")
		debug      = flag.Bool("debug", false, "enable debug logging and implies --foreground")
		pidFile    = flag.String("pid-file", "", "documented interface only; dirpyd does not write this itself (spec §1)")
	)
	flag.Parse()

	cfg := config.Default()
	if *confPath != "" {
		loaded, err := config.LoadINI(*confPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *debug {
		cfg.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *pidFile != "" && cfg.Debug {
		fmt.Fprintf(os.Stderr, "dirpyd: --pid-file=%s is the caller's responsibility (spec §1); not writing it\n", *pidFile)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logHandler := hooks.NewTruncatingHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
		cfg.LogMaxLine,
	)
	logger := hooks.NewSlogLogger(slog.New(logHandler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A worker re-exec carries ListenerFDEnv in its environment and the
	// inherited socket on fd 3 (server.InheritedListenerFD); everything
	// else about it is identical to the parent invocation.
	if _, isWorker := os.LookupEnv(server.ListenerFDEnv); isWorker {
		if err := server.ServeWorker(ctx, cfg, logger, server.InheritedListenerFD); err != nil {
			logger.Error("worker.fatal", "error", err.Error())
			os.Exit(1)
		}
		return
	}

	srv := &server.Server{Cfg: cfg, Logger: logger}
	var err error
	if *foreground || cfg.Debug {
		err = srv.RunForeground(ctx)
	} else {
		err = srv.RunPreForked(ctx)
	}
	if err != nil {
		logger.Error("server.fatal", "error", err.Error())
		os.Exit(1)
	}
}
