// conflated runs a remote-management agent that stays connected to its
// messaging server and answers administrative commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/younglifestyle/conflate4go/agent"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/session"
	"github.com/younglifestyle/conflate4go/store"
	_ "github.com/younglifestyle/conflate4go/store/boltstore"
	_ "github.com/younglifestyle/conflate4go/store/memstore"
	_ "github.com/younglifestyle/conflate4go/store/sqlitestore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, syncLog, err := common.NewZapLogger(common.ZapLoggerOptions{
		LogFile: cfg.Log.File,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = syncLog() }()

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	timeouts := session.NewTimeouts()
	timeouts.SetReconnectDelay(cfg.ReconnectDelay)
	if cfg.Keepalive > 0 {
		timeouts.SetKeepalive(cfg.Keepalive)
	}

	a, err := agent.New(agent.Options{
		JID:             cfg.JID,
		Password:        cfg.Password,
		Host:            cfg.Host,
		AlarmRecipient:  cfg.AlarmRecipient,
		Store:           st,
		Timeouts:        timeouts,
		Logging:         trafficLogging(cfg.Traffic),
		Logger:          logger,
		MetricsRegistry: registry,
		OnNewConfig: func(conf *form.Form) {
			servers, _ := conf.Get("servers")
			logger.Info("configuration received", "keys", conf.Keys(), "servers", servers)
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close agent", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("agent starting", "jid", cfg.JID, "store", cfg.Store.Driver)
	return a.Run(ctx)
}

func trafficLogging(cfg TrafficConfig) session.LoggingConfig {
	if cfg.File == "" {
		return session.LoggingConfig{}
	}
	mode := session.LoggingModeSummary
	if cfg.XML {
		mode = session.LoggingModeXML
	}
	return session.LoggingConfig{
		Enabled:          true,
		Mode:             mode,
		ExcludeKeepalive: !cfg.Keepalive,
		LogFile:          cfg.File,
		MaxSize:          10,
		MaxBackups:       5,
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger common.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
