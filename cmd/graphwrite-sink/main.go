// Command graphwrite-sink receives write batches, logs them and serves
// Prometheus metrics and health reports. It is the receiving end used to test graphwrite
// deployments.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/config"
	"github.com/dd0wney/cluso-graphwriter/pkg/health"
	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/writeclient"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	address := flag.String("address", "", "Listen address for batches (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for /metrics (overrides config)")
	echo := flag.Bool("echo", false, "Write each batch to stdout as a JSON line")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphwrite-sink: %v\n", err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Address = *address
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.Level()).With(logging.Component("sink"))
	logging.SetDefaultLogger(logger)

	if err := run(cfg, logger, *echo); err != nil {
		logger.Error("sink failed", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger, echo bool) error {
	factory, err := transport.NewSocketFactory(cfg.Transport)
	if err != nil {
		return err
	}
	reg := metrics.NewRegistry()

	handler := &logHandler{logger: logger}
	if echo {
		handler.out = os.Stdout
	}

	receiver, err := writeclient.NewReceiver(factory, cfg.ReceiverConfig(logger, reg), handler)
	if err != nil {
		return err
	}
	if err := receiver.Start(); err != nil {
		return err
	}
	defer receiver.Stop()

	checker := health.NewChecker()
	checker.Register("receiver", health.RunningCheck(receiver.Running))
	checker.Register("activity", health.ActivityCheck(receiver.LastBatch, staleAfter))
	checker.RegisterReadiness("receiver", health.RunningCheck(receiver.Running))

	var httpServer *http.Server
	if cfg.MetricsAddr != "" {
		httpServer = newHTTPServer(cfg.MetricsAddr, reg, checker)
		go func() {
			logger.Info("metrics server starting", logging.Address(cfg.MetricsAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", logging.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	reg.UpdateProcessMetrics()

	for {
		select {
		case <-ticker.C:
			reg.UpdateProcessMetrics()
		case <-sigChan:
			logger.Info("shutting down sink")
			if httpServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(ctx); err != nil {
					logger.Error("metrics server forced to shutdown", logging.Error(err))
				}
			}
			return nil
		}
	}
}

// staleAfter is how long without batches before the sink reports degraded
const staleAfter = 5 * time.Minute

func newHTTPServer(addr string, reg *metrics.Registry, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/health", checker.Handler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
