// Dialect-tts is an HTTP front end for a zero-shot, instruction-following
// speech synthesis model. It loads the model once, then serves
// POST /synthesize/{style}, speaking the request text in the caller's voice
// and the style's dialect.
//
// Usage:
//
//	dialect-tts [flags]
//	dialect-tts --config /path/to/dialect-tts.yaml
//
// @title       dialect-tts API
// @version     1.0
// @description Dialect-style zero-shot speech synthesis over HTTP.
// @BasePath    /
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "github.com/nadzzz/dialect-tts/docs"
	"github.com/nadzzz/dialect-tts/internal/audio"
	"github.com/nadzzz/dialect-tts/internal/config"
	"github.com/nadzzz/dialect-tts/internal/health"
	"github.com/nadzzz/dialect-tts/internal/pipeline"
	"github.com/nadzzz/dialect-tts/internal/telemetry"
	"github.com/nadzzz/dialect-tts/internal/transport"
	grpctransport "github.com/nadzzz/dialect-tts/internal/transport/grpc"
	httptransport "github.com/nadzzz/dialect-tts/internal/transport/http"
	"github.com/nadzzz/dialect-tts/internal/tts"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/dialect-tts.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dialect-tts %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("dialect-tts starting", "version", version)

	if err := run(cfg); err != nil {
		slog.Error("dialect-tts failed", "error", err)
		os.Exit(1)
	}
	slog.Info("dialect-tts stopped")
}

func run(cfg *config.Config) error {
	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics registry shared by native collectors and OpenTelemetry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tts.RegisterMetrics(reg)
	pipeline.RegisterMetrics(reg)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version, reg)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	// Load the model before any listener starts; a request must never see an
	// unloaded model.
	loadCtx, cancelLoad := ctx, context.CancelFunc(func() {})
	if cfg.Model.LoadTimeout > 0 {
		loadCtx, cancelLoad = context.WithTimeout(ctx, cfg.Model.LoadTimeout)
	}
	started := time.Now()
	model, err := loadModel(loadCtx, cfg.Model)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	slog.Info("model loaded",
		"backend", cfg.Model.Backend,
		"path", cfg.Model.Path,
		"sample_rate", model.SampleRate(),
		"took", time.Since(started).Round(time.Millisecond))

	gateway := tts.NewGateway(model, cfg.Model.MaxConcurrency)
	defer func() {
		if err := gateway.Close(); err != nil {
			slog.Error("model close error", "error", err)
		}
	}()

	p := pipeline.New(gateway, audio.NewCodec(cfg.Audio.TempDir), cfg.Styles)
	styles := p.Styles()
	sort.Strings(styles)

	transports := []transport.Transport{httptransport.New(cfg.HTTP)}
	if cfg.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.GRPC.Port))
	}
	healthServer := health.New(cfg.Server.HealthPort, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthServer.ListenAndServe(gctx)
	})
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, p.Handle); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once the model is loaded and transports are started.
	healthServer.SetReady(true)
	slog.Info("dialect-tts ready",
		"http_port", cfg.HTTP.Port,
		"grpc_enabled", cfg.GRPC.Enabled,
		"health_port", cfg.Server.HealthPort,
		"styles", styles,
		"max_concurrency", cfg.Model.MaxConcurrency)

	// Block until shutdown signal or a server failure.
	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutdown signal received, draining...")

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	return g.Wait()
}
