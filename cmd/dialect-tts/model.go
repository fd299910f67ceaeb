package main

import (
	"context"
	"fmt"

	"github.com/nadzzz/dialect-tts/internal/config"
	"github.com/nadzzz/dialect-tts/internal/tts"
	"github.com/nadzzz/dialect-tts/internal/tts/grpcmodel"
	"github.com/nadzzz/dialect-tts/internal/tts/wyoming"
)

// loadModel initializes the configured model backend.
func loadModel(ctx context.Context, cfg config.ModelConfig) (tts.Model, error) {
	opts := tts.LoadOptions{
		ModelDir: cfg.Path,
		LoadJIT:  cfg.LoadJIT,
		LoadTRT:  cfg.LoadTRT,
		FP16:     cfg.FP16,
	}

	switch cfg.Backend {
	case "exec":
		return wyoming.LoadExec(ctx, cfg.Exec.Command, opts)
	case "tcp":
		return wyoming.LoadTCP(ctx, cfg.TCP.Endpoint, cfg.TCP.IOTimeout, opts)
	case "grpc":
		return grpcmodel.Load(ctx, cfg.GRPC.Target, opts)
	case "mock":
		return tts.NewMockModel(cfg.Mock.SampleRate), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
