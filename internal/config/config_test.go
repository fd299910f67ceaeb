package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.Equal(t, int64(25<<20), cfg.HTTP.MaxBodyBytes)
	assert.False(t, cfg.HTTP.UniformErrors)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, "exec", cfg.Model.Backend)
	assert.Equal(t, "pretrained_models/CosyVoice2-0.5B", cfg.Model.Path)
	assert.False(t, cfg.Model.LoadJIT)
	assert.False(t, cfg.Model.LoadTRT)
	assert.False(t, cfg.Model.FP16)
	assert.Equal(t, 1, cfg.Model.MaxConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Model.LoadTimeout)
	assert.Equal(t, "用四川话讲", cfg.Styles["sichuanese"])
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DIALECT_TTS_HTTP_PORT", "9090")
	t.Setenv("DIALECT_TTS_HTTP_UNIFORM_ERRORS", "true")
	t.Setenv("DIALECT_TTS_MODEL_BACKEND", "tcp")
	t.Setenv("DIALECT_TTS_MODEL_MAX_CONCURRENCY", "4")
	t.Setenv("DIALECT_TTS_MODEL_TCP_IO_TIMEOUT", "90s")
	t.Setenv("MODEL_HOST", "gpu-01")
	t.Setenv("DIALECT_TTS_MODEL_TCP_ENDPOINT", "${MODEL_HOST}:10210")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.HTTP.UniformErrors)
	assert.Equal(t, "tcp", cfg.Model.Backend)
	assert.Equal(t, 4, cfg.Model.MaxConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Model.TCP.IOTimeout)
	assert.Equal(t, "gpu-01:10210", cfg.Model.TCP.Endpoint)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialect-tts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  backend: grpc
  grpc:
    target: model-server:50061
styles:
  sichuanese: 用四川话讲
  cantonese: 用粤语讲
logging:
  level: debug
  format: text
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "grpc", cfg.Model.Backend)
	assert.Equal(t, "model-server:50061", cfg.Model.GRPC.Target)
	assert.Len(t, cfg.Styles, 2)
	assert.Equal(t, "用粤语讲", cfg.Styles["cantonese"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DIALECT_TTS_MODEL_BACKEND", "torch")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model backend")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateStyles(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Backend: "mock"}}
	require.Error(t, cfg.Validate())

	cfg.Styles = map[string]string{"sichuanese": "  "}
	require.Error(t, cfg.Validate())

	cfg.Styles = DefaultStyles
	require.NoError(t, cfg.Validate())
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("MODEL_HOST", "gpu-01")

	cfg, err := Load(filepath.Join("..", "..", "configs", "dialect-tts.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "exec", cfg.Model.Backend)
	assert.Equal(t, "gpu-01:10210", cfg.Model.TCP.Endpoint)
	assert.Equal(t, DefaultStyles, cfg.Styles)
	assert.Empty(t, cfg.HTTP.CORSAllowedOrigins)
}
