package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaos-io/cutout/matte"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: ":9090"
  max_concurrent: 8
matte:
  family: isnet
  method: neural
  estimator:
    kind: remote
    url: http://127.0.0.1:7000/matte
    timeout: 5s
export:
  size: 2048
  on_white: true
watermark:
  text: TRIAL
  fill: "#eeeeee"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Server.MaxConcurrent)
	assert.Equal(t, "isnet", cfg.Matte.Family)
	assert.Equal(t, "remote", cfg.Matte.Estimator.Kind)
	assert.Equal(t, 5*time.Second, cfg.Matte.Estimator.Timeout)
	assert.Equal(t, 2048, cfg.Export.Size)
	assert.True(t, cfg.Export.OnWhite)

	// 未配置的字段取默认值
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 240, cfg.Matte.Threshold)
	assert.Equal(t, 4, cfg.Matte.Estimator.OutputRank)
	assert.Equal(t, 24*time.Hour, cfg.Export.Retention)
	assert.Equal(t, "#000000", cfg.Watermark.Outline)
	assert.Equal(t, "@every 1h", cfg.Cleanup.Schedule)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CUTOUT_SERVER_PORT", ":7070")
	t.Setenv("CUTOUT_MATTE_THRESHOLD", "250")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, 250, cfg.Matte.Threshold)
}

func TestNew_EnvWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CUTOUT_SERVER_PORT", ":7070")
	t.Setenv("CUTOUT_MATTE_FAMILY", "isnet")

	cfg := New()
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, "isnet", cfg.Matte.Family)
	// 其余字段仍是默认值
	assert.Equal(t, 240, cfg.Matte.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Server.QueueTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConversions(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	profile, err := cfg.Matte.Profile()
	require.NoError(t, err)
	assert.Equal(t, matte.ISNet, profile)

	opts, err := cfg.Matte.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, pipeline.MethodNeural, opts.Method)
	assert.Equal(t, 12, opts.Feather)

	exp, err := cfg.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, "TRIAL", exp.Watermark)
	assert.Equal(t, uint8(0xee), exp.WatermarkStyle.Fill.R)

	cfg.Matte.Family = "sam"
	_, err = cfg.Matte.Profile()
	assert.Error(t, err)

	cfg.Matte.Method = "magic"
	_, err = cfg.Matte.PipelineOptions()
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	_, err := cfg.Matte.Profile()
	require.NoError(t, err)
	_, err = cfg.ExportOptions()
	require.NoError(t, err)
}
