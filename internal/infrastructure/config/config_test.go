package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docrender", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.Equal(t, "RASTER", cfg.Renderer.DefaultStrategy)
	assert.Equal(t, 10.0, cfg.Renderer.MarginMM)
	assert.Equal(t, 2.0, cfg.Renderer.ScaleFactor)
	assert.Equal(t, 150*time.Millisecond, cfg.Renderer.LayoutDelay)
	assert.True(t, cfg.Renderer.ChromeHeadless)
	assert.True(t, cfg.HTTP.MetricsEnabled)
	assert.True(t, cfg.Idempotency.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.False(t, cfg.Telemetry.Profiling.Enabled)
	assert.True(t, cfg.Telemetry.Profiling.SpanProfiles)
	assert.Equal(t, "docrender", cfg.Telemetry.Profiling.ApplicationName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCRENDER_APP_PORT", "9000")
	t.Setenv("DOCRENDER_DATABASE_DRIVER", "sqlite")
	t.Setenv("DOCRENDER_RENDERER_DEFAULT_STRATEGY", "VECTOR")
	t.Setenv("DOCRENDER_RENDERER_MARGIN_MM", "12.5")
	t.Setenv("DOCRENDER_RENDERER_LAYOUT_DELAY", "250ms")
	t.Setenv("DOCRENDER_IDEMPOTENCY_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "VECTOR", cfg.Renderer.DefaultStrategy)
	assert.Equal(t, 12.5, cfg.Renderer.MarginMM)
	assert.Equal(t, 250*time.Millisecond, cfg.Renderer.LayoutDelay)
	assert.False(t, cfg.Idempotency.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
name = "docs"

[storage]
backend = "s3"

[storage.s3]
bucket = "crm-pdfs"
use_path_style = true

[renderer]
default_brand = "modern"
filename_date_suffix = true

[telemetry.profiling]
enabled = true
server_address = "http://pyroscope:4040"
profile_types = ["cpu", "alloc_space"]
span_profiles = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.App.Name)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "crm-pdfs", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, "modern", cfg.Renderer.DefaultBrand)
	assert.True(t, cfg.Renderer.FilenameDateSuffix)
	assert.True(t, cfg.Telemetry.Profiling.Enabled)
	assert.Equal(t, "http://pyroscope:4040", cfg.Telemetry.Profiling.ServerAddress)
	assert.Equal(t, []string{"cpu", "alloc_space"}, cfg.Telemetry.Profiling.ProfileTypes)
	assert.False(t, cfg.Telemetry.Profiling.SpanProfiles)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"DOCRENDER_DATABASE_DRIVER": "mysql"}, "database.driver"},
		{"s3 without bucket", map[string]string{"DOCRENDER_STORAGE_BACKEND": "s3"}, "storage.s3.bucket"},
		{"margin out of range", map[string]string{"DOCRENDER_RENDERER_MARGIN_MM": "30"}, "renderer.margin_mm"},
		{"bad sampling", map[string]string{"DOCRENDER_TELEMETRY_SAMPLING_RATIO": "2"}, "sampling_ratio"},
		{"short production secret", map[string]string{"DOCRENDER_APP_ENV": "production", "DOCRENDER_JWT_SECRET": "short"}, "jwt.secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "docs", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/docs?sslmode=require", d.DSN())

	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
