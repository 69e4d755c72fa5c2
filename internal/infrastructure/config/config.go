// Package config loads service configuration from TOML files and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DOCRENDER_DATABASE_PASSWORD.
const EnvPrefix = "DOCRENDER"

// Config holds all application configuration
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	Storage     StorageConfig
	Renderer    RendererConfig
	CRM         CRMConfig
	Telemetry   TelemetryConfig
	Idempotency IdempotencyConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxBodySize      int64
	RateLimitEnabled bool
	RateLimitPerSec  float64 // sustained generate requests per client
	RateLimitBurst   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	MetricsEnabled   bool
	ShutdownTimeout  time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings. Tokens are issued by the CRM; this service only verifies them.
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// StorageConfig selects where generated PDFs are kept
type StorageConfig struct {
	Backend   string // filesystem or s3
	BasePath  string
	BaseURL   string
	Retention time.Duration
	S3        S3Config
}

// S3Config holds S3 compatible object storage settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	PresignExpiry   time.Duration
}

// RendererConfig holds document rendering settings
type RendererConfig struct {
	DefaultStrategy    string
	DefaultBrand       string
	BrandsFile         string
	PaperSize          string
	MarginMM           float64
	FooterMarginMM     float64
	ScaleFactor        float64 // raster upscale
	JPEGQuality        int
	LayoutDelay        time.Duration
	Timeout            time.Duration
	FilenameDateSuffix bool
	BrowserEnabled     bool // raster and print strategies need Chrome
	ChromeRemoteURL    string
	ChromeHeadless     bool
	ChromeNoSandbox    bool
	ChromeDisableGPU   bool
}

// CRMConfig holds the CRM REST API client settings
type CRMConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ServiceToken string
	ForwardAuth  bool // forward the caller's bearer token instead of the service token
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	LogsEnabled       bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling configuration. It is
// independent of telemetry.enabled; span profiles additionally need tracing.
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string
	SpanProfiles      bool
}

// IdempotencyConfig controls Idempotency-Key handling on generate
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with DOCRENDER_ prefix
// 2. config.toml in ., ./config or /etc/docrender
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/docrender")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			RateLimitEnabled: v.GetBool("http.rate_limit_enabled"),
			RateLimitPerSec:  v.GetFloat64("http.rate_limit_per_sec"),
			RateLimitBurst:   v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			MetricsEnabled:   !v.IsSet("http.metrics_enabled") || v.GetBool("http.metrics_enabled"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Backend:   v.GetString("storage.backend"),
			BasePath:  v.GetString("storage.base_path"),
			BaseURL:   v.GetString("storage.base_url"),
			Retention: v.GetDuration("storage.retention"),
			S3: S3Config{
				Bucket:          v.GetString("storage.s3.bucket"),
				Region:          v.GetString("storage.s3.region"),
				Endpoint:        v.GetString("storage.s3.endpoint"),
				AccessKeyID:     v.GetString("storage.s3.access_key_id"),
				SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
				Prefix:          v.GetString("storage.s3.prefix"),
				UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
				PresignExpiry:   v.GetDuration("storage.s3.presign_expiry"),
			},
		},
		Renderer: RendererConfig{
			DefaultStrategy:    v.GetString("renderer.default_strategy"),
			DefaultBrand:       v.GetString("renderer.default_brand"),
			BrandsFile:         v.GetString("renderer.brands_file"),
			PaperSize:          v.GetString("renderer.paper_size"),
			MarginMM:           v.GetFloat64("renderer.margin_mm"),
			FooterMarginMM:     v.GetFloat64("renderer.footer_margin_mm"),
			ScaleFactor:        v.GetFloat64("renderer.scale_factor"),
			JPEGQuality:        v.GetInt("renderer.jpeg_quality"),
			LayoutDelay:        v.GetDuration("renderer.layout_delay"),
			Timeout:            v.GetDuration("renderer.timeout"),
			FilenameDateSuffix: v.GetBool("renderer.filename_date_suffix"),
			BrowserEnabled:     !v.IsSet("renderer.browser_enabled") || v.GetBool("renderer.browser_enabled"),
			ChromeRemoteURL:    v.GetString("renderer.chrome_remote_url"),
			ChromeHeadless:     !v.IsSet("renderer.chrome_headless") || v.GetBool("renderer.chrome_headless"),
			ChromeNoSandbox:    v.GetBool("renderer.chrome_no_sandbox"),
			ChromeDisableGPU:   !v.IsSet("renderer.chrome_disable_gpu") || v.GetBool("renderer.chrome_disable_gpu"),
		},
		CRM: CRMConfig{
			BaseURL:      v.GetString("crm.base_url"),
			Timeout:      v.GetDuration("crm.timeout"),
			ServiceToken: v.GetString("crm.service_token"),
			ForwardAuth:  v.GetBool("crm.forward_auth"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling.enabled"),
				ServerAddress:     v.GetString("telemetry.profiling.server_address"),
				ApplicationName:   v.GetString("telemetry.profiling.application_name"),
				BasicAuthUser:     v.GetString("telemetry.profiling.basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling.basic_auth_password"),
				ProfileTypes:      v.GetStringSlice("telemetry.profiling.profile_types"),
				SpanProfiles:      !v.IsSet("telemetry.profiling.span_profiles") || v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
		Idempotency: IdempotencyConfig{
			Enabled: !v.IsSet("idempotency.enabled") || v.GetBool("idempotency.enabled"),
			TTL:     v.GetDuration("idempotency.ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	setDefault(&cfg.App.Name, "docrender")
	setDefault(&cfg.App.Env, "development")
	setDefault(&cfg.App.Port, "8080")

	setDefault(&cfg.HTTP.ReadTimeout, 15*time.Second)
	setDefault(&cfg.HTTP.WriteTimeout, 90*time.Second)
	setDefault(&cfg.HTTP.IdleTimeout, 60*time.Second)
	setDefault(&cfg.HTTP.MaxBodySize, int64(5<<20))
	setDefault(&cfg.HTTP.RateLimitPerSec, 2.0)
	setDefault(&cfg.HTTP.RateLimitBurst, 5)
	setDefault(&cfg.HTTP.ShutdownTimeout, 20*time.Second)
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}

	setDefault(&cfg.Database.Driver, "postgres")
	setDefault(&cfg.Database.Host, "localhost")
	setDefault(&cfg.Database.Port, 5432)
	setDefault(&cfg.Database.User, "postgres")
	setDefault(&cfg.Database.DBName, "docrender")
	setDefault(&cfg.Database.SSLMode, "disable")
	setDefault(&cfg.Database.Path, "docrender.db")
	setDefault(&cfg.Database.MaxOpenConns, 20)
	setDefault(&cfg.Database.MaxIdleConns, 5)
	setDefault(&cfg.Database.ConnMaxLifetime, time.Hour)
	setDefault(&cfg.Database.ConnMaxIdleTime, 30*time.Minute)
	setDefault(&cfg.Database.LogLevel, "warn")
	setDefault(&cfg.Database.SlowThreshold, 200*time.Millisecond)

	setDefault(&cfg.Redis.Host, "localhost")
	setDefault(&cfg.Redis.Port, 6379)

	setDefault(&cfg.JWT.Issuer, "crm")

	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "console")
	setDefault(&cfg.Log.Output, "stdout")

	setDefault(&cfg.Storage.Backend, "filesystem")
	setDefault(&cfg.Storage.BasePath, "./data/pdf")
	setDefault(&cfg.Storage.Retention, 30*24*time.Hour)
	setDefault(&cfg.Storage.S3.Region, "ap-south-1")
	setDefault(&cfg.Storage.S3.PresignExpiry, 15*time.Minute)

	setDefault(&cfg.Renderer.DefaultStrategy, "RASTER")
	setDefault(&cfg.Renderer.PaperSize, "A4")
	setDefault(&cfg.Renderer.MarginMM, 10.0)
	setDefault(&cfg.Renderer.FooterMarginMM, 20.0)
	setDefault(&cfg.Renderer.ScaleFactor, 2.0)
	setDefault(&cfg.Renderer.JPEGQuality, 92)
	setDefault(&cfg.Renderer.LayoutDelay, 150*time.Millisecond)
	setDefault(&cfg.Renderer.Timeout, 60*time.Second)

	setDefault(&cfg.CRM.BaseURL, "http://localhost:5000")
	setDefault(&cfg.CRM.Timeout, 10*time.Second)

	setDefault(&cfg.Telemetry.CollectorEndpoint, "localhost:4317")
	setDefault(&cfg.Telemetry.SamplingRatio, 1.0)
	setDefault(&cfg.Telemetry.ServiceName, "docrender")
	setDefault(&cfg.Telemetry.MetricsInterval, 60*time.Second)
	setDefault(&cfg.Telemetry.Profiling.ServerAddress, "http://localhost:4040")
	setDefault(&cfg.Telemetry.Profiling.ApplicationName, cfg.Telemetry.ServiceName)

	setDefault(&cfg.Idempotency.TTL, 24*time.Hour)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Backend {
	case "filesystem":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be filesystem or s3, got %q", c.Storage.Backend)
	}

	switch strings.ToUpper(c.Renderer.DefaultStrategy) {
	case "RASTER", "PRINT":
		if !c.Renderer.BrowserEnabled {
			return fmt.Errorf("renderer.default_strategy %s needs renderer.browser_enabled", c.Renderer.DefaultStrategy)
		}
	case "VECTOR":
	default:
		return fmt.Errorf("renderer.default_strategy must be RASTER, VECTOR or PRINT, got %q", c.Renderer.DefaultStrategy)
	}
	if c.Renderer.MarginMM < 5 || c.Renderer.MarginMM > 15 {
		return fmt.Errorf("renderer.margin_mm must be between 5 and 15, got %v", c.Renderer.MarginMM)
	}
	if c.Renderer.ScaleFactor < 1 || c.Renderer.ScaleFactor > 4 {
		return fmt.Errorf("renderer.scale_factor must be between 1 and 4, got %v", c.Renderer.ScaleFactor)
	}
	if c.Renderer.JPEGQuality < 1 || c.Renderer.JPEGQuality > 100 {
		return fmt.Errorf("renderer.jpeg_quality must be between 1 and 100, got %d", c.Renderer.JPEGQuality)
	}

	if _, err := url.ParseRequestURI(c.CRM.BaseURL); err != nil {
		return fmt.Errorf("crm.base_url is invalid: %w", err)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis server.
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
