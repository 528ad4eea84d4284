package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultRefreshSecret = "change-me-refresh-secret"
	defaultAdminPassword = "admin"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5000",
	"http://localhost:5001",
	"http://localhost:5002",
	"https://ebook-viewer-pi.vercel.app",
}

type App struct {
	Name    string `mapstructure:"name" validate:"required"`
	Env     string `mapstructure:"env" validate:"required"`
	Version string `mapstructure:"version"`
}

type Server struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" validate:"gt=0"`
	UploadDir       string        `mapstructure:"upload_dir" validate:"required"`
	BuildDir        string        `mapstructure:"build_dir"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DB struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"gte=1"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff" validate:"gt=0"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
}

type Auth struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl" validate:"gt=0"`
	AdminUsername string        `mapstructure:"admin_username" validate:"required"`
	AdminPassword string        `mapstructure:"admin_password" validate:"required"`
	AdminEmail    string        `mapstructure:"admin_email" validate:"omitempty,email"`
}

type Coupon struct {
	DurationDays int `mapstructure:"duration_days" validate:"gte=1"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	BooksTTL time.Duration `mapstructure:"books_ttl"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type OTEL struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

type Config struct {
	App    App    `mapstructure:"app"`
	Server Server `mapstructure:"server"`
	DB     DB     `mapstructure:"db"`
	Auth   Auth   `mapstructure:"auth"`
	Coupon Coupon `mapstructure:"coupon"`
	Redis  Redis  `mapstructure:"redis"`
	Kafka  Kafka  `mapstructure:"kafka"`
	Log    Log    `mapstructure:"log"`
	OTEL   OTEL   `mapstructure:"otel"`

	// GeneratedSecrets is true when no JWT secrets were configured and random
	// ones were produced for this process. Tokens do not survive a restart then.
	GeneratedSecrets bool `mapstructure:"-"`
}

// Load reads .env (if present), then an optional YAML file, then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// legacy variable names from earlier deployments
	_ = v.BindEnv("server.addr", "SERVER_ADDR", "ADDR")
	_ = v.BindEnv("db.dsn", "DB_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("auth.refresh_secret", "AUTH_REFRESH_SECRET", "JWT_REFRESH_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("app.env", "APP_ENV", "ENV")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("SERVER_ADDR") == "" && os.Getenv("ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}

	cfg.App.Env = strings.ToLower(strings.TrimSpace(cfg.App.Env))
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}

	if err := fillSecrets(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ebookviewer")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_timeout", "15s")
	v.SetDefault("server.upload_dir", "./uploads")
	v.SetDefault("server.build_dir", "./build")
	v.SetDefault("server.max_upload_bytes", 50<<20)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("db.dsn", "ebookviewer.db")
	v.SetDefault("db.connect_attempts", 5)
	v.SetDefault("db.connect_backoff", "2s")
	v.SetDefault("db.max_open_conns", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "1h")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", defaultAdminPassword)
	v.SetDefault("auth.admin_email", "admin@example.com")

	v.SetDefault("coupon.duration_days", 30)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.books_ttl", "60s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ebookviewer.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.endpoint", "localhost:4318")
	v.SetDefault("otel.service_name", "ebookviewer-api")
	v.SetDefault("otel.sample_ratio", 1.0)
}

// fillSecrets generates per-process secrets outside prod when none are configured.
func fillSecrets(cfg *Config) error {
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Auth.RefreshSecret = strings.TrimSpace(cfg.Auth.RefreshSecret)
	if IsProdLike(cfg.App.Env) {
		return nil
	}
	if cfg.Auth.JWTSecret == "" {
		s, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = s
		cfg.GeneratedSecrets = true
	}
	if cfg.Auth.RefreshSecret == "" {
		s, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.RefreshSecret = s
		cfg.GeneratedSecrets = true
	}
	return nil
}

var validate = validator.New()

// Validate checks struct constraints and the prod-only rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" || cfg.Auth.RefreshSecret == "" {
		return fmt.Errorf("auth.jwt_secret and auth.refresh_secret must be set")
	}
	if cfg.Auth.JWTSecret == cfg.Auth.RefreshSecret {
		return fmt.Errorf("auth.refresh_secret must differ from auth.jwt_secret")
	}
	if cfg.Kafka.Topic == "" && len(cfg.Kafka.Brokers) > 0 {
		return fmt.Errorf("kafka.topic must be set when kafka.brokers is configured")
	}

	if IsProdLike(cfg.App.Env) {
		if isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Auth.RefreshSecret, defaultRefreshSecret) {
			return fmt.Errorf("in prod/release JWT_REFRESH_SECRET must be set and not default")
		}
		if cfg.Auth.AdminPassword == defaultAdminPassword {
			return fmt.Errorf("in prod/release AUTH_ADMIN_PASSWORD must not be default")
		}
	}
	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

// splitList flattens comma separated entries, which is how list values arrive from env.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
