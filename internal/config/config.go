package config

import (
	"fmt"
	"net"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "FOLIO"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabasePath       = "folio.db"
	defaultDatabaseAttempts   = 3
	defaultDatabaseRetryDelay = 2 * time.Second
	defaultLogLevel           = "info"
	defaultRateLimitBackend   = "memory"
	defaultRateLimit          = 5
	defaultRateLimitWindow    = time.Minute
	defaultTelegramAPIURL     = "https://api.telegram.org"
	defaultTelegramTimezone   = "Asia/Jakarta"
	defaultTelegramTimeout    = 5 * time.Second
	defaultTelegramRate       = 25
	defaultGeoAPIURL          = "http://ip-api.com"
	defaultGeoTimeout         = 3 * time.Second
	defaultCertificatesDir    = "public/certificates"
	defaultCertificatesPrefix = "/certificates"
	defaultRetentionInterval  = time.Hour
	defaultEventsQueue        = "folio_events"
)

var supportedDrivers = map[string]struct{}{
	"sqlite":   {},
	"mysql":    {},
	"postgres": {},
	"memory":   {},
}

// DatabaseConfig selects and parameterises the storage backend.
type DatabaseConfig struct {
	Driver      string
	Path        string
	DSN         string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	MaxAttempts int
	RetryDelay  time.Duration
	SeedDemo    bool
}

// RateLimitConfig controls admission on the contact write path.
type RateLimitConfig struct {
	Backend       string
	Limit         int
	Window        time.Duration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

// TelegramConfig holds bot credentials. An empty token or chat id disables messaging.
type TelegramConfig struct {
	BotToken      string
	ChatID        string
	APIURL        string
	WebhookSecret string
	Timezone      string
	Timeout       time.Duration
	RatePerSecond int
}

// Enabled reports whether both credentials are present.
func (c TelegramConfig) Enabled() bool {
	return strings.TrimSpace(c.BotToken) != "" && strings.TrimSpace(c.ChatID) != ""
}

type GeoConfig struct {
	APIURL  string
	Timeout time.Duration
}

type CertificatesConfig struct {
	Dir        string
	URLPrefix  string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

type RetentionConfig struct {
	VisitorDays int
	Interval    time.Duration
}

type EventsConfig struct {
	AMQPURL string
	Queue   string
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	Database       DatabaseConfig
	RateLimit      RateLimitConfig
	Telegram       TelegramConfig
	Geo            GeoConfig
	Certificates   CertificatesConfig
	Retention      RetentionConfig
	Events         EventsConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("http.trusted_proxies", []string{})
	configViper.SetDefault("cors.allowed_origins", []string{"*"})

	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.host", "")
	configViper.SetDefault("database.port", 0)
	configViper.SetDefault("database.user", "")
	configViper.SetDefault("database.password", "")
	configViper.SetDefault("database.name", "")
	configViper.SetDefault("database.max_attempts", defaultDatabaseAttempts)
	configViper.SetDefault("database.retry_delay", defaultDatabaseRetryDelay)
	configViper.SetDefault("database.seed_demo", false)

	configViper.SetDefault("ratelimit.backend", defaultRateLimitBackend)
	configViper.SetDefault("ratelimit.limit", defaultRateLimit)
	configViper.SetDefault("ratelimit.window", defaultRateLimitWindow)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", 0)

	configViper.SetDefault("telegram.bot_token", "")
	configViper.SetDefault("telegram.chat_id", "")
	configViper.SetDefault("telegram.api_url", defaultTelegramAPIURL)
	configViper.SetDefault("telegram.webhook_secret", "")
	configViper.SetDefault("telegram.timezone", defaultTelegramTimezone)
	configViper.SetDefault("telegram.timeout", defaultTelegramTimeout)
	configViper.SetDefault("telegram.rate_per_second", defaultTelegramRate)

	configViper.SetDefault("geo.api_url", defaultGeoAPIURL)
	configViper.SetDefault("geo.timeout", defaultGeoTimeout)

	configViper.SetDefault("certificates.dir", defaultCertificatesDir)
	configViper.SetDefault("certificates.url_prefix", defaultCertificatesPrefix)
	configViper.SetDefault("certificates.s3_bucket", "")
	configViper.SetDefault("certificates.s3_region", "us-east-1")
	configViper.SetDefault("certificates.s3_endpoint", "")
	configViper.SetDefault("certificates.s3_prefix", "certificates/")

	configViper.SetDefault("retention.visitor_days", 0)
	configViper.SetDefault("retention.interval", defaultRetentionInterval)

	configViper.SetDefault("events.amqp_url", "")
	configViper.SetDefault("events.queue", defaultEventsQueue)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		LogLevel:       configViper.GetString("log.level"),
		AllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		TrustedProxies: trimmedEntries(configViper.GetStringSlice("http.trusted_proxies")),
		Database: DatabaseConfig{
			Driver:      strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
			Path:        configViper.GetString("database.path"),
			DSN:         configViper.GetString("database.dsn"),
			Host:        configViper.GetString("database.host"),
			Port:        configViper.GetInt("database.port"),
			User:        configViper.GetString("database.user"),
			Password:    configViper.GetString("database.password"),
			Name:        configViper.GetString("database.name"),
			MaxAttempts: configViper.GetInt("database.max_attempts"),
			RetryDelay:  configViper.GetDuration("database.retry_delay"),
			SeedDemo:    configViper.GetBool("database.seed_demo"),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(strings.TrimSpace(configViper.GetString("ratelimit.backend"))),
			Limit:         configViper.GetInt("ratelimit.limit"),
			Window:        configViper.GetDuration("ratelimit.window"),
			RedisAddress:  configViper.GetString("redis.address"),
			RedisPassword: configViper.GetString("redis.password"),
			RedisDB:       configViper.GetInt("redis.db"),
		},
		Telegram: TelegramConfig{
			BotToken:      configViper.GetString("telegram.bot_token"),
			ChatID:        strings.TrimSpace(configViper.GetString("telegram.chat_id")),
			APIURL:        configViper.GetString("telegram.api_url"),
			WebhookSecret: configViper.GetString("telegram.webhook_secret"),
			Timezone:      configViper.GetString("telegram.timezone"),
			Timeout:       configViper.GetDuration("telegram.timeout"),
			RatePerSecond: configViper.GetInt("telegram.rate_per_second"),
		},
		Geo: GeoConfig{
			APIURL:  configViper.GetString("geo.api_url"),
			Timeout: configViper.GetDuration("geo.timeout"),
		},
		Certificates: CertificatesConfig{
			Dir:        configViper.GetString("certificates.dir"),
			URLPrefix:  configViper.GetString("certificates.url_prefix"),
			S3Bucket:   configViper.GetString("certificates.s3_bucket"),
			S3Region:   configViper.GetString("certificates.s3_region"),
			S3Endpoint: configViper.GetString("certificates.s3_endpoint"),
			S3Prefix:   configViper.GetString("certificates.s3_prefix"),
		},
		Retention: RetentionConfig{
			VisitorDays: configViper.GetInt("retention.visitor_days"),
			Interval:    configViper.GetDuration("retention.interval"),
		},
		Events: EventsConfig{
			AMQPURL: configViper.GetString("events.amqp_url"),
			Queue:   configViper.GetString("events.queue"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("http.trusted_proxies entry %q is not an IP or CIDR", proxy)
		}
	}
	if _, ok := supportedDrivers[c.Database.Driver]; !ok {
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "mysql", "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" && strings.TrimSpace(c.Database.Host) == "" {
			return fmt.Errorf("database.dsn or database.host is required for %s", c.Database.Driver)
		}
	}
	if c.Database.MaxAttempts <= 0 {
		return fmt.Errorf("database.max_attempts must be positive")
	}
	if c.Database.RetryDelay < 0 {
		return fmt.Errorf("database.retry_delay must not be negative")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RateLimit.RedisAddress) == "" {
			return fmt.Errorf("redis.address is required for the redis rate limiter")
		}
	default:
		return fmt.Errorf("ratelimit.backend %q is not supported", c.RateLimit.Backend)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("ratelimit.limit must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive")
	}
	if _, err := time.LoadLocation(c.Telegram.Timezone); err != nil {
		return fmt.Errorf("telegram.timezone: %w", err)
	}
	if c.Retention.VisitorDays < 0 {
		return fmt.Errorf("retention.visitor_days must not be negative")
	}
	if c.Retention.VisitorDays > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive when retention is enabled")
	}
	return nil
}

func trimmedEntries(values []string) []string {
	entries := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				entries = append(entries, trimmed)
			}
		}
	}
	return entries
}

func validProxy(entry string) bool {
	if net.ParseIP(entry) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(entry)
	return err == nil
}
