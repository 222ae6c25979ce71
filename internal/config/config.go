// Package config loads application configuration from defaults, an optional YAML file
// and PORTAL_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore: PORTAL_SERVER__PORT.
const EnvPrefix = "PORTAL_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Database      DatabaseConfig      `koanf:"database"`
	Incidents     IncidentsConfig     `koanf:"incidents"`
	Upstream      UpstreamConfig      `koanf:"upstream"`
	Auth          AuthConfig          `koanf:"auth"`
	Access        AccessConfig        `koanf:"access"`
	Assistant     AssistantConfig     `koanf:"assistant"`
	Digest        DigestConfig        `koanf:"digest"`
	Reports       ReportsConfig       `koanf:"reports"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Catalog       CatalogConfig       `koanf:"catalog"`
}

// ServerConfig configures the API and metrics HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text pretty"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DatabaseConfig configures the PostgreSQL pool used by the postgres incident source.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// Incident source kinds.
const (
	SourceFallback = "fallback"
	SourcePostgres = "postgres"
	SourceUpstream = "upstream"
)

// IncidentsConfig selects and tunes the incident data source.
type IncidentsConfig struct {
	Source         string        `koanf:"source" validate:"oneof=fallback postgres upstream"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	EnforceMarkets bool          `koanf:"enforce_markets"`
}

// UpstreamConfig points at the incident-management backend.
type UpstreamConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuthConfig configures the magic-link login mock.
type AuthConfig struct {
	SecretKey      string        `koanf:"secret_key" validate:"required,min=16"`
	LinkTTL        time.Duration `koanf:"link_ttl" validate:"gt=0"`
	SessionTTL     time.Duration `koanf:"session_ttl" validate:"gt=0"`
	PortalURL      string        `koanf:"portal_url" validate:"required,url"`
	AllowAnonymous bool          `koanf:"allow_anonymous"`
	ExposeLink     bool          `koanf:"expose_link"`
	LinkDelivery   string        `koanf:"link_delivery" validate:"oneof=log upstream"`
}

// Magic-link delivery modes.
const (
	LinkDeliveryLog      = "log"
	LinkDeliveryUpstream = "upstream"
)

// AccessConfig maps stakeholders to the brands and markets they may view.
type AccessConfig struct {
	DefaultScope domain.AccessScope `koanf:"default_scope"`
	Scopes       []UserScope        `koanf:"scopes" validate:"dive"`
}

// UserScope grants a scope to a single e-mail address.
type UserScope struct {
	Email   string   `koanf:"email" validate:"required,email"`
	Brands  []string `koanf:"brands" validate:"required,min=1,unique"`
	Markets []string `koanf:"markets" validate:"unique"`
}

// Assistant snapshot kinds.
const (
	AssistantSourceCanned = "canned"
	AssistantSourceLive   = "live"
)

// AssistantConfig configures the chat assistant.
type AssistantConfig struct {
	IncidentSource   string        `koanf:"incident_source" validate:"oneof=canned live"`
	TypingDelay      time.Duration `koanf:"typing_delay" validate:"gte=0"`
	Timezone         string        `koanf:"timezone"`
	ConversationTTL  time.Duration `koanf:"conversation_ttl" validate:"gt=0"`
	MaxConversations int           `koanf:"max_conversations" validate:"gt=0"`
}

// DigestConfig configures digest statistics and delivery scheduling.
type DigestConfig struct {
	ReportedUptime float64 `koanf:"reported_uptime" validate:"gte=0,lte=100"`
	Timezone       string  `koanf:"timezone"`
}

// Report sink kinds.
const (
	ReportSinkLog      = "log"
	ReportSinkUpstream = "upstream"
)

// ReportsConfig selects where submitted reports go.
type ReportsConfig struct {
	Sink string `koanf:"sink" validate:"oneof=log upstream"`
}

// NotificationsConfig configures on-call alert channels.
type NotificationsConfig struct {
	Mattermost MattermostConfig `koanf:"mattermost"`
	Telegram   TelegramConfig   `koanf:"telegram"`
}

// MattermostConfig configures the Mattermost incoming webhook.
type MattermostConfig struct {
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`
	Username   string `koanf:"username"`
}

// TelegramConfig configures the Telegram bot used for alerts.
type TelegramConfig struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token" validate:"required_if=Enabled true"`
	ChatID    string  `koanf:"chat_id" validate:"required_if=Enabled true"`
	RateLimit float64 `koanf:"rate_limit"`
}

// CatalogConfig lists the brands, markets and systems known to the portal.
type CatalogConfig struct {
	Brands      []string           `koanf:"brands" validate:"required,min=1,unique"`
	Markets     []string           `koanf:"markets" validate:"required,min=1,unique"`
	Systems     []string           `koanf:"systems" validate:"unique"`
	StatusPages []StatusPageConfig `koanf:"status_pages" validate:"dive"`
}

// StatusPageConfig links a brand to its public status page.
type StatusPageConfig struct {
	Brand  string `koanf:"brand" validate:"required"`
	URL    string `koanf:"url" validate:"required"`
	Region string `koanf:"region"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Incidents: IncidentsConfig{
			Source:       SourceFallback,
			FetchTimeout: 5 * time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			LinkTTL:        10 * time.Minute,
			SessionTTL:     12 * time.Hour,
			PortalURL:      "http://localhost:3000",
			AllowAnonymous: true,
			LinkDelivery:   LinkDeliveryLog,
		},
		Access: AccessConfig{
			DefaultScope: domain.AccessScope{
				Brands:  []string{"Pizza Hut", "KFC", "Taco Bell"},
				Markets: []string{"North America", "EMEA"},
			},
		},
		Assistant: AssistantConfig{
			IncidentSource:   AssistantSourceCanned,
			TypingDelay:      1500 * time.Millisecond,
			Timezone:         "UTC",
			ConversationTTL:  time.Hour,
			MaxConversations: 10000,
		},
		Digest: DigestConfig{
			ReportedUptime: 96.8,
			Timezone:       "America/Kentucky/Louisville",
		},
		Reports: ReportsConfig{
			Sink: ReportSinkLog,
		},
		Notifications: NotificationsConfig{
			Mattermost: MattermostConfig{Username: "Incident Portal"},
			Telegram:   TelegramConfig{RateLimit: 1},
		},
		Catalog: CatalogConfig{
			Brands:  []string{"Pizza Hut", "KFC", "Taco Bell", "Habit Burger"},
			Markets: []string{"North America", "EMEA", "APAC", "Latin America"},
			Systems: []string{
				"Mobile App", "Website", "Payment Processing", "Order Management",
				"Delivery Tracking", "POS Systems", "Customer Service", "Marketing Platform",
			},
			StatusPages: []StatusPageConfig{
				{Brand: "Pizza Hut", URL: "#", Region: "Global"},
				{Brand: "KFC", URL: "#", Region: "Global"},
				{Brand: "Taco Bell", URL: "#", Region: "Americas"},
				{Brand: "Habit Burger", URL: "#", Region: "US Only"},
			},
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults and
// environment variables are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UsesUpstream reports whether any component talks to the incident-management backend.
func (c *Config) UsesUpstream() bool {
	return c.Incidents.Source == SourceUpstream ||
		c.Reports.Sink == ReportSinkUpstream ||
		c.Auth.LinkDelivery == LinkDeliveryUpstream
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Incidents.Source == SourcePostgres && c.Database.URL == "" {
		return fmt.Errorf("invalid config: database.url is required for the postgres incident source")
	}
	if c.UsesUpstream() && c.Upstream.BaseURL == "" {
		return fmt.Errorf("invalid config: upstream.base_url is required when the upstream backend is used")
	}
	if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
		return fmt.Errorf("invalid config: assistant.timezone: %w", err)
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		return fmt.Errorf("invalid config: digest.timezone: %w", err)
	}

	return nil
}

// envKey maps PORTAL_SERVER__READ_TIMEOUT to server.read_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
