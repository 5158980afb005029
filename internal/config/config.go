package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Matcher   MatcherConfig
	Limits    LimitsConfig
	SMTP      SMTPConfig
	WebPush   WebPushConfig
	MQTT      MQTTConfig
	Notify    NotifyConfig
	Log       LogConfig
	Templates TemplatesConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Env         string   // "production" enables Secure cookies
	CORSOrigins []string // exact origins allowed to call the API with credentials
	TrustProxy  bool     // take the client IP from X-Forwarded-For / X-Real-IP
}

// IsProduction reports whether the server runs with production settings.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUser     string
	AdminPassword string
	AdminPIN      string
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL, selects the postgres backend when set
	Path          string // SQLite database file used when URL is empty
	MaxOpenConns  int
	MaxIdleConns  int
	HNSWIndexPath string // Path to persist the known-face HNSW index (optional)
}

// UsePostgres reports whether DATABASE_URL points at a PostgreSQL server.
func (c *DatabaseConfig) UsePostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://")
}

type MatcherConfig struct {
	Mode             string  // "linear" or "hnsw"
	DefaultThreshold float64 // used when a user has no settings row
}

type LimitsConfig struct {
	BodyLimitBytes  int64
	AuthRequests    int
	AuthWindow      time.Duration
	AlertRequests   int
	AlertWindow     time.Duration
	AlertCooldown   time.Duration // 0 disables notification cooldown
	ThumbnailWidth  int
	HistoryPageSize int
}

type SMTPConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	To      string
	From    string
	Enabled bool
}

type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string // mailto: or https: contact sent in the VAPID JWT
}

// Enabled reports whether both VAPID keys are configured.
func (c *WebPushConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != ""
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

type NotifyConfig struct {
	URLs    []string // shoutrrr service URLs
	Timeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// TemplatesConfig holds the notification texts rendered with text/template.
type TemplatesConfig struct {
	Email MessageTemplates `yaml:"email"`
	Push  MessageTemplates `yaml:"push"`
}

type MessageTemplates struct {
	WantedSubject  string `yaml:"wanted_subject"`
	UnknownSubject string `yaml:"unknown_subject"`
	Title          string `yaml:"title"`
	Body           string `yaml:"body"`
	From           string `yaml:"from"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the first non-empty value among keys, or the default.
func envString(defaultVal string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return defaultVal
}

// envFloat parses a float in [0, 1]; anything else yields the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return defaultVal
	}
	return f
}

// envDuration parses a Go duration string. Zero is accepted, negatives are not.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// envBool accepts strconv.ParseBool forms; anything else yields the default.
func envBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultVal
	}
	return b
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key, defaultVal string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		raw = defaultVal
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var templates TemplatesConfig
	if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded templates.yaml: " + err.Error())
	}

	smtp := SMTPConfig{
		Host: os.Getenv("SMTP_HOST"),
		Port: envInt("SMTP_PORT", 587),
		User: os.Getenv("SMTP_USER"),
		Pass: os.Getenv("SMTP_PASS"),
		To:   envString("admin@example.com", "ALERT_TO_EMAIL"),
	}
	smtp.From = smtp.User
	smtp.Enabled = smtp.Host != "" && smtp.User != "" && smtp.Pass != ""

	return &Config{
		Server: ServerConfig{
			Host:        envString("0.0.0.0", "WEB_HOST"),
			Port:        envInt("PORT", envInt("WEB_PORT", 5000)),
			Env:         envString("development", "APP_ENV", "NODE_ENV"),
			CORSOrigins: envList("CORS_ORIGINS", "http://localhost:3000"),
			TrustProxy:  envBool("TRUST_PROXY", false),
		},
		Auth: AuthConfig{
			JWTSecret:     envString("change_me_super_secret", "JWT_SECRET"),
			TokenTTL:      envDuration("TOKEN_TTL", 8*time.Hour),
			AdminUser:     envString("admin", "ADMIN_USER"),
			AdminPassword: envString("admin123", "ADMIN_PASSWORD"),
			AdminPIN:      envString("1234", "ADMIN_PIN"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			Path:          envString("facewatch.db", "DATABASE_PATH"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Matcher: MatcherConfig{
			Mode:             strings.ToLower(envString("linear", "MATCHER")),
			DefaultThreshold: envFloat("DEFAULT_THRESHOLD", 0.55),
		},
		Limits: LimitsConfig{
			BodyLimitBytes:  int64(envInt("BODY_LIMIT_BYTES", 5<<20)),
			AuthRequests:    envInt("AUTH_RATE_LIMIT", 60),
			AuthWindow:      envDuration("AUTH_RATE_WINDOW", 10*time.Minute),
			AlertRequests:   envInt("ALERT_RATE_LIMIT", 60),
			AlertWindow:     envDuration("ALERT_RATE_WINDOW", time.Minute),
			AlertCooldown:   envDuration("ALERT_COOLDOWN", 0),
			ThumbnailWidth:  envInt("THUMBNAIL_WIDTH", 160),
			HistoryPageSize: envInt("HISTORY_LIMIT", 300),
		},
		SMTP: smtp,
		WebPush: WebPushConfig{
			PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber: envString("mailto:admin@example.com", "ALERT_EMAIL"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("facewatch/alerts", "MQTT_TOPIC"),
			ClientID: envString("facewatch", "MQTT_CLIENT_ID"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Notify: NotifyConfig{
			URLs:    envList("NOTIFY_URLS", ""),
			Timeout: envDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envString("info", "LOG_LEVEL"),
			Format: envString("json", "LOG_FORMAT"),
		},
		Templates: templates,
	}
}
