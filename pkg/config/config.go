package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	Data      DataConfig      `env:", prefix=DATA_"`
	Chart     ChartConfig     `env:", prefix=CHART_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	Visits    VisitsConfig    `env:", prefix=VISITS_"`
	MySQL     MySQLConfig     `env:", prefix=MYSQL_"`
	SQLite    SQLiteConfig    `env:", prefix=SQLITE_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	Scheduler SchedulerConfig `env:", prefix=SCHEDULER_"`
	Features  FeaturesConfig  `env:", prefix=FEATURES_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	WebSocket WebSocketConfig `env:", prefix=WEBSOCKET_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// DataConfig describes where the published JSON files live. Source is either
// an http(s) base URL or a local directory.
type DataConfig struct {
	Source       string        `env:"SOURCE, default=./public/data"`
	FlowPrefix   string        `env:"FLOW_PREFIX, default=backup_marketflow"`
	CalPrefix    string        `env:"CAL_PREFIX, default=cal"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	TablesFile   string        `env:"TABLES_FILE"`
	Timezone     string        `env:"TIMEZONE, default=Asia/Seoul"`
}

// ChartConfig holds flow chart rendering defaults
type ChartConfig struct {
	Width     int    `env:"WIDTH, default=600"`
	Height    int    `env:"HEIGHT, default=1500"`
	MaxWidth  int    `env:"MAX_WIDTH, default=4000"`
	MaxHeight int    `env:"MAX_HEIGHT, default=6000"`
	FontPath  string `env:"FONT_PATH"`
	Overlay   bool   `env:"OVERLAY, default=true"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	BundleTTL    time.Duration `env:"BUNDLE_TTL, default=10m"`
}

// VisitsConfig selects the visit counter backend: mysql, sqlite or none
type VisitsConfig struct {
	Driver string `env:"DRIVER, default=sqlite"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=market_calendar"`
	User            string        `env:"USER, default=calendar"`
	Password        string        `env:"PASSWORD"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// SQLiteConfig holds the local SQLite database location
type SQLiteConfig struct {
	Path string `env:"PATH, default=data/market_calendar.db"`
}

// InfluxConfig holds InfluxDB configuration
type InfluxConfig struct {
	Enabled bool          `env:"ENABLED, default=false"`
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=market-calendar"`
	Bucket  string        `env:"BUCKET, default=marketflow"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
}

// SchedulerConfig holds cron specs for background jobs
type SchedulerConfig struct {
	Enabled     bool   `env:"ENABLED, default=false"`
	PrewarmCron string `env:"PREWARM_CRON, default=0 40 15 * * 1-5"`
	EveningCron string `env:"EVENING_CRON, default=0 10 20 * * 1-5"`
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	WebSocketEnabled bool   `env:"WEBSOCKET_ENABLED, default=true"`
	VisitsEnabled    bool   `env:"VISITS_ENABLED, default=true"`
	FlowStartDate    string `env:"FLOW_START_DATE, default=2025-06-30"`
}

// FlowStart returns the first date the flow chart is published for
func (f FeaturesConfig) FlowStart() time.Time {
	t, err := time.Parse("2006-01-02", f.FlowStartDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE, default=1024"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE, default=1024"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE, default=4096"`
	PingInterval    time.Duration `env:"PING_INTERVAL, default=30s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT, default=60s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=10s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper loads configuration from an arbitrary lookuper (tests use a map)
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := time.Parse("2006-01-02", cfg.Features.FlowStartDate); err != nil {
		return nil, fmt.Errorf("invalid FEATURES_FLOW_START_DATE %q: %w", cfg.Features.FlowStartDate, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Data.Source == "" {
		return fmt.Errorf("data source is required")
	}

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("invalid chart size %dx%d", c.Chart.Width, c.Chart.Height)
	}

	if c.Chart.Width > c.Chart.MaxWidth || c.Chart.Height > c.Chart.MaxHeight {
		return fmt.Errorf("chart size %dx%d exceeds the %dx%d limit",
			c.Chart.Width, c.Chart.Height, c.Chart.MaxWidth, c.Chart.MaxHeight)
	}

	switch c.Visits.Driver {
	case "mysql":
		if c.MySQL.Host == "" {
			return fmt.Errorf("MySQL host is required for the mysql visits driver")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path is required for the sqlite visits driver")
		}
	case "none", "":
	default:
		return fmt.Errorf("unknown visits driver %q", c.Visits.Driver)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("InfluxDB URL is required")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	return nil
}

// IsRemoteSource reports whether the data source is an HTTP base URL
func (c *Config) IsRemoteSource() bool {
	return strings.HasPrefix(c.Data.Source, "http://") || strings.HasPrefix(c.Data.Source, "https://")
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
