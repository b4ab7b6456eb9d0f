// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Database drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NATS modes
const (
	NATSAuto     = "auto"
	NATSEmbedded = "embedded"
	NATSRemote   = "remote"
	NATSOff      = "off"
)

// Config holds every environment setting of the service
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	Port     string `env:"PORT" envDefault:"3000"`
	GRPCPort string `env:"GRPC_PORT" envDefault:"50051"`

	DBDriver        string `env:"DB_DRIVER" envDefault:"memory"`
	SQLiteFile      string `env:"SQLITE_FILE" envDefault:"roster.sqlite"`
	DatabaseURL     string `env:"DATABASE_URL"`
	SnapshotHistory int    `env:"SNAPSHOT_HISTORY" envDefault:"20"`

	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"roster.events"`
	NATSMode    string `env:"NATS_MODE" envDefault:"auto"`

	ClickHouse ClickHouse

	Authentik    Authentik
	OfficerGroup string `env:"OFFICER_GROUP" envDefault:"officers"`

	CatalogFile string `env:"CATALOG_FILE"`
	InboxDir    string `env:"INBOX_DIR"`
}

// ClickHouse holds the attendance analytics connection settings
type ClickHouse struct {
	Addr     string `env:"CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	Database string `env:"CLICKHOUSE_DB" envDefault:"default"`
	User     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD"`
}

// Authentik holds the OAuth2 client settings used in production
type Authentik struct {
	BaseURL      string `env:"AUTHENTIK_BASE_URL"`
	ClientID     string `env:"AUTHENTIK_CLIENT_ID"`
	ClientSecret string `env:"AUTHENTIK_CLIENT_SECRET"`
	RedirectURL  string `env:"AUTHENTIK_REDIRECT_URL" envDefault:"http://localhost:3000/auth/callback"`
}

// Load parses the process environment
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Development reports whether the in-process stand-ins should be used
func (c Config) Development() bool {
	return c.Environment == "" || c.Environment == "development"
}

// UseEmbeddedNATS resolves NATS_MODE against the environment
func (c Config) UseEmbeddedNATS() bool {
	return c.NATSMode == NATSEmbedded || (c.NATSMode == NATSAuto && c.Development())
}

// Validate rejects settings the service cannot start with
func (c Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q (valid: memory, sqlite, postgres)", c.DBDriver))
	}

	switch c.NATSMode {
	case NATSAuto, NATSEmbedded, NATSRemote, NATSOff:
	default:
		errs = append(errs, fmt.Errorf("unknown NATS_MODE %q (valid: auto, embedded, remote, off)", c.NATSMode))
	}

	if c.SnapshotHistory < 0 {
		errs = append(errs, fmt.Errorf("SNAPSHOT_HISTORY must not be negative, got %d", c.SnapshotHistory))
	}

	if !c.Development() {
		a := c.Authentik
		if a.BaseURL == "" || a.ClientID == "" || a.ClientSecret == "" {
			errs = append(errs, errors.New("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET are required outside development"))
		}
	}

	return errors.Join(errs...)
}
