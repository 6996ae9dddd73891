// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string

	// RegistryPath points at a YAML floor-plan registry. Empty selects the
	// built-in one.
	RegistryPath string
	BuildingID   int64

	RefreshInterval  time.Duration
	RefreshTimeout   time.Duration
	RotationInterval time.Duration

	Redis Redis
	SNMP  SNMP

	DNSServer string
}

type Redis struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Enabled reports whether results should be published to Redis.
func (r Redis) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

type SNMP struct {
	Enabled        bool
	Community      string
	Version        string
	Port           uint16
	Timeout        time.Duration
	Retries        int
	ClientCountOID string
	Workers        int
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}

	snmpPort := e.intOr("SNMP_PORT", 161)
	if snmpPort < 0 || snmpPort > 65535 {
		e.errs = append(e.errs, fmt.Errorf("SNMP_PORT: %d out of range", snmpPort))
		snmpPort = 0
	}

	cfg := Config{
		HTTPAddr:     e.or("HTTP_ADDR", ":8081"),
		LogLevel:     e.or("LOG_LEVEL", "info"),
		DatabaseURL:  e.or("DATABASE_URL", ""),
		RegistryPath: e.or("REGISTRY_PATH", ""),
		BuildingID:   e.int64Or("BUILDING_ID", 0),

		RefreshInterval:  e.durationOr("REFRESH_INTERVAL", 5*time.Second),
		RefreshTimeout:   e.durationOr("REFRESH_TIMEOUT", 10*time.Second),
		RotationInterval: e.durationOr("ROTATION_INTERVAL", 5*time.Second),

		Redis: Redis{
			Addr:      e.or("REDIS_ADDR", ""),
			Password:  e.or("REDIS_PASSWORD", ""),
			DB:        e.intOr("REDIS_DB", 0),
			KeyPrefix: e.or("REDIS_KEY_PREFIX", "roomload:"),
			TTL:       e.durationOr("REDIS_TTL", 0),
		},

		SNMP: SNMP{
			Enabled:        e.boolOr("SNMP_ENABLED", false),
			Community:      e.or("SNMP_COMMUNITY", "public"),
			Version:        e.or("SNMP_VERSION", "2c"),
			Port:           uint16(snmpPort),
			Timeout:        e.durationOr("SNMP_TIMEOUT", 900*time.Millisecond),
			Retries:        e.intOr("SNMP_RETRIES", 1),
			ClientCountOID: e.or("SNMP_CLIENT_COUNT_OID", ""),
			Workers:        e.intOr("SNMP_WORKERS", 8),
		},

		DNSServer: e.or("DNS_SERVER", ""),
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.BuildingID < 0 {
		errs = append(errs, errors.New("BUILDING_ID must not be negative"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.RefreshTimeout <= 0 {
		errs = append(errs, errors.New("REFRESH_TIMEOUT must be positive"))
	}
	if c.RotationInterval <= 0 {
		errs = append(errs, errors.New("ROTATION_INTERVAL must be positive"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("REDIS_TTL must not be negative"))
	}
	if c.SNMP.Enabled {
		switch c.SNMP.Version {
		case "1", "2c":
		default:
			errs = append(errs, fmt.Errorf("SNMP_VERSION %q is not supported (use 1 or 2c)", c.SNMP.Version))
		}
		if strings.TrimSpace(c.SNMP.ClientCountOID) == "" {
			errs = append(errs, errors.New("SNMP_CLIENT_COUNT_OID is required when SNMP_ENABLED is set"))
		}
		if c.SNMP.Port == 0 {
			errs = append(errs, errors.New("SNMP_PORT must be between 1 and 65535"))
		}
		if c.SNMP.Workers <= 0 {
			errs = append(errs, errors.New("SNMP_WORKERS must be positive"))
		}
	}
	return errors.Join(errs...)
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) or(key, fallback string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func (e *env) intOr(key string, fallback int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func (e *env) int64Or(key string, fallback int64) int64 {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func (e *env) boolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func (e *env) durationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
