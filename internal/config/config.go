package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tuition-escrow/internal/domain/ledger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort         string
	ShutdownTimeout time.Duration
	LogLevel        string
	GormLogLevel    string

	DBDriver    string // mysql | sqlite
	DBDSN       string // overrides the MYSQL_* parts when set
	AutoMigrate bool

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdempTTL time.Duration

	XRPLRPCURL       string
	XRPLWSURL        string
	ReleaserAccount  string
	ReleaserSecret   string
	LedgerWindow     uint32
	LedgerPollPeriod time.Duration

	PinataBaseURL   string
	PinataAPIKey    string
	PinataAPISecret string

	MaturityUTCOffset string
	MinLockLead       time.Duration

	ReconcileInterval         time.Duration
	ReconcileAgreementTimeout time.Duration
	ReconcileLockTTL          time.Duration

	ListenerRefresh    time.Duration
	ListenerBackoffMin time.Duration
	ListenerBackoffMax time.Duration

	errs []error
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (c *Config) duration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := time.ParseDuration(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("invalid %s %q: %w", k, v, err))
		return d
	}
	return n
}

func (c *Config) integer(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("invalid %s %q: %w", k, v, err))
		return d
	}
	return n
}

// Load reads the environment, after merging an optional .env file (or the
// file named by ENV_FILE). Existing variables win over the file.
func Load() *Config {
	_ = godotenv.Load(getenv("ENV_FILE", ".env"))

	c := &Config{
		AppPort:      getenv("APP_PORT", "8080"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		GormLogLevel: getenv("GORM_LOG_LEVEL", "warn"),

		DBDriver:    getenv("DB_DRIVER", "mysql"),
		DBDSN:       os.Getenv("DB_DSN"),
		AutoMigrate: getenv("DB_AUTO_MIGRATE", "true") == "true",

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "tuition_escrow"),
		MySQLUser: getenv("MYSQL_USER", "escrow"),
		MySQLPass: getenv("MYSQL_PASS", "escrow"),

		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		XRPLRPCURL:      getenv("XRPL_RPC_URL", "https://s.altnet.rippletest.net:51234"),
		XRPLWSURL:       getenv("XRPL_WS_URL", "wss://s.altnet.rippletest.net:51233"),
		ReleaserAccount: os.Getenv("RELEASER_ACCOUNT"),
		ReleaserSecret:  os.Getenv("RELEASER_SECRET"),

		PinataBaseURL:   getenv("PINATA_BASE_URL", "https://api.pinata.cloud"),
		PinataAPIKey:    os.Getenv("PINATA_API_KEY"),
		PinataAPISecret: os.Getenv("PINATA_SECRET_API_KEY"),

		MaturityUTCOffset: getenv("MATURITY_UTC_OFFSET", "+08:00"),
	}
	c.RedisDB = c.integer("REDIS_DB", 0)
	c.LedgerWindow = uint32(c.integer("LEDGER_WINDOW", 20))

	c.ShutdownTimeout = c.duration("SHUTDOWN_TIMEOUT", 15*time.Second)
	c.IdempTTL = c.duration("IDEMPOTENCY_TTL", 5*time.Minute)
	c.LedgerPollPeriod = c.duration("LEDGER_POLL_INTERVAL", time.Second)
	c.MinLockLead = c.duration("MIN_LOCK_LEAD", 5*time.Minute)
	c.ReconcileInterval = c.duration("RECONCILE_INTERVAL", time.Hour)
	c.ReconcileAgreementTimeout = c.duration("RECONCILE_AGREEMENT_TIMEOUT", 2*time.Minute)
	c.ReconcileLockTTL = c.duration("RECONCILE_LOCK_TTL", 5*time.Minute)
	c.ListenerRefresh = c.duration("LISTENER_REFRESH_INTERVAL", time.Minute)
	c.ListenerBackoffMin = c.duration("LISTENER_BACKOFF_MIN", time.Second)
	c.ListenerBackoffMax = c.duration("LISTENER_BACKOFF_MAX", time.Minute)
	return c
}

func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)

	if c.AppPort == "" {
		errs = append(errs, errors.New("missing APP_PORT"))
	} else if _, err := net.LookupPort("tcp", c.AppPort); err != nil {
		errs = append(errs, fmt.Errorf("invalid APP_PORT %q: %w", c.AppPort, err))
	}

	switch c.DBDriver {
	case "mysql":
		if c.DBDSN == "" {
			if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
				errs = append(errs, errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER or DB_DSN)"))
			} else if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
				errs = append(errs, fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err))
			}
		}
	case "sqlite":
		if c.DBDSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for DB_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	if c.RedisAddr == "" {
		errs = append(errs, errors.New("missing REDIS_ADDR"))
	}
	if err := checkURL("XRPL_RPC_URL", c.XRPLRPCURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("XRPL_WS_URL", c.XRPLWSURL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("PINATA_BASE_URL", c.PinataBaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if (c.ReleaserAccount == "") != (c.ReleaserSecret == "") {
		errs = append(errs, errors.New("RELEASER_ACCOUNT and RELEASER_SECRET must be set together"))
	}
	if _, err := ledger.ParseOffset(c.MaturityUTCOffset); err != nil {
		errs = append(errs, fmt.Errorf("invalid MATURITY_UTC_OFFSET %q: %w", c.MaturityUTCOffset, err))
	}
	if c.LedgerWindow == 0 {
		errs = append(errs, errors.New("LEDGER_WINDOW must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"RECONCILE_INTERVAL":          c.ReconcileInterval,
		"RECONCILE_AGREEMENT_TIMEOUT": c.ReconcileAgreementTimeout,
		"RECONCILE_LOCK_TTL":          c.ReconcileLockTTL,
		"LISTENER_REFRESH_INTERVAL":   c.ListenerRefresh,
		"LISTENER_BACKOFF_MIN":        c.ListenerBackoffMin,
		"IDEMPOTENCY_TTL":             c.IdempTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.ListenerBackoffMax < c.ListenerBackoffMin {
		errs = append(errs, errors.New("LISTENER_BACKOFF_MAX must not be below LISTENER_BACKOFF_MIN"))
	}
	return errors.Join(errs...)
}

// ReleaseEnabled reports whether the reconciler may finish matured locks itself.
func (c *Config) ReleaseEnabled() bool { return c.ReleaserAccount != "" }

// MaturityZone is the fixed-offset zone due dates are read in. Call after Validate.
func (c *Config) MaturityZone() *time.Location {
	loc, _ := ledger.ParseOffset(c.MaturityUTCOffset)
	return loc
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid %s %q", name, raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("%s must use %s", name, strings.Join(schemes, " or "))
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

// DSN returns DB_DSN, or builds a MySQL DSN from the MYSQL_* parts.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
