package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// lending policy
	LoanDuration       time.Duration
	MinSecurityDeposit string // asset units
	AssetDecimals      int32
	PolicyFile         string
	VerifyingKeyFile   string
	BorrowerLockTTL    time.Duration

	LogLevel string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getduration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := time.ParseDuration(v); err == nil {
			return n
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "zkloan"),
		MySQLUser: getenv("MYSQL_USER", "zkloan"),
		MySQLPass: getenv("MYSQL_PASS", "zkloan"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		LoanDuration:       getduration("LOAN_DURATION", 30*24*time.Hour),
		MinSecurityDeposit: getenv("MIN_SECURITY_DEPOSIT", "0.01"),
		AssetDecimals:      int32(getint("ASSET_DECIMALS", 18)),
		PolicyFile:         getenv("POLICY_FILE", "config/policy.yaml"),
		VerifyingKeyFile:   getenv("VERIFYING_KEY_FILE", "config/credit_vk.bin"),
		BorrowerLockTTL:    getduration("BORROWER_LOCK_TTL", 15*time.Second),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.RedisAddr == "" {
		return errors.New("missing REDIS_ADDR")
	}
	if c.LoanDuration <= 0 {
		return fmt.Errorf("LOAN_DURATION must be positive, got %s", c.LoanDuration)
	}
	if c.AssetDecimals < 0 || c.AssetDecimals > 36 {
		return fmt.Errorf("ASSET_DECIMALS out of range: %d", c.AssetDecimals)
	}
	if c.BorrowerLockTTL <= 0 {
		return fmt.Errorf("BORROWER_LOCK_TTL must be positive, got %s", c.BorrowerLockTTL)
	}
	if c.PolicyFile == "" || c.VerifyingKeyFile == "" {
		return errors.New("missing POLICY_FILE or VERIFYING_KEY_FILE")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
