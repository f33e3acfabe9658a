package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "MYSQL_HOST", "LOAN_DURATION", "ASSET_DECIMALS", "REDIS_DB", "BORROWER_LOCK_TTL"} {
		t.Setenv(k, "")
	}
	c := Load()

	if c.AppPort != "8080" || c.MySQLHost != "mysql" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.LoanDuration != 30*24*time.Hour {
		t.Fatalf("LoanDuration = %s", c.LoanDuration)
	}
	if c.AssetDecimals != 18 || c.RedisDB != 0 || c.IdempTTLSecs != 300 {
		t.Fatalf("unexpected numeric defaults: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOAN_DURATION", "72h")
	t.Setenv("ASSET_DECIMALS", "6")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MIN_SECURITY_DEPOSIT", "5")
	t.Setenv("BORROWER_LOCK_TTL", "not-a-duration")

	c := Load()
	if c.LoanDuration != 72*time.Hour || c.AssetDecimals != 6 || c.RedisDB != 3 || c.MinSecurityDeposit != "5" {
		t.Fatalf("overrides not applied: %+v", c)
	}
	// malformed values fall back to defaults
	if c.BorrowerLockTTL != 15*time.Second {
		t.Fatalf("BorrowerLockTTL = %s, want default", c.BorrowerLockTTL)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config { t.Setenv("MYSQL_PORT", ""); return Load() }

	c := base()
	c.MySQLHost = ""
	if err := c.Validate(); err == nil {
		t.Fatal("want error for missing MySQL host")
	}

	c = base()
	c.MySQLPort = "not-a-port"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "MYSQL_PORT") {
		t.Fatalf("want MYSQL_PORT error, got %v", err)
	}

	c = base()
	c.LoanDuration = 0
	if err := c.Validate(); err == nil {
		t.Fatal("want error for zero loan duration")
	}

	c = base()
	c.AssetDecimals = 40
	if err := c.Validate(); err == nil {
		t.Fatal("want error for decimals out of range")
	}
}

func TestMySQLDSN(t *testing.T) {
	c := &Config{MySQLUser: "u", MySQLPass: "p", MySQLHost: "db", MySQLPort: "3306", MySQLDB: "zk"}
	dsn := c.MySQLDSN()
	if !strings.HasPrefix(dsn, "u:p@tcp(db:3306)/zk?") || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("unexpected DSN: %s", dsn)
	}
}
