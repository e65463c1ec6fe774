package config

import (
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DB_USER":                "app",
		"DB_HOST":                "localhost",
		"DB_PORT":                "3306",
		"DB_NAME":                "supply",
		"JWT_SECRET":             "s",
		"ACCESS_TOKEN_TTL_MIN":   "15",
		"REFRESH_TOKEN_TTL_DAYS": "7",
		"BCRYPT_COST":            "10",
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(baseEnv())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TimeZone != "UTC" || cfg.Location() != time.UTC {
		t.Errorf("timezone = %q", cfg.TimeZone)
	}
	if !cfg.AllowAuthorJoin {
		t.Error("author join should default to allowed")
	}
	if cfg.DBAutoMigrate {
		t.Error("auto migrate should default to off")
	}
	if cfg.EventLogDir != "logs" {
		t.Errorf("event log dir = %q", cfg.EventLogDir)
	}
	if cfg.AccessTTLMin != 15 || cfg.RefreshTTLDays != 7 {
		t.Errorf("ttl = %d/%d", cfg.AccessTTLMin, cfg.RefreshTTLDays)
	}
}

func TestParseRequired(t *testing.T) {
	for _, key := range []string{"APP_PORT", "DB_HOST", "JWT_SECRET", "BCRYPT_COST"} {
		t.Run(key, func(t *testing.T) {
			e := baseEnv()
			delete(e, key)
			if _, err := Parse(e); err == nil {
				t.Fatalf("expected error without %s", key)
			}
		})
	}
}

func TestParseTimeZone(t *testing.T) {
	e := baseEnv()
	e["APP_TIMEZONE"] = "Asia/Seoul"
	e["SUPPLY_ALLOW_AUTHOR_JOIN"] = "false"
	cfg, err := Parse(e)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Location().String() != "Asia/Seoul" || cfg.AllowAuthorJoin {
		t.Errorf("cfg = %+v", cfg)
	}

	e["APP_TIMEZONE"] = "Mars/Olympus"
	if _, err := Parse(e); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestRateLimitNormalize(t *testing.T) {
	cfg := RateLimitConfig{Capacity: 60, RefillTokens: 5, RefillInterval: time.Second, TTL: time.Second, Burst: 10, RefillEvery: 3 * time.Second}.normalize()
	if cfg.Capacity != 10 || cfg.RefillTokens != 1 || cfg.RefillInterval != 3*time.Second {
		t.Errorf("shorthands not applied: %+v", cfg)
	}
	if cfg.TTL != 15*time.Second {
		t.Errorf("ttl = %s, want at least five refill intervals", cfg.TTL)
	}

	cfg = RateLimitConfig{Burst: -1}.normalize()
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 || cfg.RefillInterval != time.Second {
		t.Errorf("zero config not clamped: %+v", cfg)
	}
}

func TestParseMethods(t *testing.T) {
	m := parseMethods([]string{" get", "Head ", ""})
	if len(m) != 2 || !m["GET"] || !m["HEAD"] {
		t.Errorf("methods = %v", m)
	}
}

func TestRedisAddress(t *testing.T) {
	if got := (RedisConfig{Addr: "a:1"}).Address(); got != "a:1" {
		t.Errorf("addr = %q", got)
	}
	if got := (RedisConfig{Addr: "a:1", Host: "h", Port: "2"}).Address(); got != "h:2" {
		t.Errorf("host/port = %q", got)
	}
}
