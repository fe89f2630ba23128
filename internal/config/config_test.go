package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :9000 "
database:
  host: localhost
  name: coupons
catalog:
  base_url: "https://catalog.example.com/ "
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, "https://catalog.example.com", cfg.Catalog.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 4, cfg.Catalog.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.True(t, cfg.RateLimited())
}

func TestLoadDurations(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: coupons
catalog:
  timeout: 3s
  cache_ttl: 0s
sessions:
  ttl: 1h
rate_limit:
  requests_per_minute: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Catalog.Timeout)
	assert.Zero(t, cfg.Catalog.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Sessions.TTL)
	assert.False(t, cfg.RateLimited())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COUPON_FORM_LISTEN", ":7000")
	t.Setenv("COUPON_FORM_ENV", "staging")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "forms")
	t.Setenv("CATALOG_BASE_URL", "http://catalog:18000")
	t.Setenv("CATALOG_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddress)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "forms", cfg.Database.DBName)
	assert.Equal(t, "http://catalog:18000", cfg.Catalog.BaseURL)
	assert.Equal(t, "secret", cfg.Catalog.Token)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"missing database", `listen: ":8080"`},
		{"bad catalog url", `
database: {host: localhost, name: coupons}
catalog: {base_url: "catalog.local"}
`},
		{"negative rate", `
database: {host: localhost, name: coupons}
rate_limit: {requests_per_minute: -1}
`},
		{"unknown field", `
database: {host: localhost, name: coupons}
catalgo: {}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
