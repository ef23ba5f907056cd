package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"INVOICELY_API_URL", "INVOICELY_HTTP_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "SANDBOX_ADDR", "SANDBOX_JWT_SECRET", "SANDBOX_DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, ":5000", cfg.Sandbox.Address)
	assert.Empty(t, cfg.Sandbox.DatabaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INVOICELY_API_URL", "https://api.example.com/api")
	t.Setenv("INVOICELY_HTTP_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SANDBOX_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.API.URL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "s3cret", cfg.Sandbox.JWTSecret)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("INVOICELY_HTTP_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("INVOICELY_HTTP_TIMEOUT", "-1s")
	_, err = Load()
	require.Error(t, err)
}

func TestResolveAPIURL(t *testing.T) {
	assert.Equal(t, "http://flag/api", ResolveAPIURL("http://flag/api", "http://env/api", "http://user/api"))
	assert.Equal(t, "http://env/api", ResolveAPIURL("", "http://env/api", "http://user/api"))
	assert.Equal(t, "http://user/api", ResolveAPIURL("", "", "http://user/api"))
	assert.Equal(t, defaultAPIURL, ResolveAPIURL("", "", ""))
}
