package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WEBSERVICE_TIMEOUT", "")
	t.Setenv("WEBSERVICE_URL", "http://example.org/")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.WebserviceTimeout)
	assert.Equal(t, "http://example.org", cfg.WebserviceURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadConfig_BadTimeout(t *testing.T) {
	t.Setenv("WEBSERVICE_TIMEOUT", "soon")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{DbHost: "db", DbUser: "u", DbName: "moodle", JWTSecret: "s", AllowedOrigins: []string{"*"}}

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	cfg.JWTSecret = " "
	_, err = cfg.Validate()
	assert.Error(t, err)

	cfg.DbHost = ""
	_, err = cfg.Validate()
	assert.Error(t, err)
}

func TestValidateClient(t *testing.T) {
	cfg := &Config{WebserviceURL: "http://x", WebserviceToken: "t", WebserviceTimeout: time.Second}
	assert.NoError(t, cfg.ValidateClient())

	cfg.WebserviceToken = ""
	assert.Error(t, cfg.ValidateClient())
}
