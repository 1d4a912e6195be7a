package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.Equal(t, time.Hour, cfg.TicketTTL)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")
}

func TestLoadFileAndEnv(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
jwt_secret: from-file
socket_url: wss://file.example.com
stun_servers:
  - stun:stun.l.google.com:19302
ticket_ttl: 30m
`), 0o600))

	t.Setenv("ARVIEW_JWT_SECRET", "from-env")
	t.Setenv("ARVIEW_AUTH_TOKEN", "system-token")

	cfg, _, err := Load(&logger, path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "system-token", cfg.AuthToken)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.STUNServers)
	assert.Equal(t, 30*time.Minute, cfg.TicketTTL)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"jwt_secret", "auth_token", "socket_url", "stun_servers"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg.JWTSecret = "s"
	cfg.AuthToken = "t"
	cfg.SocketURL = "wss://example.com"
	cfg.STUNServers = []string{"http://not-stun"}
	require.Error(t, cfg.Validate())

	cfg.STUNServers = []string{"stun:stun1.l.google.com:19302", " stun:stun2.l.google.com:19302 "}
	require.NoError(t, cfg.Validate())

	ice := cfg.ICEServers()
	require.Len(t, ice, 1)
	assert.Equal(t, []string{"stun:stun1.l.google.com:19302", "stun:stun2.l.google.com:19302"}, ice[0].URLs)
}
