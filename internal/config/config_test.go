package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	require.Equal(t, DefaultPGDatabase, cfg.Postgres.Database)
	require.Equal(t, DefaultMaxImageMB, cfg.Media.MaxImageMB)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = ":9090"

[auth]
jwt_secret = "secret"

[postgres]
host = "db.internal"
port = 5433
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, 5433, cfg.Postgres.Port)
	// Unset fields keep their defaults.
	require.Equal(t, DefaultJWTExpiresIn, cfg.Auth.JWTExpiresIn)
}
