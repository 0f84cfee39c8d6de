package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "margaret.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, heredoc.Doc(`
		http:
		  addr: ":9000"
		  corsOrigins:
		    - https://margaret.example
		auth:
		  tokenSecret: sekrit
		accounts:
		  deletionDelay: 48h
	`))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://margaret.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 48*time.Hour, cfg.Accounts.DeletionDelay)
	// untouched values keep their defaults
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("MARGARET_TOKEN_SECRET", "from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.TokenSecret)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := writeConfig(t, heredoc.Doc(`
		auth:
		  tokenSecret: from-file
		database:
		  uri: postgres://file
	`))

	t.Setenv("MARGARET_DATABASE_URI", "postgres://env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URI)
	assert.Equal(t, "from-file", cfg.Auth.TokenSecret)
}
