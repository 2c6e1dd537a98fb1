package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/jobshare")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 7091, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 10, cfg.JobShare.MaxCascadeDepth)
	assert.Equal(t, "carbon_copy", cfg.JobShare.ChainEncoding)
	assert.True(t, cfg.JobShare.SyncEnabled)
	assert.Equal(t, 3, cfg.JobShare.SyncRetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.JobShare.SyncRetryBackoff)
	assert.Equal(t, 500, cfg.JobShare.MessageMaxLength)
}

func TestLoadReadsJobShareOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/jobshare")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("JOBSHARE_MAX_CASCADE_DEPTH", "4")
	t.Setenv("JOBSHARE_CHAIN_ENCODING", "Embedded")
	t.Setenv("JOBSHARE_SYNC_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.JobShare.MaxCascadeDepth)
	assert.Equal(t, "embedded", cfg.JobShare.ChainEncoding)
	assert.False(t, cfg.JobShare.SyncEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoadRejectsUnknownEncoding(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/jobshare")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("JOBSHARE_CHAIN_ENCODING", "linked_list")

	_, err := Load()
	require.Error(t, err)
}
