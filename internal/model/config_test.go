package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "outlook.office365.com", cfg.Account.Server)
	assert.Equal(t, "inbox", cfg.Search.Folder)
	assert.Equal(t, 100, cfg.Search.Limit)
	assert.Equal(t, ".", cfg.Download.Dir)
	assert.Equal(t, 0, cfg.Account.TimeoutSec)
}

func TestLoadConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`account:
  username: alice@example.com
  email: shared@example.com
search:
  folder: sent
  limit: 25
download:
  dir: /tmp/reports
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", cfg.Account.Username)
	assert.Equal(t, "shared@example.com", cfg.Account.Email)
	assert.Equal(t, "outlook.office365.com", cfg.Account.Server)
	assert.Equal(t, "sent", cfg.Search.Folder)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, "/tmp/reports", cfg.Download.Dir)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("O365MAIL_ACCOUNT_EMAIL", "env@example.com")
	t.Setenv("O365MAIL_SEARCH_LIMIT", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.Account.Email)
	assert.Equal(t, 7, cfg.Search.Limit)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	want := defaultAppConfig()
	want.Account.Username = "alice@example.com"
	want.Account.TimeoutSec = 30
	want.Search.Folder = "sent"
	want.Download.Dir = "/srv/attachments"

	require.NoError(t, SaveConfig(path, want))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
