// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8750", cfg.Server.URL)
	assert.Equal(t, "llama2-7b-chat", cfg.Server.Model)
	assert.Equal(t, 20, cfg.Generation.StreamTimeoutSecs)
	assert.Equal(t, 512, cfg.Generation.MaxNewTokens)
	assert.Equal(t, 128, cfg.Generation.ContinueTokens)
	assert.True(t, cfg.Generation.DoSample)
	assert.Equal(t, 50, cfg.Generation.TopK)
	assert.InDelta(t, 0.90, cfg.Generation.TopP, 0.001)
	assert.InDelta(t, 0.8, cfg.Generation.Temperature, 0.001)
	assert.False(t, cfg.Auth.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1.0.0"

[server]
url = "http://127.0.0.1:9999"
model = "mistral-7b"

[generation]
stream_timeout_secs = 45
seed = 42

[auth]
enabled = true
credentials_file = "/tmp/creds.txt"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999", cfg.Server.URL)
	assert.Equal(t, "mistral-7b", cfg.Server.Model)
	assert.Equal(t, 45, cfg.Generation.StreamTimeoutSecs)
	assert.Equal(t, int64(42), cfg.Generation.Seed)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "/tmp/creds.txt", cfg.Auth.CredentialsFile)

	// Unspecified fields get defaults.
	assert.Equal(t, 512, cfg.Generation.MaxNewTokens)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoadFromPathInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[generation]
top_p = 3.5
temperature = -1.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.top_p")
	assert.Contains(t, err.Error(), "generation.temperature")
}

func TestValidateTheme(t *testing.T) {
	cfg := Default()
	cfg.UI.Theme = "neon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestValidateURL(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "not a url"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.url")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FORGECHAT_URL", "http://10.0.0.5:8750")
	t.Setenv("FORGECHAT_MODEL", "llama3-8b")
	t.Setenv("FORGECHAT_STREAM_TIMEOUT_SECS", "60")
	t.Setenv("FORGECHAT_SEED", "1234")
	t.Setenv("FORGECHAT_AUTH", "true")
	t.Setenv("FORGECHAT_THEME", "light")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://10.0.0.5:8750", cfg.Server.URL)
	assert.Equal(t, "llama3-8b", cfg.Server.Model)
	assert.Equal(t, 60, cfg.Generation.StreamTimeoutSecs)
	assert.Equal(t, int64(1234), cfg.Generation.Seed)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestSamplingDerivation(t *testing.T) {
	cfg := Default()
	opts := cfg.Sampling()
	assert.Equal(t, 512, opts.MaxNewTokens)
	assert.Nil(t, opts.Seed)
	assert.NoError(t, opts.Validate())

	cfg.Generation.Seed = 7
	opts = cfg.Sampling()
	require.NotNil(t, opts.Seed)
	assert.Equal(t, int64(7), *opts.Seed)
}

func TestStreamTimeoutDerivation(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20*time.Second, cfg.StreamTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.Model = "phi-3-mini"
	cfg.Generation.StreamTimeoutSecs = 33
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "phi-3-mini", loaded.Server.Model)
	assert.Equal(t, 33, loaded.Generation.StreamTimeoutSecs)
}

func TestGlobalSetAndReset(t *testing.T) {
	defer ResetGlobalForTesting()

	cfg := Default()
	cfg.Server.Model = "test-model"
	SetGlobal(cfg)

	// The installed config survives the first Global access; it must not
	// be clobbered by a lazy load.
	assert.Same(t, cfg, Global())
	assert.Equal(t, "test-model", Global().Server.Model)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	defer ResetGlobalForTesting()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	updated := Default()
	updated.Server.Model = "updated-model"
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changed:
		assert.Equal(t, "updated-model", cfg.Server.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never observed the config change")
	}
}
