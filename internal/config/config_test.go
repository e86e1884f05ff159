package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
)

func TestDefaultWorkspaceDir(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvWorkspace, "")

		dir, err := DefaultWorkspaceDir()
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(dir, DefaultWorkspaceName), "should end with %s", DefaultWorkspaceName)
	})

	t.Run("override with AGENTCFG_HOME", func(t *testing.T) {
		t.Setenv(EnvWorkspace, "/tmp/test-agentcfg")

		dir, err := DefaultWorkspaceDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/test-agentcfg", dir)
	})
}

func TestPathFunctions(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	tests := []struct {
		name   string
		fn     func(string) string
		suffix string
	}{
		{"SettingsPath", SettingsPath, "settings.yaml"},
		{"LogPath", LogPath, "agentcfg.log"},
		{"LockPath", LockPath, ".lock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := tt.fn(ws)
			assert.Equal(t, filepath.Join(ws, tt.suffix), path)
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	assert.Equal(t, "none", s.LogLevel)
	assert.False(t, s.LoggingEnabled())
	assert.Equal(t, "~/.codex", s.Agents.Codex)
	assert.True(t, s.DeriveFragmentsEnabled())
	assert.Equal(t, 5, s.Lock.Attempts)
	assert.Equal(t, 200*time.Millisecond, s.Lock.Delay())
	assert.Zero(t, s.Retention.MaxCount)
	assert.Zero(t, s.Retention.MaxAge())
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Parallel()
		s, err := LoadSettings(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("partial file gets defaults applied", func(t *testing.T) {
		t.Parallel()
		ws := t.TempDir()
		content := "log_level: DEBUG\nagents:\n  claude: /opt/claude\nretention:\n  max_count: 10\n  max_age_days: 7\nrestore:\n  derive_fragments: false\n"
		require.NoError(t, os.WriteFile(SettingsPath(ws), []byte(content), 0o600))

		s, err := LoadSettings(ws)
		require.NoError(t, err)
		assert.True(t, s.LoggingEnabled())
		assert.Equal(t, "/opt/claude", s.Agents.Claude)
		assert.Equal(t, "~/.gemini", s.Agents.Gemini)
		assert.Equal(t, 10, s.Retention.MaxCount)
		assert.Equal(t, 7*24*time.Hour, s.Retention.MaxAge())
		assert.False(t, s.DeriveFragmentsEnabled())
		assert.Equal(t, 5, s.Lock.Attempts)
	})

	t.Run("malformed file is a serialization error", func(t *testing.T) {
		t.Parallel()
		ws := t.TempDir()
		require.NoError(t, os.WriteFile(SettingsPath(ws), []byte("agents: [unclosed"), 0o600))

		_, err := LoadSettings(ws)
		assert.True(t, errors.Is(err, common.ErrSerialization))
	})
}

func TestEnsureSettings(t *testing.T) {
	t.Parallel()

	ws := filepath.Join(t.TempDir(), "nested", "workspace")
	created, err := EnsureSettings(ws)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, os.WriteFile(SettingsPath(ws), []byte("log_level: info\n"), 0o600))
	created, err = EnsureSettings(ws)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(SettingsPath(ws))
	require.NoError(t, err)
	assert.Equal(t, "log_level: info\n", string(data), "existing settings must not be overwritten")
}

func TestAgentRoot(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.Agents.Gemini = "/srv/gemini"
	home := filepath.FromSlash("/home/dev")

	assert.Equal(t, filepath.Join(home, ".codex"), s.AgentRoot(mapping.AgentCodex, home))
	assert.Equal(t, "/srv/gemini", s.AgentRoot(mapping.AgentGemini, home))
	assert.Equal(t, home, ExpandHome("~", home))
	assert.Equal(t, "relative/dir", ExpandHome("relative/dir", home))
}
