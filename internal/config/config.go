// Copyright 2025 AgentCfg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agentcfg/internal/artifacts"
	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
)

const (
	// EnvWorkspace overrides the default workspace directory.
	EnvWorkspace = "AGENTCFG_HOME"
	// DefaultWorkspaceName is the workspace folder under the user's home.
	DefaultWorkspaceName = ".ai-config-manager"

	SettingsFileName = "settings.yaml"
	LogFileName      = "agentcfg.log"
	LockFileName     = ".lock"
)

// DefaultWorkspaceDir returns $AGENTCFG_HOME if set, otherwise
// ~/.ai-config-manager. Only the command layer should call this; everything
// below it takes the workspace directory as a parameter.
func DefaultWorkspaceDir() (string, error) {
	if dir := os.Getenv(EnvWorkspace); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultWorkspaceName), nil
}

// SettingsPath returns the settings file path for a workspace
func SettingsPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, SettingsFileName)
}

// LogPath returns the log file path for a workspace
func LogPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, LogFileName)
}

// LockPath returns the advisory lock file path for a workspace
func LockPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, LockFileName)
}

// AgentRoots holds the root directory of each agent tree.
type AgentRoots struct {
	Codex  string `yaml:"codex"`
	Gemini string `yaml:"gemini"`
	Claude string `yaml:"claude"`
}

// RetentionSettings bounds how many backups are kept. Zero disables a limit.
type RetentionSettings struct {
	MaxCount   int `yaml:"max_count"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// MaxAge returns the age limit as a duration, or 0 when unbounded.
func (r RetentionSettings) MaxAge() time.Duration {
	if r.MaxAgeDays <= 0 {
		return 0
	}
	return time.Duration(r.MaxAgeDays) * 24 * time.Hour
}

type RestoreSettings struct {
	DeriveFragments *bool `yaml:"derive_fragments"` // default: true (pointer to detect missing)
}

type LockSettings struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// Delay returns the wait between lock attempts.
func (l LockSettings) Delay() time.Duration {
	return time.Duration(l.DelayMS) * time.Millisecond
}

// Settings is the content of <workspace>/settings.yaml.
type Settings struct {
	LogLevel  string            `yaml:"log_level"` // none, warn, info, debug, trace (case insensitive)
	Agents    AgentRoots        `yaml:"agents"`
	Retention RetentionSettings `yaml:"retention"`
	Restore   RestoreSettings   `yaml:"restore"`
	Lock      LockSettings      `yaml:"lock"`
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.Agents.Codex == "" {
		s.Agents.Codex = "~/.codex"
	}
	if s.Agents.Gemini == "" {
		s.Agents.Gemini = "~/.gemini"
	}
	if s.Agents.Claude == "" {
		s.Agents.Claude = "~/.claude"
	}
	if s.Restore.DeriveFragments == nil {
		t := true
		s.Restore.DeriveFragments = &t
	}
	if s.Lock.Attempts <= 0 {
		s.Lock.Attempts = 5
	}
	if s.Lock.DelayMS <= 0 {
		s.Lock.DelayMS = 200
	}
	if s.Retention.MaxCount < 0 {
		s.Retention.MaxCount = 0
	}
}

// DeriveFragmentsEnabled returns whether restore rewrites instruction fragments (defaults to true).
func (s *Settings) DeriveFragmentsEnabled() bool {
	if s.Restore.DeriveFragments == nil {
		return true
	}
	return *s.Restore.DeriveFragments
}

// LoggingEnabled returns whether logging is enabled (any level other than "none", "off" or empty).
func (s *Settings) LoggingEnabled() bool {
	level := strings.ToLower(strings.TrimSpace(s.LogLevel))
	return level != "" && level != "none" && level != "off"
}

// AgentRoot returns the absolute root directory for agent a, expanding a
// leading "~" against home.
func (s *Settings) AgentRoot(a mapping.Agent, home string) string {
	var root string
	switch a {
	case mapping.AgentCodex:
		root = s.Agents.Codex
	case mapping.AgentGemini:
		root = s.Agents.Gemini
	case mapping.AgentClaude:
		root = s.Agents.Claude
	}
	return ExpandHome(root, home)
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		return filepath.Join(home, p[2:])
	}
	return p
}

// DefaultSettings parses the embedded settings template.
func DefaultSettings() *Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	settings.ApplyDefaults()
	return &settings
}

// LoadSettings reads <workspace>/settings.yaml. A missing file yields the
// embedded defaults.
func LoadSettings(workspaceDir string) (*Settings, error) {
	data, err := os.ReadFile(SettingsPath(workspaceDir))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, common.NewIOError("read", SettingsPath(workspaceDir), err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", common.ErrSerialization, SettingsFileName, err)
	}
	settings.ApplyDefaults()
	return &settings, nil
}

// EnsureSettings writes the settings template if the workspace has none.
// It reports whether a file was created.
func EnsureSettings(workspaceDir string) (bool, error) {
	path := SettingsPath(workspaceDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, common.NewIOError("stat", path, err)
	}
	if err := os.MkdirAll(workspaceDir, 0o700); err != nil {
		return false, common.NewIOError("create directory", workspaceDir, err)
	}
	if err := os.WriteFile(path, artifacts.GlobalSettings, 0o600); err != nil {
		return false, common.NewIOError("write", path, err)
	}
	return true, nil
}
