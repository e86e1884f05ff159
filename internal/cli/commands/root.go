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

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agentcfg/internal/config"
	"agentcfg/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// Persistent flags
var (
	workspaceFlag string
	logLevelFlag  string
	logStderrFlag bool
)

// appContext is resolved once per invocation by PersistentPreRunE.
type appContext struct {
	workspaceDir string
	home         string
	settings     *config.Settings
	logCloser    io.Closer
}

var app *appContext

var rootCmd = &cobra.Command{
	Use:   "agentcfg",
	Short: "Keep AI agent configuration in sync from one source tree",
	Long: `Keep the instructions, skills, plugins, commands and MCP settings of
Codex, Gemini and Claude in sync from a single source tree.

Every write is preceded by a backup, so any sync or restore can be undone.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return setupApp()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil && app.logCloser != nil {
			return app.logCloser.Close()
		}
		return nil
	},
}

func setupApp() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory: %w", err)
	}

	dir := workspaceFlag
	if dir == "" {
		if dir, err = config.DefaultWorkspaceDir(); err != nil {
			return err
		}
	} else if dir, err = filepath.Abs(config.ExpandHome(dir, home)); err != nil {
		return fmt.Errorf("failed to resolve workspace path: %w", err)
	}

	settings, err := config.LoadSettings(dir)
	if err != nil {
		return err
	}

	level := settings.LogLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	closer, err := logging.Setup(logging.Options{
		Level:  level,
		Path:   config.LogPath(dir),
		Stderr: logStderrFlag,
	})
	if err != nil {
		return err
	}

	app = &appContext{workspaceDir: dir, home: home, settings: settings, logCloser: closer}
	return nil
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("agentcfg version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace directory (default $"+config.EnvWorkspace+" or ~/"+config.DefaultWorkspaceName+")")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: none, warn, info, debug, trace (overrides settings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&logStderrFlag, "log-stderr", false, "Write logs to stderr instead of the workspace log file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
