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

	"github.com/spf13/cobra"

	"agentcfg/internal/config"
	"agentcfg/internal/engine"
)

var initJSON bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the agentcfg workspace",
	Long: `Create the workspace layout: source/<category> folders, backups/,
mapping.json and settings.yaml. Existing files are left untouched.

When the source tree is empty, the current instructions file of each agent
(CLAUDE.md, AGENTS.md, GEMINI.md) is copied to source/instructions/<agent>.md.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initJSON, "json", false, "Print the workspace description as JSON")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := config.EnsureSettings(app.workspaceDir)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return withLock(cmd, func(e *engine.Engine) error {
		info, err := e.Init()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if initJSON {
			return printJSON(out, info)
		}

		fmt.Fprintf(out, "Workspace ready in %s\n", info.Root)
		if created {
			fmt.Fprintf(out, "  created %s\n", config.SettingsFileName)
		}
		for _, s := range info.Scopes {
			fmt.Fprintf(out, "  %-7s %s\n", s.Name, s.Path)
		}
		for _, p := range info.Bootstrapped {
			fmt.Fprintf(out, "  seeded source/%s\n", p)
		}
		return nil
	})
}
