package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"agentcfg/internal/engine"
	"agentcfg/internal/mapping"
)

var mappingJSON bool

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Show or change where each category is written",
	Long: `Each category maps to a target per agent. A target with an extension is a
literal file; anything else is a directory the category's files are copied
into. An empty target mirrors the source paths at the agent root.`,
	Args: cobra.NoArgs,
	RunE: runMappingShow,
}

var mappingSetCmd = &cobra.Command{
	Use:   "set <category> <agent> <target>",
	Short: "Set the target of one agent for a category",
	Example: `  agentcfg mapping set commands codex prompts
  agentcfg mapping set notes claude ""`,
	Args: cobra.ExactArgs(3),
	RunE: runMappingSet,
}

var mappingModeCmd = &cobra.Command{
	Use:   "mode <category> <replace|append>",
	Short: "Set how a category is written to its targets",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingMode,
}

var mappingResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the built-in mapping",
	Args:  cobra.NoArgs,
	RunE:  runMappingReset,
}

func init() {
	mappingCmd.PersistentFlags().BoolVar(&mappingJSON, "json", false, "Print the mapping as JSON")
	mappingCmd.AddCommand(mappingSetCmd, mappingModeCmd, mappingResetCmd)
	rootCmd.AddCommand(mappingCmd)
}

func runMappingShow(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		cfg, err := e.Mapping()
		if err != nil {
			return err
		}
		return printMapping(cmd.OutOrStdout(), cfg)
	})
}

func runMappingSet(cmd *cobra.Command, args []string) error {
	a, err := mapping.ParseAgent(args[1])
	if err != nil {
		return err
	}
	return withLock(cmd, func(e *engine.Engine) error {
		cfg, err := e.SetTarget(args[0], a, args[2])
		if err != nil {
			return err
		}
		return printMapping(cmd.OutOrStdout(), cfg)
	})
}

func runMappingMode(cmd *cobra.Command, args []string) error {
	mode, err := mapping.ParseSyncMode(args[1])
	if err != nil {
		return err
	}
	return withLock(cmd, func(e *engine.Engine) error {
		cfg, err := e.SetSyncMode(args[0], mode)
		if err != nil {
			return err
		}
		return printMapping(cmd.OutOrStdout(), cfg)
	})
}

func runMappingReset(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		cfg, err := e.ResetMapping()
		if err != nil {
			return err
		}
		return printMapping(cmd.OutOrStdout(), cfg)
	})
}

func printMapping(out io.Writer, cfg *mapping.Config) error {
	if mappingJSON {
		return printJSON(out, cfg)
	}
	fmt.Fprintf(out, "%-14s %-8s %-26s %-30s %s\n", "CATEGORY", "MODE", "CODEX", "GEMINI", "CLAUDE")
	for _, name := range cfg.CategoryNames() {
		m := cfg.Categories[name]
		fmt.Fprintf(out, "%-14s %-8s %-26s %-30s %s\n", name, m.Mode(), display(m.Codex), display(m.Gemini), display(m.Claude))
	}
	return nil
}

func display(target string) string {
	if target == "" {
		return "(mirror)"
	}
	return target
}
