package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agentcfg/internal/engine"
	"agentcfg/internal/reconcile"
)

var (
	previewJSON bool
	previewAll  bool
	previewDiff bool

	applyJSON bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a sync would write",
	Long: `Plan a sync of the source tree into every agent tree without writing anything.

Each line shows the status (create, update, append, unchanged), the item id
and the source it comes from. Pass item ids to 'agentcfg apply' to apply only
some of them.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

var applyCmd = &cobra.Command{
	Use:   "apply [item-id...]",
	Short: "Sync the source tree into the agent trees",
	Long: `Apply every changed item of a fresh plan, or only the given item ids.

Every target is backed up before it is written. Undo with
'agentcfg backups restore <backup-id>'.`,
	RunE: runApply,
}

func init() {
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "Print the preview as JSON")
	previewCmd.Flags().BoolVarP(&previewAll, "all", "a", false, "Include unchanged items")
	previewCmd.Flags().BoolVarP(&previewDiff, "diff", "d", false, "Show before and after content of changed items")
	applyCmd.Flags().BoolVar(&applyJSON, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(applyCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	preview, err := e.PreviewSync()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if previewJSON {
		return printJSON(out, preview)
	}
	printPreview(out, preview.Items, previewAll, previewDiff)
	return nil
}

func printPreview(out io.Writer, items []reconcile.Item, all, diff bool) {
	changed := 0
	for _, it := range items {
		if it.Changed() {
			changed++
		}
		if !all && !it.Changed() {
			continue
		}
		fmt.Fprintf(out, "%s %s %s\n", renderStatus(it.Status), it.ID, mutedStyle.Render("<- "+it.SourceFile))
		if diff && it.Changed() {
			printContent(out, "before", it.Before)
			printContent(out, "after", it.After)
		}
	}
	if changed == 0 {
		fmt.Fprintln(out, "Everything is in sync")
		return
	}
	fmt.Fprintf(out, "\n%d of %d item(s) would change\n", changed, len(items))
}

func printContent(out io.Writer, label, content string) {
	fmt.Fprintf(out, "    %s\n", headingStyle.Render(label+":"))
	if content == "" {
		fmt.Fprintf(out, "      %s\n", mutedStyle.Render("(empty)"))
		return
	}
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(out, "      %s\n", line)
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		result, err := e.ApplySync(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if applyJSON {
			return printJSON(out, result)
		}
		if result.BackupID == "" {
			fmt.Fprintln(out, "Nothing to apply")
			return nil
		}
		fmt.Fprintf(out, "Applied %d file(s), backup %s\n", result.AppliedCount, idStyle.Render(result.BackupID))
		for _, f := range result.Files {
			fmt.Fprintf(out, "  W %s\n", f)
		}
		return nil
	})
}
