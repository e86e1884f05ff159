package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"agentcfg/internal/backup"
	"agentcfg/internal/engine"
)

var (
	backupsJSON bool
	showJSON    bool
	restoreJSON bool
)

var backupsCmd = &cobra.Command{
	Use:     "backups",
	Aliases: []string{"backup"},
	Short:   "List, inspect, restore and delete backups",
}

var backupsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List backups, newest first",
	Args:    cobra.NoArgs,
	RunE:    runBackupsList,
}

var backupsShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show the captured and current content of a backup's targets",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupsShow,
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Put the targets of a backup back into their captured state",
	Long: `Restore every target recorded in a backup. Targets that did not exist
when the backup was taken are deleted.

The targets are backed up again before they are changed, so a restore can be
undone by restoring the pre_restore backup it creates.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupsRestore,
}

var backupsDeleteCmd = &cobra.Command{
	Use:     "delete <backup-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a backup",
	Args:    cobra.ExactArgs(1),
	RunE:    runBackupsDelete,
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete backups outside the retention policy in settings.yaml",
	Args:  cobra.NoArgs,
	RunE:  runBackupsPrune,
}

func init() {
	backupsListCmd.Flags().BoolVar(&backupsJSON, "json", false, "Print the list as JSON")
	backupsShowCmd.Flags().BoolVar(&showJSON, "json", false, "Print the detail as JSON")
	backupsRestoreCmd.Flags().BoolVar(&restoreJSON, "json", false, "Print the result as JSON")

	backupsCmd.AddCommand(backupsListCmd, backupsShowCmd, backupsRestoreCmd, backupsDeleteCmd, backupsPruneCmd)
	rootCmd.AddCommand(backupsCmd)
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	infos, err := e.ListBackups()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if backupsJSON {
		return printJSON(out, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No backups")
		return nil
	}
	printBackupList(out, infos)
	return nil
}

// printBackupList prints one line per backup: id, date, entry count, trigger.
func printBackupList(out io.Writer, infos []backup.Info) {
	for _, info := range infos {
		created := time.UnixMilli(int64(info.CreatedAt)).Format("2006-01-02 15:04:05")
		fmt.Fprintf(out, "%s  %s  %3d file(s)  %s\n", idStyle.Render(info.BackupID), created, info.EntryCount, mutedStyle.Render(info.Trigger))
	}
}

func runBackupsShow(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	detail, err := e.GetBackupDetail(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		return printJSON(out, detail)
	}

	created := time.UnixMilli(int64(detail.CreatedAt)).Format("Mon Jan 2 15:04:05 2006")
	fmt.Fprintf(out, "backup %s\n", idStyle.Render(detail.BackupID))
	fmt.Fprintf(out, "Date:    %s\n", created)
	fmt.Fprintf(out, "Trigger: %s\n\n", detail.Trigger)
	for _, entry := range detail.Entries {
		fmt.Fprintf(out, "%s %s\n", headingStyle.Render(entry.Agent+":"+entry.TargetRelativePath), mutedStyle.Render(entry.TargetAbsolutePath))
		printOptional(out, "backup", entry.BackupContent)
		printOptional(out, "current", entry.CurrentContent)
		fmt.Fprintln(out)
	}
	return nil
}

func printOptional(out io.Writer, label string, content *string) {
	if content == nil {
		fmt.Fprintf(out, "    %s %s\n", headingStyle.Render(label+":"), mutedStyle.Render("(absent)"))
		return
	}
	printContent(out, label, *content)
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		result, err := e.RestoreBackup(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if restoreJSON {
			return printJSON(out, result)
		}
		if result.PreRestoreBackupID == "" {
			fmt.Fprintf(out, "Targets already match backup %s\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "Restored %d file(s) from backup %s\n", result.RestoredCount, idStyle.Render(args[0]))
		if result.FragmentsUpdated > 0 {
			fmt.Fprintf(out, "  updated %d instruction fragment(s) in source\n", result.FragmentsUpdated)
		}
		fmt.Fprintf(out, "  undo with: agentcfg backups restore %s\n", result.PreRestoreBackupID)
		return nil
	})
}

func runBackupsDelete(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		if err := e.DeleteBackup(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted backup %s\n", args[0])
		return nil
	})
}

func runBackupsPrune(cmd *cobra.Command, args []string) error {
	return withLock(cmd, func(e *engine.Engine) error {
		deleted, err := e.PruneBackups()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(deleted) == 0 {
			fmt.Fprintln(out, "No backups pruned")
			return nil
		}
		for _, id := range deleted {
			fmt.Fprintf(out, "  D %s\n", id)
		}
		fmt.Fprintf(out, "Pruned %d backup(s)\n", len(deleted))
		return nil
	})
}
