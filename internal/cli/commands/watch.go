package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agentcfg/internal/engine"
	"agentcfg/internal/watch"
	"agentcfg/internal/workspace"
)

var (
	watchApply    bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Preview (or apply) a sync whenever the source tree changes",
	Long: `Watch the source tree and print a preview after every burst of changes.

With --apply, each burst is synced into the agent trees. Every apply takes a
backup first, exactly like 'agentcfg apply'. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchApply, "apply", false, "Apply changes instead of only previewing them")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a burst of changes is handled")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	// Creates the layout before the watcher needs the source root.
	if _, err := e.PreviewSync(); err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := e.Workspace().ScopeRoot(workspace.ScopeSource)
	w, err := watch.New(root, watchDebounce)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", root)
	watchLoop(ctx, w.Changes(), w.Errors(), func(paths []string) {
		fmt.Fprintf(out, "\n%s %d file(s) changed\n", mutedStyle.Render(time.Now().Format("15:04:05")), len(paths))
		if err := handleChanges(cmd, e); err != nil {
			// A bad edit in the source tree must not stop the watch.
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
	fmt.Fprintln(out, "Stopped")
	return nil
}

// watchLoop hands every batch to onBatch until ctx is done or the watcher
// closes its channels.
func watchLoop(ctx context.Context, changes <-chan []string, errs <-chan error, onBatch func([]string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.WithError(err).Warn("watch: watcher error")
		case paths, ok := <-changes:
			if !ok {
				return
			}
			onBatch(paths)
		}
	}
}

func handleChanges(cmd *cobra.Command, e *engine.Engine) error {
	if !watchApply {
		preview, err := e.PreviewSync()
		if err != nil {
			return err
		}
		printPreview(cmd.OutOrStdout(), preview.Items, false, false)
		return nil
	}
	return runApply(cmd, nil)
}
