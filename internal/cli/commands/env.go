package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"agentcfg/internal/config"
	"agentcfg/internal/engine"
	"agentcfg/internal/workspace"
)

func openEngine() (*engine.Engine, error) {
	if app == nil {
		return nil, fmt.Errorf("workspace not initialized")
	}
	return engine.Open(app.workspaceDir, app.home, app.settings)
}

// withLock runs fn while holding the workspace lock, so two agentcfg
// processes never write the same workspace at once.
func withLock(cmd *cobra.Command, fn func(e *engine.Engine) error) error {
	e, err := openEngine()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	lock, err := workspace.AcquireLock(ctx, config.LockPath(app.workspaceDir), app.settings.Lock.Attempts, app.settings.Lock.Delay())
	if err != nil {
		return err
	}
	defer lock.Release()

	return fn(e)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
