package restore

import (
	"strings"

	"github.com/go-git/go-billy/v5"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
	"agentcfg/internal/reconcile"
	"agentcfg/internal/storage"
	"agentcfg/internal/workspace"
)

// Tree is the view of the source tree fragment derivation needs.
type Tree interface {
	Source() billy.Filesystem
	SourceFilter() (storage.FileFilter, error)
}

// Options tunes a restore.
type Options struct {
	// DeriveFragments rewrites the per-agent instruction fragments so the
	// next sync reproduces the restored instruction files.
	DeriveFragments bool
	Mapping         *mapping.Config
}

func (o Options) derive() bool { return o.DeriveFragments && o.Mapping != nil }

// deriveFragments returns source steps that keep instructions/<agent>.* in
// line with the restored instruction targets. It only applies when the
// instructions category is composed per agent in replace mode.
func deriveFragments(tree Tree, cfg *mapping.Config, changed []Step) ([]Step, error) {
	category := mapping.Instructions.Name
	cm, ok := cfg.Categories[category]
	if !ok || cm.Mode() != mapping.SyncModeReplace {
		return nil, nil
	}

	filter, err := tree.SourceFilter()
	if err != nil {
		return nil, err
	}
	names, err := storage.ListTopLevel(tree.Source(), category, filter)
	if err != nil {
		return nil, err
	}
	f, ok := reconcile.DetectFragments(category, cm, names)
	if !ok {
		return nil, nil
	}

	base := ""
	if f.Base != "" {
		if base, _, err = storage.ReadText(tree.Source(), f.FragmentPath(f.Base)); err != nil {
			return nil, err
		}
	}

	claimed := make(map[string]bool)
	for _, s := range changed {
		if s.Scope == workspace.ScopeSource {
			claimed[s.Path] = true
		}
	}

	var out []Step
	for _, s := range changed {
		a, ok := s.Scope.Agent()
		if !ok {
			continue
		}
		target, err := common.NormalizeRelative(cm.Target(a))
		if err != nil || s.Path != target {
			continue
		}

		name := f.Agent(a)
		if name == "" {
			name = string(a) + ".md"
		}
		path := f.FragmentPath(name)
		if claimed[path] {
			continue
		}

		desired, ok := fragmentFor(base, s)
		if !ok {
			log.WithFields(log.Fields{"agent": a, "fragment": path, "action": s.Action}).
				Warn("restore: a sync would not reproduce the restored instructions, leaving fragment unchanged")
			continue
		}

		current, exists, err := storage.ReadText(tree.Source(), path)
		if err != nil {
			return nil, err
		}

		step := Step{Scope: workspace.ScopeSource, Path: path, Fragment: true}
		switch {
		case desired == "" && exists:
			step.Action = ActionDelete
		case desired != "" && (!exists || current != desired):
			step.Action = ActionWrite
			step.Data = []byte(desired)
		default:
			continue
		}
		claimed[path] = true
		log.WithFields(log.Fields{"agent": a, "fragment": path, "action": step.Action}).Debug("restore: re-deriving fragment")
		out = append(out, step)
	}
	return out, nil
}

// fragmentFor returns the agent fragment that makes the next sync reproduce
// the restored target. ok is false when no fragment can: the restored text
// does not compose from base, or a deleted target would be recreated from a
// non-blank base anyway.
func fragmentFor(base string, s Step) (string, bool) {
	baseBlank := strings.TrimSpace(base) == ""
	if s.Action == ActionDelete {
		return "", baseBlank
	}

	restored := storage.DecodeText(s.Data)
	fragment := reconcile.DeriveFragment(base, restored)
	composed, ok := reconcile.ComposeText(base, fragment)
	if !ok {
		// No item is planned for the agent, so a blank target is left as is.
		return "", strings.TrimSpace(restored) == ""
	}
	return fragment, composed == restored
}
