package workspace

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"agentcfg/internal/artifacts"
	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
	"agentcfg/internal/storage"
)

// Ensure creates the source category folders, the backups directory and the
// default .syncignore. It does not touch mapping.json; mapping.Load creates it.
func (w *Workspace) Ensure() error {
	for _, c := range mapping.BuiltinCategories {
		if err := w.source.MkdirAll(c.Name, 0o755); err != nil {
			return common.NewIOError("create directory", w.AbsolutePath(ScopeSource, c.Name), err)
		}
	}
	if err := w.meta.MkdirAll(BackupsDir, 0o755); err != nil {
		return common.NewIOError("create directory", w.BackupsRoot(), err)
	}

	exists, err := storage.Exists(w.source, storage.IgnoreFileName)
	if err != nil {
		return err
	}
	if !exists {
		if err := storage.WriteAtomic(w.source, storage.IgnoreFileName, artifacts.SyncIgnore); err != nil {
			return err
		}
	}
	return nil
}

// SourceFilter returns the .syncignore filter, or nil when there is none.
func (w *Workspace) SourceFilter() (storage.FileFilter, error) {
	return storage.LoadIgnoreFilter(w.source, storage.IgnoreFileName)
}

// SourceEmpty reports whether the source tree holds no syncable files.
func (w *Workspace) SourceEmpty() (bool, error) {
	files, err := storage.ListFiles(w.source, "", func(rel string, isDir bool) bool {
		return isDir || rel != storage.IgnoreFileName
	})
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// Bootstrap seeds source/instructions/<agent>.md from each agent's existing
// instructions file when the source tree is empty. It returns the source
// paths it wrote.
func (w *Workspace) Bootstrap(cfg *mapping.Config) ([]string, error) {
	empty, err := w.SourceEmpty()
	if err != nil || !empty {
		return nil, err
	}
	instructions, ok := cfg.Categories[mapping.Instructions.Name]
	if !ok {
		return nil, nil
	}

	var written []string
	for _, a := range []mapping.Agent{mapping.AgentClaude, mapping.AgentCodex, mapping.AgentGemini} {
		target := instructions.Target(a)
		if !common.LooksLikeFile(target) {
			continue
		}
		rel, err := common.NormalizeRelative(target)
		if err != nil {
			return written, err
		}
		content, exists, err := storage.ReadText(w.agents[a], rel)
		if err != nil {
			return written, err
		}
		if !exists || strings.TrimSpace(content) == "" {
			continue
		}

		dest := common.JoinPath(mapping.Instructions.Name, string(a)+".md")
		if err := storage.WriteAtomic(w.source, dest, []byte(content)); err != nil {
			return written, err
		}
		log.WithFields(log.Fields{"agent": a, "from": rel, "to": dest}).Info("workspace: bootstrapped instructions")
		written = append(written, dest)
	}
	return written, nil
}

// ScopeInfo describes one scope root.
type ScopeInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Info summarizes a workspace for display.
type Info struct {
	Root         string      `json:"app_root"`
	SourceRoot   string      `json:"source_root"`
	MappingPath  string      `json:"mapping_path"`
	Categories   []string    `json:"categories"`
	Scopes       []ScopeInfo `json:"scopes"`
	Bootstrapped []string    `json:"bootstrapped,omitempty"`
}

// Describe returns the display paths of the workspace.
func (w *Workspace) Describe(cfg *mapping.Config) Info {
	info := Info{
		Root:        w.root,
		SourceRoot:  w.ScopeRoot(ScopeSource),
		MappingPath: w.join(w.root, mapping.FileName),
		Categories:  cfg.CategoryNames(),
	}
	for _, s := range Scopes() {
		info.Scopes = append(info.Scopes, ScopeInfo{Name: string(s), Path: w.ScopeRoot(s)})
	}
	return info
}
