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

// Package workspace resolves the directories the engine works on. Every
// scope is exposed as a billy.Filesystem rooted at that scope, so the rest of
// the engine only ever handles paths relative to a scope root.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"agentcfg/internal/mapping"
)

const (
	SourceDir  = "source"
	BackupsDir = "backups"
)

// Scope names a root a backup entry or file operation refers to: the source
// tree or one of the agent trees.
type Scope string

const ScopeSource Scope = "source"

// AgentScope returns the scope for an agent tree.
func AgentScope(a mapping.Agent) Scope { return Scope(a) }

// Scopes lists every scope in display order.
func Scopes() []Scope {
	out := []Scope{ScopeSource}
	for _, a := range mapping.Agents {
		out = append(out, AgentScope(a))
	}
	return out
}

// ParseScope accepts "source" or an agent name.
func ParseScope(s string) (Scope, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == string(ScopeSource) {
		return ScopeSource, nil
	}
	a, err := mapping.ParseAgent(s)
	if err != nil {
		return "", fmt.Errorf("unknown scope %q", s)
	}
	return AgentScope(a), nil
}

// Agent returns the agent for an agent scope.
func (s Scope) Agent() (mapping.Agent, bool) {
	a := mapping.Agent(s)
	return a, a.Valid()
}

// Workspace bundles the filesystems of one workspace and its agent trees.
type Workspace struct {
	root    string
	meta    billy.Filesystem
	source  billy.Filesystem
	backups billy.Filesystem

	agents     map[mapping.Agent]billy.Filesystem
	agentRoots map[mapping.Agent]string
}

// Open returns a workspace backed by the OS filesystem. Directories are not
// created until they are written to; see Ensure.
func Open(root string, agentRoots map[mapping.Agent]string) (*Workspace, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	meta := osfs.New(root)

	ws := &Workspace{
		root:       root,
		meta:       meta,
		agents:     make(map[mapping.Agent]billy.Filesystem, len(mapping.Agents)),
		agentRoots: make(map[mapping.Agent]string, len(mapping.Agents)),
	}
	if ws.source, err = meta.Chroot(SourceDir); err != nil {
		return nil, fmt.Errorf("failed to open source scope: %w", err)
	}
	if ws.backups, err = meta.Chroot(BackupsDir); err != nil {
		return nil, fmt.Errorf("failed to open backups directory: %w", err)
	}

	for _, a := range mapping.Agents {
		dir, ok := agentRoots[a]
		if !ok || dir == "" {
			return nil, fmt.Errorf("no root directory configured for agent %s", a)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s root: %w", a, err)
		}
		ws.agentRoots[a] = abs
		ws.agents[a] = osfs.New(abs)
	}
	return ws, nil
}

// NewMemory returns a workspace where every scope lives in memory. Display
// paths are rooted at /mem.
func NewMemory() *Workspace {
	meta := memfs.New()
	source, _ := meta.Chroot(SourceDir)
	backups, _ := meta.Chroot(BackupsDir)

	ws := &Workspace{
		root:       "/mem/workspace",
		meta:       meta,
		source:     source,
		backups:    backups,
		agents:     make(map[mapping.Agent]billy.Filesystem, len(mapping.Agents)),
		agentRoots: make(map[mapping.Agent]string, len(mapping.Agents)),
	}
	for _, a := range mapping.Agents {
		ws.agents[a] = memfs.New()
		ws.agentRoots[a] = "/mem/" + string(a)
	}
	return ws
}

// Root returns the workspace directory
func (w *Workspace) Root() string { return w.root }

// Meta is the workspace root, holding mapping.json and settings.yaml.
func (w *Workspace) Meta() billy.Filesystem { return w.meta }

// Source is the canonical source tree.
func (w *Workspace) Source() billy.Filesystem { return w.source }

// Backups holds one directory per backup.
func (w *Workspace) Backups() billy.Filesystem { return w.backups }

// Agent returns the filesystem of an agent tree.
func (w *Workspace) Agent(a mapping.Agent) billy.Filesystem { return w.agents[a] }

// Scope returns the filesystem for scope s.
func (w *Workspace) Scope(s Scope) (billy.Filesystem, error) {
	if s == ScopeSource {
		return w.source, nil
	}
	if a, ok := s.Agent(); ok {
		return w.agents[a], nil
	}
	return nil, fmt.Errorf("unknown scope %q", s)
}

// ScopeRoot returns the display directory of scope s.
func (w *Workspace) ScopeRoot(s Scope) string {
	if s == ScopeSource {
		return w.join(w.root, SourceDir)
	}
	if a, ok := s.Agent(); ok {
		return w.agentRoots[a]
	}
	return ""
}

// AbsolutePath returns the display path of rel inside scope s. It is
// informational only; all I/O goes through the scope filesystem.
func (w *Workspace) AbsolutePath(s Scope, rel string) string {
	return w.join(w.ScopeRoot(s), rel)
}

// BackupsRoot returns the display directory of the backups tree
func (w *Workspace) BackupsRoot() string { return w.join(w.root, BackupsDir) }

func (w *Workspace) join(base, rel string) string {
	if strings.HasPrefix(base, "/mem/") {
		return base + "/" + rel
	}
	return filepath.Join(base, filepath.FromSlash(rel))
}
