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

// Package engine exposes the sync and backup operations over one workspace.
// Every operation re-reads the mapping and the trees it works on; nothing is
// cached between calls.
package engine

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"agentcfg/internal/backup"
	"agentcfg/internal/config"
	"agentcfg/internal/logging"
	"agentcfg/internal/mapping"
	"agentcfg/internal/reconcile"
	"agentcfg/internal/restore"
	"agentcfg/internal/workspace"
)

// Engine runs operations against a workspace.
type Engine struct {
	ws       *workspace.Workspace
	store    *backup.Store
	settings *config.Settings
	now      func() time.Time

	// serializes operations that write, for callers sharing one engine
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for preview stamps, backup ids and retention.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSettings sets retention and restore behaviour. The defaults are the
// embedded settings.
func WithSettings(s *config.Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// New returns an engine over ws.
func New(ws *workspace.Workspace, opts ...Option) *Engine {
	e := &Engine{ws: ws, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.settings == nil {
		e.settings = config.DefaultSettings()
	}
	e.store = backup.NewStore(ws, backup.WithClock(func() time.Time { return e.now() }))
	return e
}

// Open resolves the agent roots from settings and opens the workspace at dir
// on the OS filesystem.
func Open(dir, home string, settings *config.Settings, opts ...Option) (*Engine, error) {
	roots := make(map[mapping.Agent]string, len(mapping.Agents))
	for _, a := range mapping.Agents {
		roots[a] = settings.AgentRoot(a, home)
	}
	ws, err := workspace.Open(dir, roots)
	if err != nil {
		return nil, err
	}
	return New(ws, append([]Option{WithSettings(settings)}, opts...)...), nil
}

// Workspace returns the underlying workspace
func (e *Engine) Workspace() *workspace.Workspace { return e.ws }

// Settings returns the settings in effect
func (e *Engine) Settings() *config.Settings { return e.settings }

// prepare ensures the layout and loads the mapping for one operation.
func (e *Engine) prepare() (*mapping.Config, error) {
	if err := e.ws.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	return mapping.Load(e.ws.Meta())
}

func (e *Engine) retention() backup.Policy {
	return backup.Policy{
		MaxCount: e.settings.Retention.MaxCount,
		MaxAge:   e.settings.Retention.MaxAge(),
	}
}

// Init creates the workspace layout, mapping.json and, when the source tree
// is empty, seeds instruction fragments from the agents' existing files.
func (e *Engine) Init() (*workspace.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := logging.Operation("init")
	cfg, err := e.prepare()
	if err != nil {
		return nil, err
	}
	seeded, err := e.ws.Bootstrap(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap source: %w", err)
	}

	info := e.ws.Describe(cfg)
	info.Bootstrapped = seeded
	logger.WithField("bootstrapped", len(seeded)).Info("workspace ready")
	return &info, nil
}

// PreviewSync plans a sync without writing anything.
func (e *Engine) PreviewSync() (*reconcile.Preview, error) {
	logger := logging.Operation("preview_sync")
	cfg, err := e.prepare()
	if err != nil {
		return nil, err
	}
	preview, err := reconcile.PreviewAt(e.ws, cfg, e.now())
	if err != nil {
		logger.WithError(err).Warn("planning failed")
		return nil, err
	}
	logger.WithField("items", len(preview.Items)).Debug("planned")
	return preview, nil
}

// ApplySync writes the selected items (all changed items when selected is
// empty), then applies the retention policy.
func (e *Engine) ApplySync(selected []string) (*reconcile.ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := logging.Operation("apply_sync")
	cfg, err := e.prepare()
	if err != nil {
		return nil, err
	}
	result, err := reconcile.Apply(e.ws, e.store, cfg, selected)
	if err != nil {
		logger.WithError(err).Warn("apply failed")
		return nil, err
	}
	if result.BackupID != "" {
		e.prune(result.BackupID)
	}
	logger.WithFields(log.Fields{"backup_id": result.BackupID, "applied": result.AppliedCount}).Info("sync applied")
	return result, nil
}

// ListBackups returns every backup, newest first.
func (e *Engine) ListBackups() ([]backup.Info, error) {
	return e.store.List()
}

// GetBackupDetail returns the captured and current content of every entry.
func (e *Engine) GetBackupDetail(id string) (*backup.Detail, error) {
	return e.store.Detail(id)
}

// DeleteBackup removes one backup.
func (e *Engine) DeleteBackup(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logging.Operation("delete_backup").WithField("backup_id", id).Info("deleting backup")
	return e.store.Delete(id)
}

// RestoreBackup puts the targets of backup id back into their captured
// state. The changes are themselves backed up first.
func (e *Engine) RestoreBackup(id string) (*restore.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := logging.Operation("restore_backup").WithField("backup_id", id)
	cfg, err := e.prepare()
	if err != nil {
		return nil, err
	}
	result, err := restore.Restore(e.ws, e.store, id, restore.Options{
		DeriveFragments: e.settings.DeriveFragmentsEnabled(),
		Mapping:         cfg,
	})
	if err != nil {
		logger.WithError(err).Warn("restore failed")
		return nil, err
	}
	if result.PreRestoreBackupID != "" {
		e.prune(result.PreRestoreBackupID)
	}
	return result, nil
}

// PruneBackups applies the retention policy now and returns the deleted ids.
func (e *Engine) PruneBackups() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Prune(e.retention(), "")
}

// prune applies retention after a backup-creating operation. Failures are
// logged, not returned: the operation itself already succeeded.
func (e *Engine) prune(keep string) {
	if _, err := e.store.Prune(e.retention(), keep); err != nil {
		logging.Operation("prune").WithError(err).WithField("keep", keep).Warn("retention failed")
	}
}
