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

// Package backup persists the pre-write state of every target an operation
// touches, so the operation can be undone byte for byte.
//
// On disk a backup is a directory named by its id under the backups root:
//
//	<backup_id>/manifest.json
//	<backup_id>/<scope>/<relative-target-path>
//
// The manifest is written after every snapshot copy and is the commit marker:
// directories without a readable manifest are not backups.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"agentcfg/internal/common"
	"agentcfg/internal/workspace"
)

const (
	ManifestFileName = "manifest.json"

	TriggerSync = "sync"
	// TriggerPreRestorePrefix is followed by the id of the restored backup.
	TriggerPreRestorePrefix = "pre_restore:"
)

// PreRestoreTrigger returns the trigger of a backup taken before restoring id.
func PreRestoreTrigger(id string) string { return TriggerPreRestorePrefix + id }

// Entry records one captured target.
type Entry struct {
	Agent              string `json:"agent"` // scope name: source, codex, gemini or claude
	TargetRelativePath string `json:"target_relative_path"`
	TargetAbsolutePath string `json:"target_absolute_path"`
	ExistedBefore      bool   `json:"existed_before"`
}

// Scope returns the scope the entry refers to.
func (e Entry) Scope() (workspace.Scope, error) {
	return workspace.ParseScope(e.Agent)
}

// Manifest describes one backup. It is never modified after it is written.
type Manifest struct {
	BackupID  string  `json:"backup_id"`
	CreatedAt uint64  `json:"created_at"` // unix milliseconds
	Trigger   string  `json:"trigger"`
	Entries   []Entry `json:"entries"`
}

// Created returns CreatedAt as a time.
func (m Manifest) Created() time.Time {
	return time.UnixMilli(int64(m.CreatedAt))
}

// Info is the summary shown in backup listings.
type Info struct {
	BackupID   string `json:"backup_id"`
	CreatedAt  uint64 `json:"created_at"`
	Trigger    string `json:"trigger"`
	EntryCount int    `json:"entry_count"`
}

// Info summarizes the manifest.
func (m Manifest) Info() Info {
	return Info{BackupID: m.BackupID, CreatedAt: m.CreatedAt, Trigger: m.Trigger, EntryCount: len(m.Entries)}
}

func encodeManifest(m Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode manifest: %v", common.ErrSerialization, err)
	}
	return data, nil
}

func decodeManifest(id string, data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: backup %s: invalid manifest: %v", common.ErrSerialization, id, err)
	}
	if m.BackupID == "" {
		return Manifest{}, fmt.Errorf("%w: backup %s: manifest has no backup_id", common.ErrSerialization, id)
	}
	if m.Entries == nil {
		m.Entries = []Entry{}
	}
	return m, nil
}
