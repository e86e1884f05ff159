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

// Package restore puts the targets recorded in a backup back into their
// captured state. Every restore that changes anything is itself backed up
// first, so it can be undone by restoring that backup.
package restore

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"

	"agentcfg/internal/backup"
	"agentcfg/internal/common"
	"agentcfg/internal/workspace"
)

// Action is what a restore does to one target.
type Action int

const (
	ActionNone Action = iota
	ActionWrite
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionWrite:
		return "write"
	case ActionDelete:
		return "delete"
	}
	return "none"
}

// Step is the planned action for one target.
type Step struct {
	Scope  workspace.Scope
	Path   string
	Action Action
	Data   []byte // desired bytes for ActionWrite

	// Fragment marks steps that rewrite a source fragment rather than
	// restore a manifest entry.
	Fragment bool
}

// Store is the part of the backup store a restore uses.
type Store interface {
	Load(id string) (backup.Manifest, error)
	ReadSnapshot(id string, e backup.Entry) ([]byte, bool, error)
	ReadCurrent(e backup.Entry) ([]byte, bool, error)
	Capture(p *backup.Plan) (*backup.Snapshot, error)
}

// Result reports what a restore changed. PreRestoreBackupID is empty when
// the targets already matched the backup.
type Result struct {
	RestoredCount      int    `json:"restored_count"`
	PreRestoreBackupID string `json:"pre_restore_backup_id,omitempty"`
	FragmentsUpdated   int    `json:"fragments_updated"`
}

// PlanSteps diffs backup id against the current targets. Entries whose
// snapshot file is missing are skipped.
func PlanSteps(store Store, id string) ([]Step, error) {
	m, err := store.Load(id)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(m.Entries))
	for _, e := range m.Entries {
		scope, err := e.Scope()
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", id, err)
		}
		rel, err := common.NormalizeRelative(e.TargetRelativePath)
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", id, err)
		}
		current, exists, err := store.ReadCurrent(e)
		if err != nil {
			return nil, err
		}

		step := Step{Scope: scope, Path: rel}
		if e.ExistedBefore {
			desired, captured, err := store.ReadSnapshot(id, e)
			if err != nil {
				return nil, err
			}
			if !captured {
				log.WithFields(log.Fields{"backup_id": id, "scope": scope, "path": rel}).Warn("restore: snapshot file missing, skipping entry")
				continue
			}
			if !exists || !bytes.Equal(current, desired) {
				step.Action = ActionWrite
				step.Data = desired
			}
		} else if exists {
			step.Action = ActionDelete
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Changed returns the steps that do something.
func Changed(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if s.Action != ActionNone {
			out = append(out, s)
		}
	}
	return out
}

// Restore applies backup id. Changed targets are captured into a new backup
// with trigger pre_restore:<id> before the first write.
func Restore(tree Tree, store Store, id string, opts Options) (*Result, error) {
	steps, err := PlanSteps(store, id)
	if err != nil {
		return nil, err
	}
	changed := Changed(steps)

	if opts.derive() {
		fragments, err := deriveFragments(tree, opts.Mapping, changed)
		if err != nil {
			return nil, err
		}
		changed = append(changed, fragments...)
	}

	logger := log.WithField("backup_id", id)
	if len(changed) == 0 {
		logger.Info("restore: targets already match backup")
		return &Result{}, nil
	}

	p := backup.NewPlan(backup.PreRestoreTrigger(id))
	for _, s := range changed {
		p.Add(s.Scope, s.Path)
	}
	snap, err := store.Capture(p)
	if err != nil {
		return nil, err
	}

	result := &Result{PreRestoreBackupID: snap.ID()}
	for _, s := range changed {
		done, err := apply(snap, s)
		if err != nil {
			logger.WithError(err).WithField("pre_restore_backup_id", snap.ID()).Error("restore: write failed")
			return nil, err
		}
		switch {
		case !done:
		case s.Fragment:
			result.FragmentsUpdated++
		default:
			result.RestoredCount++
		}
	}

	logger.WithFields(log.Fields{
		"restored":              result.RestoredCount,
		"fragments":             result.FragmentsUpdated,
		"pre_restore_backup_id": snap.ID(),
	}).Info("restore: applied")
	return result, nil
}

func apply(snap *backup.Snapshot, s Step) (bool, error) {
	switch s.Action {
	case ActionWrite:
		return true, snap.Write(s.Scope, s.Path, s.Data)
	case ActionDelete:
		return snap.Delete(s.Scope, s.Path)
	}
	return false, nil
}
