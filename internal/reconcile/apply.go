package reconcile

import (
	"time"

	log "github.com/sirupsen/logrus"

	"agentcfg/internal/backup"
	"agentcfg/internal/mapping"
	"agentcfg/internal/workspace"
)

// Preview is a freshly planned set of items.
type Preview struct {
	GeneratedAt int64  `json:"generated_at"` // unix milliseconds
	Items       []Item `json:"items"`
}

// PreviewAt plans cfg and stamps the result with now.
func PreviewAt(tree Tree, cfg *mapping.Config, now time.Time) (*Preview, error) {
	items, err := Plan(tree, cfg)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return &Preview{GeneratedAt: now.UnixMilli(), Items: items}, nil
}

// ApplyResult reports what an apply wrote. BackupID is empty when nothing
// needed writing.
type ApplyResult struct {
	BackupID     string   `json:"backup_id,omitempty"`
	AppliedCount int      `json:"applied_count"`
	Files        []string `json:"files"`
}

// Capturer creates the backup that guards a write batch.
type Capturer interface {
	Capture(p *backup.Plan) (*backup.Snapshot, error)
}

// Apply re-plans cfg and writes every changed item, or only the items whose
// ids are in selected when it is non-empty. All targets are captured into one
// backup before the first write.
func Apply(tree Tree, capturer Capturer, cfg *mapping.Config, selected []string) (*ApplyResult, error) {
	items, err := Plan(tree, cfg)
	if err != nil {
		return nil, err
	}
	chosen := Select(items, selected)
	if len(chosen) == 0 {
		log.Debug("reconcile: nothing to apply")
		return &ApplyResult{Files: []string{}}, nil
	}

	p := backup.NewPlan(backup.TriggerSync)
	for _, it := range chosen {
		p.Add(workspace.AgentScope(it.Agent), it.TargetRelativePath)
	}
	snap, err := capturer.Capture(p)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{BackupID: snap.ID(), Files: make([]string, 0, len(chosen))}
	for _, it := range chosen {
		if err := snap.Write(workspace.AgentScope(it.Agent), it.TargetRelativePath, []byte(it.After)); err != nil {
			log.WithError(err).WithFields(log.Fields{"backup_id": snap.ID(), "item": it.ID}).Error("reconcile: write failed, restore the backup to roll back")
			return nil, err
		}
		result.Files = append(result.Files, it.TargetAbsolutePath)
	}
	result.AppliedCount = len(result.Files)

	log.WithFields(log.Fields{"backup_id": snap.ID(), "applied": result.AppliedCount}).Info("reconcile: applied")
	return result, nil
}

// Select drops unchanged items and, when ids is non-empty, every item not
// named in it.
func Select(items []Item, ids []string) []Item {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []Item
	for _, it := range items {
		if !it.Changed() {
			continue
		}
		if len(want) > 0 && !want[it.ID] {
			continue
		}
		out = append(out, it)
	}
	return out
}
