package backup

import (
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/storage"
	"agentcfg/internal/workspace"
)

// Target is one file a write batch is about to touch.
type Target struct {
	Scope workspace.Scope
	Path  string
}

// Plan is the first phase of a guarded write: the set of targets to capture.
type Plan struct {
	trigger string
	targets []Target
	seen    map[Target]bool
}

// NewPlan starts a plan for a backup with the given trigger.
func NewPlan(trigger string) *Plan {
	return &Plan{trigger: trigger, seen: make(map[Target]bool)}
}

// Add registers a target. Duplicates are ignored.
func (p *Plan) Add(scope workspace.Scope, rel string) {
	t := Target{Scope: scope, Path: rel}
	if p.seen[t] {
		return
	}
	p.seen[t] = true
	p.targets = append(p.targets, t)
}

// Len returns the number of distinct targets.
func (p *Plan) Len() int { return len(p.targets) }

// Trigger returns the provenance tag of the plan
func (p *Plan) Trigger() string { return p.trigger }

// Snapshot is a committed backup: every planned target that existed has been
// copied and the manifest has been written. Only Store.Capture produces one,
// and target writes are only possible through it.
type Snapshot struct {
	store    *Store
	manifest Manifest
	covered  map[Target]bool
}

// ID returns the backup id
func (s *Snapshot) ID() string { return s.manifest.BackupID }

// Manifest returns a copy of the persisted manifest.
func (s *Snapshot) Manifest() Manifest {
	m := s.manifest
	m.Entries = append([]Entry(nil), s.manifest.Entries...)
	return m
}

// Capture runs the snapshot phase for p: allocate an id, copy the current
// bytes of every existing target, then write the manifest. Nothing outside
// the backups directory is modified. On failure the partial backup directory
// is removed and no Snapshot is returned.
func (s *Store) Capture(p *Plan) (*Snapshot, error) {
	if p.Len() == 0 {
		return nil, fmt.Errorf("backup plan %q has no targets", p.trigger)
	}
	id, createdAt, err := s.nextID()
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(id, 0o755); err != nil {
		return nil, common.NewIOError("create directory", id, err)
	}

	logger := log.WithFields(log.Fields{"backup_id": id, "trigger": p.trigger})
	snap, err := s.capture(id, createdAt, p)
	if err != nil {
		if rmErr := util.RemoveAll(s.fs, id); rmErr != nil {
			logger.WithError(rmErr).Warn("backup: failed to remove incomplete backup")
		}
		return nil, err
	}
	logger.WithField("entries", len(snap.manifest.Entries)).Info("backup: captured")
	return snap, nil
}

func (s *Store) capture(id string, createdAt uint64, p *Plan) (*Snapshot, error) {
	m := Manifest{BackupID: id, CreatedAt: createdAt, Trigger: p.trigger, Entries: make([]Entry, 0, len(p.targets))}
	covered := make(map[Target]bool, len(p.targets))

	for _, t := range p.targets {
		rel, err := common.NormalizeRelative(t.Path)
		if err != nil {
			return nil, err
		}
		src, err := s.scopes.Scope(t.Scope)
		if err != nil {
			return nil, err
		}

		data, exists, err := storage.ReadFile(src, rel)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := storage.WriteAtomic(s.fs, common.JoinPath(id, string(t.Scope), rel), data); err != nil {
				return nil, err
			}
		}

		m.Entries = append(m.Entries, Entry{
			Agent:              string(t.Scope),
			TargetRelativePath: rel,
			TargetAbsolutePath: s.scopes.AbsolutePath(t.Scope, rel),
			ExistedBefore:      exists,
		})
		covered[Target{Scope: t.Scope, Path: rel}] = true
	}

	payload, err := encodeManifest(m)
	if err != nil {
		return nil, err
	}
	if err := storage.WriteAtomic(s.fs, common.JoinPath(id, ManifestFileName), payload); err != nil {
		return nil, err
	}
	return &Snapshot{store: s, manifest: m, covered: covered}, nil
}

func (s *Snapshot) target(scope workspace.Scope, rel string) (Target, error) {
	clean, err := common.NormalizeRelative(rel)
	if err != nil {
		return Target{}, err
	}
	t := Target{Scope: scope, Path: clean}
	if !s.covered[t] {
		return Target{}, fmt.Errorf("%s:%s is not covered by backup %s", scope, clean, s.ID())
	}
	return t, nil
}

// Write atomically replaces a captured target.
func (s *Snapshot) Write(scope workspace.Scope, rel string, data []byte) error {
	t, err := s.target(scope, rel)
	if err != nil {
		return err
	}
	fs, err := s.store.scopes.Scope(t.Scope)
	if err != nil {
		return err
	}
	return storage.WriteAtomic(fs, t.Path, data)
}

// Delete removes a captured target. It reports false when the file was
// already gone.
func (s *Snapshot) Delete(scope workspace.Scope, rel string) (bool, error) {
	t, err := s.target(scope, rel)
	if err != nil {
		return false, err
	}
	fs, err := s.store.scopes.Scope(t.Scope)
	if err != nil {
		return false, err
	}
	return storage.RemoveFile(fs, t.Path)
}
