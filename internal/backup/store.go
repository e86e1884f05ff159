package backup

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/storage"
	"agentcfg/internal/workspace"
)

// Scopes resolves the filesystems a backup reads from and writes to.
type Scopes interface {
	Backups() billy.Filesystem
	Scope(s workspace.Scope) (billy.Filesystem, error)
	AbsolutePath(s workspace.Scope, rel string) string
}

// Store manages the backups directory of a workspace.
type Store struct {
	scopes Scopes
	fs     billy.Filesystem
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for deterministic ids in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store over the backups directory of scopes.
func NewStore(scopes Scopes, opts ...Option) *Store {
	s := &Store{scopes: scopes, fs: scopes.Backups(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateID rejects ids that are not a single plain path element.
func validateID(id string) error {
	clean, err := common.NormalizeRelative(id)
	if err != nil {
		return err
	}
	if clean != id || strings.Contains(id, "/") {
		return &common.PathError{Path: id, Reason: "backup id must be a single path element"}
	}
	return nil
}

// Load reads the manifest of backup id.
func (s *Store) Load(id string) (Manifest, error) {
	if err := validateID(id); err != nil {
		return Manifest{}, err
	}
	data, exists, err := storage.ReadFile(s.fs, common.JoinPath(id, ManifestFileName))
	if err != nil {
		return Manifest{}, err
	}
	if !exists {
		return Manifest{}, fmt.Errorf("%w: backup %s", common.ErrNotFound, id)
	}
	return decodeManifest(id, data)
}

// List returns every readable backup, newest first. Directories without a
// valid manifest are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := s.fs.ReadDir("")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, common.NewIOError("read directory", "backups", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.Load(e.Name())
		if err != nil {
			log.WithError(err).WithField("backup_id", e.Name()).Debug("backup: skipping directory without a valid manifest")
			continue
		}
		infos = append(infos, m.Info())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt > infos[j].CreatedAt
		}
		return infos[i].BackupID > infos[j].BackupID
	})
	return infos, nil
}

// Delete removes backup id and everything under it.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	info, err := s.fs.Stat(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: backup %s", common.ErrNotFound, id)
		}
		return common.NewIOError("stat", id, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: backup %s", common.ErrNotFound, id)
	}
	if err := util.RemoveAll(s.fs, id); err != nil {
		return common.NewIOError("remove", id, err)
	}
	log.WithField("backup_id", id).Info("backup: deleted")
	return nil
}

// SnapshotPath returns the location of an entry's captured bytes inside the
// backups directory.
func SnapshotPath(id string, e Entry) string {
	return common.JoinPath(id, e.Agent, e.TargetRelativePath)
}

// ReadSnapshot returns the captured bytes of entry e in backup id. exists is
// false when the entry was not captured or its file is gone.
func (s *Store) ReadSnapshot(id string, e Entry) ([]byte, bool, error) {
	if !e.ExistedBefore {
		return nil, false, nil
	}
	rel, err := common.NormalizeRelative(e.TargetRelativePath)
	if err != nil {
		return nil, false, err
	}
	return storage.ReadFile(s.fs, common.JoinPath(id, e.Agent, rel))
}

// nextID allocates a millisecond timestamp id strictly greater than every
// existing numeric backup id.
func (s *Store) nextID() (string, uint64, error) {
	ms := uint64(s.now().UnixMilli())

	entries, err := s.fs.ReadDir("")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", 0, common.NewIOError("read directory", "backups", err)
	}
	for _, e := range entries {
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if n >= ms {
			ms = n + 1
		}
	}
	return strconv.FormatUint(ms, 10), ms, nil
}
