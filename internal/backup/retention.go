package backup

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Policy bounds how many backups are kept. Zero values mean unbounded.
type Policy struct {
	MaxCount int
	MaxAge   time.Duration
}

// Unbounded reports whether the policy never prunes anything.
func (p Policy) Unbounded() bool {
	return p.MaxCount <= 0 && p.MaxAge <= 0
}

// Select returns the ids of infos that fall outside p. infos must be ordered
// newest first, as returned by Store.List. The backup named keep is never
// selected and always occupies one of the MaxCount slots.
func (p Policy) Select(infos []Info, now time.Time, keep string) []string {
	if p.Unbounded() {
		return nil
	}

	var pruned []string
	kept := 0
	if keep != "" {
		kept = 1
	}
	for _, info := range infos {
		if info.BackupID == keep {
			continue
		}
		tooMany := p.MaxCount > 0 && kept >= p.MaxCount
		tooOld := p.MaxAge > 0 && now.Sub(time.UnixMilli(int64(info.CreatedAt))) > p.MaxAge
		if tooMany || tooOld {
			pruned = append(pruned, info.BackupID)
			continue
		}
		kept++
	}
	return pruned
}

// Prune deletes every backup outside p except keep and returns the deleted
// ids, newest first.
func (s *Store) Prune(p Policy, keep string) ([]string, error) {
	if p.Unbounded() {
		return []string{}, nil
	}
	infos, err := s.List()
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	for _, id := range p.Select(infos, s.now(), keep) {
		if err := s.Delete(id); err != nil {
			return deleted, err
		}
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		log.WithFields(log.Fields{"count": len(deleted), "max_count": p.MaxCount, "max_age": p.MaxAge}).Info("backup: pruned")
	}
	return deleted, nil
}
