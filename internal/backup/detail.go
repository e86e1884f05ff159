package backup

import (
	"agentcfg/internal/common"
	"agentcfg/internal/storage"
)

// DetailEntry pairs the captured content of an entry with the current
// content of its target. Either side is nil when the file does not exist.
type DetailEntry struct {
	Agent              string  `json:"agent"`
	TargetRelativePath string  `json:"target_relative_path"`
	TargetAbsolutePath string  `json:"target_absolute_path"`
	ExistedBefore      bool    `json:"existed_before"`
	BackupContent      *string `json:"backup_content"`
	CurrentContent     *string `json:"current_content"`
}

// Detail is a read-only projection of a backup for diffing.
type Detail struct {
	BackupID  string        `json:"backup_id"`
	CreatedAt uint64        `json:"created_at"`
	Trigger   string        `json:"trigger"`
	Entries   []DetailEntry `json:"entries"`
}

// Detail loads backup id together with the current state of its targets.
func (s *Store) Detail(id string) (*Detail, error) {
	m, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	d := &Detail{BackupID: m.BackupID, CreatedAt: m.CreatedAt, Trigger: m.Trigger, Entries: make([]DetailEntry, 0, len(m.Entries))}
	for _, e := range m.Entries {
		de := DetailEntry{
			Agent:              e.Agent,
			TargetRelativePath: e.TargetRelativePath,
			TargetAbsolutePath: e.TargetAbsolutePath,
			ExistedBefore:      e.ExistedBefore,
		}

		data, exists, err := s.ReadSnapshot(id, e)
		if err != nil {
			return nil, err
		}
		if exists {
			de.BackupContent = textPtr(data)
		}

		current, exists, err := s.ReadCurrent(e)
		if err != nil {
			return nil, err
		}
		if exists {
			de.CurrentContent = textPtr(current)
		}
		d.Entries = append(d.Entries, de)
	}
	return d, nil
}

// ReadCurrent returns the present bytes of an entry's target, resolved
// through its scope filesystem rather than the recorded absolute path.
func (s *Store) ReadCurrent(e Entry) ([]byte, bool, error) {
	scope, err := e.Scope()
	if err != nil {
		return nil, false, err
	}
	rel, err := common.NormalizeRelative(e.TargetRelativePath)
	if err != nil {
		return nil, false, err
	}
	fs, err := s.scopes.Scope(scope)
	if err != nil {
		return nil, false, err
	}
	return storage.ReadFile(fs, rel)
}

func textPtr(data []byte) *string {
	text := storage.DecodeText(data)
	return &text
}
