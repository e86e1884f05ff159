package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/storage"
)

const (
	// FileName is the mapping file under the workspace root.
	FileName = "mapping.json"
	// InvalidSuffix is appended to a mapping file that failed to parse.
	InvalidSuffix = ".invalid"
)

// Save normalizes, validates and atomically writes cfg.
func Save(fs billy.Filesystem, cfg *Config) error {
	normalized, _ := Normalize(cfg)
	if err := Validate(normalized); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode mapping: %v", common.ErrSerialization, err)
	}
	return storage.WriteAtomic(fs, FileName, payload)
}

// Load reads mapping.json, creating it with defaults when absent. Legacy
// layouts are normalized and persisted. A file that cannot be parsed is moved
// aside to mapping.json.invalid and replaced with defaults; a file that parses
// but fails validation is an error.
func Load(fs billy.Filesystem) (*Config, error) {
	data, exists, err := storage.ReadFile(fs, FileName)
	if err != nil {
		return nil, err
	}
	if !exists {
		cfg := Default()
		if err := Save(fs, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default mapping: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.WithError(err).Warn("mapping: unreadable mapping.json, preserving it and restoring defaults")
		return recoverCorrupt(fs)
	}

	normalized, changed := Normalize(&cfg)
	if err := Validate(normalized); err != nil {
		return nil, err
	}
	if changed {
		log.Info("mapping: persisting migrated mapping")
		if err := Save(fs, normalized); err != nil {
			return nil, fmt.Errorf("failed to persist normalized mapping: %w", err)
		}
	}
	return normalized, nil
}

func recoverCorrupt(fs billy.Filesystem) (*Config, error) {
	invalid := FileName + InvalidSuffix
	if err := fs.Remove(invalid); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, common.NewIOError("remove", invalid, err)
	}
	if err := fs.Rename(FileName, invalid); err != nil {
		return nil, common.NewIOError("rename", FileName, err)
	}

	cfg := Default()
	if err := Save(fs, cfg); err != nil {
		return nil, fmt.Errorf("failed to write default mapping: %w", err)
	}
	return cfg, nil
}
