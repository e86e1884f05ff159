package engine

import (
	"strings"

	"agentcfg/internal/common"
	"agentcfg/internal/logging"
	"agentcfg/internal/mapping"
)

// Mapping returns the current mapping, creating or migrating mapping.json
// as needed.
func (e *Engine) Mapping() (*mapping.Config, error) {
	return e.prepare()
}

// SetTarget changes the target of one agent in a category. An unknown
// category is created with its defaults first.
func (e *Engine) SetTarget(category string, a mapping.Agent, target string) (*mapping.Config, error) {
	return e.updateCategory(category, func(m mapping.CategoryMapping) mapping.CategoryMapping {
		return m.WithTarget(a, strings.TrimSpace(target))
	})
}

// SetSyncMode changes how a category is written to its targets.
func (e *Engine) SetSyncMode(category string, mode mapping.SyncMode) (*mapping.Config, error) {
	return e.updateCategory(category, func(m mapping.CategoryMapping) mapping.CategoryMapping {
		m.SyncMode = mode
		return m
	})
}

// ResetMapping replaces mapping.json with the built-in defaults.
func (e *Engine) ResetMapping() (*mapping.Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := mapping.Default()
	if err := mapping.Save(e.ws.Meta(), cfg); err != nil {
		return nil, err
	}
	logging.Operation("reset_mapping").Info("mapping reset to defaults")
	return cfg, nil
}

func (e *Engine) updateCategory(category string, fn func(mapping.CategoryMapping) mapping.CategoryMapping) (*mapping.Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, err := common.NormalizeRelative(category)
	if err != nil {
		return nil, &common.ValidationError{Field: "categories", Message: err.Error()}
	}
	cfg, err := e.prepare()
	if err != nil {
		return nil, err
	}

	m, ok := cfg.Categories[name]
	if !ok {
		m = mapping.DefaultCategoryMapping(mapping.CategoryOf(name))
	}
	cfg.Categories[name] = fn(m)

	if err := mapping.Save(e.ws.Meta(), cfg); err != nil {
		return nil, err
	}
	logging.Operation("update_mapping").WithField("category", name).Info("mapping updated")
	return mapping.Load(e.ws.Meta())
}
