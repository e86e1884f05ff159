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

// Package mapping models mapping.json: for every category, the target path
// inside each agent tree and the sync mode used when writing it.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"agentcfg/internal/common"
)

// CurrentVersion is written to new mapping files.
const CurrentVersion = 1

// CategoryMapping holds one target per agent. A target with an extension is a
// literal file path; anything else is a directory the source tree is mirrored
// into. An empty target mirrors into the agent root.
type CategoryMapping struct {
	Codex    string   `json:"codex"`
	Gemini   string   `json:"gemini"`
	Claude   string   `json:"claude"`
	SyncMode SyncMode `json:"sync_mode"`
}

// Target returns the configured target for agent a.
func (m CategoryMapping) Target(a Agent) string {
	switch a {
	case AgentCodex:
		return m.Codex
	case AgentGemini:
		return m.Gemini
	case AgentClaude:
		return m.Claude
	}
	return ""
}

// WithTarget returns a copy of m with agent a's target replaced.
func (m CategoryMapping) WithTarget(a Agent, target string) CategoryMapping {
	switch a {
	case AgentCodex:
		m.Codex = target
	case AgentGemini:
		m.Gemini = target
	case AgentClaude:
		m.Claude = target
	}
	return m
}

// FileStyle reports whether every agent target is a literal file.
func (m CategoryMapping) FileStyle() bool {
	for _, a := range Agents {
		if !common.LooksLikeFile(m.Target(a)) {
			return false
		}
	}
	return true
}

// Mode returns the sync mode, treating an unset mode as replace.
func (m CategoryMapping) Mode() SyncMode {
	if m.SyncMode == "" {
		return SyncModeReplace
	}
	return m.SyncMode
}

func uniform(target string) CategoryMapping {
	return CategoryMapping{Codex: target, Gemini: target, Claude: target, SyncMode: SyncModeReplace}
}

// DefaultCategoryMapping returns the built-in targets for c.
func DefaultCategoryMapping(c Category) CategoryMapping {
	switch c.Kind {
	case KindInstructions:
		return CategoryMapping{Codex: "AGENTS.md", Gemini: "GEMINI.md", Claude: "CLAUDE.md", SyncMode: SyncModeReplace}
	case KindSkills:
		return uniform("skills")
	case KindPlugins:
		return uniform("plugins")
	case KindCommands:
		return CategoryMapping{Codex: "rules", Gemini: "commands", Claude: "commands", SyncMode: SyncModeReplace}
	case KindMCP:
		return CategoryMapping{Codex: "mcp.json", Gemini: "antigravity/mcp_config.json", Claude: "mcp.json", SyncMode: SyncModeReplace}
	case KindCustom:
		return uniform(c.Name)
	}
	panic(fmt.Sprintf("unhandled category kind %d", c.Kind))
}

// Config is the content of mapping.json.
type Config struct {
	Version    uint32                     `json:"version"`
	Categories map[string]CategoryMapping `json:"categories"`
}

// Default returns a mapping with every built-in category at its defaults.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion, Categories: make(map[string]CategoryMapping, len(BuiltinCategories))}
	for _, c := range BuiltinCategories {
		cfg.Categories[c.Name] = DefaultCategoryMapping(c)
	}
	return cfg
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := &Config{Version: c.Version, Categories: make(map[string]CategoryMapping, len(c.Categories))}
	for k, v := range c.Categories {
		out.Categories[k] = v
	}
	return out
}

// CategoryNames returns the configured category names, sorted.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize applies the legacy migrations and fills missing built-in
// categories. It returns the normalized copy and whether anything changed.
func Normalize(c *Config) (*Config, bool) {
	out := c.Clone()
	changed := false

	if _, ok := out.Categories[Instructions.Name]; !ok {
		if legacy, ok := out.Categories[legacyPromptsCategory]; ok {
			delete(out.Categories, legacyPromptsCategory)
			out.Categories[Instructions.Name] = legacy
			changed = true
		}
	}

	for _, cat := range BuiltinCategories {
		if _, ok := out.Categories[cat.Name]; !ok {
			out.Categories[cat.Name] = DefaultCategoryMapping(cat)
			changed = true
		}
	}

	instructions := out.Categories[Instructions.Name]
	defaults := DefaultCategoryMapping(Instructions)
	for _, a := range Agents {
		if instructions.Target(a) == legacyPromptsCategory {
			instructions = instructions.WithTarget(a, defaults.Target(a))
			changed = true
		}
	}
	out.Categories[Instructions.Name] = instructions

	// Older releases mapped commands and mcp to a same-named directory for
	// every agent.
	for _, cat := range []Category{Commands, MCP} {
		m := out.Categories[cat.Name]
		if m.Codex == cat.Name && m.Gemini == cat.Name && m.Claude == cat.Name {
			migrated := DefaultCategoryMapping(cat)
			migrated.SyncMode = m.SyncMode
			out.Categories[cat.Name] = migrated
			changed = true
		}
	}

	for name, m := range out.Categories {
		if m.SyncMode == "" {
			m.SyncMode = SyncModeReplace
			out.Categories[name] = m
		}
	}

	return out, changed
}

// Validate checks the version, category names and every target path.
func Validate(c *Config) error {
	if c.Version == 0 {
		return &common.ValidationError{Field: "version", Message: "must be greater than 0"}
	}
	for _, name := range c.CategoryNames() {
		if strings.TrimSpace(name) == "" {
			return &common.ValidationError{Field: "categories", Message: "category name cannot be empty"}
		}
		m := c.Categories[name]
		for _, a := range Agents {
			if _, err := common.CleanRelative(m.Target(a)); err != nil {
				return &common.ValidationError{
					Field:   fmt.Sprintf("categories.%s.%s", name, a),
					Message: err.Error(),
				}
			}
		}
	}
	return nil
}
