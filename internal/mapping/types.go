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

package mapping

import (
	"fmt"
	"strings"
)

// Agent identifies one of the target agent trees.
type Agent string

const (
	AgentCodex  Agent = "codex"
	AgentGemini Agent = "gemini"
	AgentClaude Agent = "claude"
)

// Agents lists every agent in mapping order.
var Agents = []Agent{AgentCodex, AgentGemini, AgentClaude}

// ParseAgent accepts an agent name, case-insensitively.
func ParseAgent(s string) (Agent, error) {
	a := Agent(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown agent %q", s)
	}
	return a, nil
}

func (a Agent) Valid() bool {
	switch a {
	case AgentCodex, AgentGemini, AgentClaude:
		return true
	}
	return false
}

func (a Agent) String() string { return string(a) }

// CategoryKind is the closed set of built-in categories plus a custom arm.
type CategoryKind int

const (
	KindCustom CategoryKind = iota
	KindInstructions
	KindSkills
	KindPlugins
	KindCommands
	KindMCP
)

// Category is a named group of source files mapped to agent targets.
type Category struct {
	Kind CategoryKind
	Name string
}

const legacyPromptsCategory = "prompts"

var (
	Instructions = Category{Kind: KindInstructions, Name: "instructions"}
	Skills       = Category{Kind: KindSkills, Name: "skills"}
	Plugins      = Category{Kind: KindPlugins, Name: "plugins"}
	Commands     = Category{Kind: KindCommands, Name: "commands"}
	MCP          = Category{Kind: KindMCP, Name: "mcp"}
)

// BuiltinCategories are always present after normalization.
var BuiltinCategories = []Category{Instructions, Skills, Plugins, Commands, MCP}

// CategoryOf resolves a category name to its kind.
func CategoryOf(name string) Category {
	for _, c := range BuiltinCategories {
		if c.Name == name {
			return c
		}
	}
	return Category{Kind: KindCustom, Name: name}
}

func (c Category) String() string { return c.Name }

// Builtin reports whether c is one of the fixed categories.
func (c Category) Builtin() bool { return c.Kind != KindCustom }

// SyncMode controls how composed content lands on an existing target.
type SyncMode string

const (
	SyncModeReplace SyncMode = "replace"
	SyncModeAppend  SyncMode = "append"
)

// ParseSyncMode accepts "replace" or "append". Empty means replace.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SyncModeReplace):
		return SyncModeReplace, nil
	case string(SyncModeAppend):
		return SyncModeAppend, nil
	}
	return "", fmt.Errorf("unknown sync mode %q", s)
}

func (m *SyncMode) UnmarshalText(text []byte) error {
	parsed, err := ParseSyncMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m SyncMode) MarshalText() ([]byte, error) {
	if m == "" {
		return []byte(SyncModeReplace), nil
	}
	return []byte(m), nil
}
