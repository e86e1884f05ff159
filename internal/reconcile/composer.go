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

package reconcile

import (
	"strings"
	"unicode"

	"github.com/go-git/go-billy/v5"

	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
	"agentcfg/internal/storage"
)

// BaseFragment is the stem of the fragment shared by every agent.
const BaseFragment = "base"

// Fragments names the per-agent composition inputs of one category, as
// file names directly under the category folder. Empty means absent.
type Fragments struct {
	Category string
	Base     string
	Agents   map[mapping.Agent]string
}

// Agent returns the fragment file name for a, or "" when there is none.
func (f Fragments) Agent(a mapping.Agent) string { return f.Agents[a] }

// FragmentPath returns the source path of a fragment file.
func (f Fragments) FragmentPath(name string) string {
	return common.JoinPath(f.Category, name)
}

// DetectFragments decides whether a category is in per-agent mode: every
// agent target must be a literal file and at least one top-level source file
// must be named base, codex, gemini or claude (any extension). topLevel must
// be sorted; the first file per stem wins.
func DetectFragments(category string, cm mapping.CategoryMapping, topLevel []string) (Fragments, bool) {
	if !cm.FileStyle() {
		return Fragments{}, false
	}

	f := Fragments{Category: category, Agents: make(map[mapping.Agent]string, len(mapping.Agents))}
	found := false
	for _, name := range topLevel {
		stem := common.FileStem(name)
		if stem == BaseFragment {
			if f.Base == "" {
				f.Base = name
				found = true
			}
			continue
		}
		a := mapping.Agent(stem)
		if a.Valid() {
			if _, ok := f.Agents[a]; !ok {
				f.Agents[a] = name
				found = true
			}
		}
	}
	return f, found
}

// ComposeText joins a base and an agent fragment. ok is false when both are
// blank, meaning no item should be produced for that agent.
func ComposeText(base, fragment string) (string, bool) {
	baseEmpty := strings.TrimSpace(base) == ""
	fragmentEmpty := strings.TrimSpace(fragment) == ""

	switch {
	case baseEmpty && fragmentEmpty:
		return "", false
	case baseEmpty:
		return fragment, true
	case fragmentEmpty:
		return base, true
	}
	return trimEnd(base) + "\n\n" + fragment, true
}

// Compose reads the fragments for agent a from the source tree and returns
// the composed content together with a description of its inputs.
func Compose(source billy.Filesystem, f Fragments, a mapping.Agent) (content, desc string, ok bool, err error) {
	base, err := readFragment(source, f, f.Base)
	if err != nil {
		return "", "", false, err
	}
	fragment, err := readFragment(source, f, f.Agent(a))
	if err != nil {
		return "", "", false, err
	}

	content, ok = ComposeText(base, fragment)
	if !ok {
		return "", "", false, nil
	}

	var parts []string
	if f.Base != "" {
		parts = append(parts, f.FragmentPath(f.Base))
	}
	if name := f.Agent(a); name != "" {
		parts = append(parts, f.FragmentPath(name))
	}
	return content, strings.Join(parts, " + "), true, nil
}

func readFragment(source billy.Filesystem, f Fragments, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	text, _, err := storage.ReadText(source, f.FragmentPath(name))
	return text, err
}

// DeriveFragment inverts ComposeText for a known base: it returns the agent
// fragment that composes with base into content. When content does not carry
// the base as a prefix the whole content becomes the fragment.
func DeriveFragment(base, content string) string {
	if strings.TrimSpace(base) == "" {
		return content
	}
	if content == base || trimEnd(content) == trimEnd(base) {
		return ""
	}
	if rest, ok := strings.CutPrefix(content, trimEnd(base)+"\n\n"); ok {
		return rest
	}
	return content
}

// ApplyMode resolves the final target content and status for one item.
// before is the current target content ("" when absent).
func ApplyMode(before, after string, mode mapping.SyncMode, targetExists bool) (string, Status) {
	final := after
	if mode == mapping.SyncModeAppend && before != "" {
		if strings.HasSuffix(trimEnd(before), strings.TrimSpace(after)) {
			final = before
		} else {
			final = trimEnd(before) + "\n\n" + after
		}
	}

	switch {
	case !targetExists:
		return final, StatusCreate
	case before == final:
		return final, StatusUnchanged
	case mode == mapping.SyncModeAppend:
		return final, StatusAppend
	}
	return final, StatusUpdate
}

func trimEnd(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
