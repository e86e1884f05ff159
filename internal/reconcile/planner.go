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

// Package reconcile plans and applies the writes that bring every agent tree
// in line with the source tree.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
	"agentcfg/internal/storage"
	"agentcfg/internal/workspace"
)

// Status classifies a planned change.
type Status string

const (
	StatusCreate    Status = "create"
	StatusUpdate    Status = "update"
	StatusAppend    Status = "append"
	StatusUnchanged Status = "unchanged"
)

// Item is one planned write of one agent target.
type Item struct {
	ID                 string        `json:"id"`
	Agent              mapping.Agent `json:"agent"`
	Category           string        `json:"category"`
	SourceFile         string        `json:"source_file"`
	TargetRelativePath string        `json:"target_relative_path"`
	TargetAbsolutePath string        `json:"target_absolute_path"`
	Status             Status        `json:"status"`
	Before             string        `json:"before"`
	After              string        `json:"after"`
}

// Changed reports whether applying the item would write anything.
func (it Item) Changed() bool { return it.Status != StatusUnchanged }

// ItemID formats the stable identifier of an item.
func ItemID(a mapping.Agent, category, target string) string {
	return fmt.Sprintf("%s:%s:%s", a, category, target)
}

// Tree is the view of a workspace the planner needs.
type Tree interface {
	Source() billy.Filesystem
	Agent(a mapping.Agent) billy.Filesystem
	AbsolutePath(s workspace.Scope, rel string) string
	SourceFilter() (storage.FileFilter, error)
}

// Plan builds the full, sorted set of items for cfg against the current
// source and agent trees. Two items resolving to the same agent target fail
// the whole plan with a *common.ConflictError.
func Plan(tree Tree, cfg *mapping.Config) ([]Item, error) {
	filter, err := tree.SourceFilter()
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	p := &planner{tree: tree, claimed: make(map[string]string)}
	for _, category := range cfg.CategoryNames() {
		if err := p.planCategory(category, cfg.Categories[category], filter); err != nil {
			return nil, err
		}
	}

	sort.Slice(p.items, func(i, j int) bool {
		if p.items[i].Agent != p.items[j].Agent {
			return p.items[i].Agent < p.items[j].Agent
		}
		return p.items[i].TargetRelativePath < p.items[j].TargetRelativePath
	})
	return p.items, nil
}

type planner struct {
	tree    Tree
	items   []Item
	claimed map[string]string // agent:target -> source description
}

func (p *planner) planCategory(category string, cm mapping.CategoryMapping, filter storage.FileFilter) error {
	if _, err := common.NormalizeRelative(category); err != nil {
		return &common.ValidationError{Field: "categories", Message: fmt.Sprintf("category %q: %v", category, err)}
	}

	files, err := storage.ListFiles(p.tree.Source(), category, filter)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	if fragments, ok := DetectFragments(category, cm, topLevel(files)); ok {
		log.WithFields(log.Fields{"category": category, "base": fragments.Base}).Debug("reconcile: per-agent composition")
		for _, a := range mapping.Agents {
			content, desc, ok, err := Compose(p.tree.Source(), fragments, a)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			target, err := common.NormalizeRelative(cm.Target(a))
			if err != nil {
				return err
			}
			if err := p.add(category, cm.Mode(), a, target, content, desc); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rel := range files {
		sourcePath := common.JoinPath(category, rel)
		content, _, err := storage.ReadText(p.tree.Source(), sourcePath)
		if err != nil {
			return err
		}
		for _, a := range mapping.Agents {
			target, err := ResolveTarget(cm.Target(a), rel)
			if err != nil {
				return err
			}
			if err := p.add(category, cm.Mode(), a, target, content, sourcePath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *planner) add(category string, mode mapping.SyncMode, a mapping.Agent, target, content, desc string) error {
	key := string(a) + ":" + target
	if prev, ok := p.claimed[key]; ok {
		return &common.ConflictError{Category: category, Agent: string(a), Target: target, Sources: []string{prev, desc}}
	}
	p.claimed[key] = desc

	before, exists, err := storage.ReadText(p.tree.Agent(a), target)
	if err != nil {
		return err
	}
	final, status := ApplyMode(before, content, mode, exists)

	p.items = append(p.items, Item{
		ID:                 ItemID(a, category, target),
		Agent:              a,
		Category:           category,
		SourceFile:         desc,
		TargetRelativePath: target,
		TargetAbsolutePath: p.tree.AbsolutePath(workspace.AgentScope(a), target),
		Status:             status,
		Before:             before,
		After:              final,
	})
	return nil
}

// ResolveTarget maps a source file (relative to its category folder) to the
// agent-relative target path: an empty mapping mirrors the source path, a
// file-style mapping is used literally, a directory mapping is joined with
// the source path.
func ResolveTarget(mapped, rel string) (string, error) {
	cleaned, err := common.CleanRelative(mapped)
	if err != nil {
		return "", err
	}
	switch {
	case cleaned == "":
		return common.NormalizeRelative(rel)
	case common.LooksLikeFile(cleaned):
		return cleaned, nil
	}
	return common.NormalizeRelative(common.JoinPath(cleaned, rel))
}

func topLevel(files []string) []string {
	var out []string
	for _, f := range files {
		if !strings.Contains(f, "/") {
			out = append(out, f)
		}
	}
	return out
}
