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

package common

import (
	"path"
	"strings"
)

// NormalizeRelative validates a user or config supplied relative path and
// returns it in canonical slash-separated form. Empty and "." segments are
// dropped; absolute paths, drive-qualified paths and ".." segments are rejected.
func NormalizeRelative(p string) (string, error) {
	cleaned, err := CleanRelative(p)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", &PathError{Path: p, Reason: "path is empty"}
	}
	return cleaned, nil
}

// CleanRelative is NormalizeRelative without the non-empty requirement.
func CleanRelative(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", &PathError{Path: p, Reason: "absolute paths are not allowed"}
	}
	if len(p) >= 2 && p[1] == ':' {
		return "", &PathError{Path: p, Reason: "absolute paths are not allowed"}
	}

	parts := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", &PathError{Path: p, Reason: "parent traversal is not allowed"}
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/"), nil
}

// JoinPath joins slash-separated components, skipping empty ones
func JoinPath(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// ParentPath returns the parent directory of a slash path, or "" at the top level
func ParentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// BaseName returns the last element of a slash path
func BaseName(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// LooksLikeFile reports whether the last element has an extension.
// Dotfiles such as ".env" have no extension.
func LooksLikeFile(p string) bool {
	name := BaseName(p)
	return strings.LastIndex(name, ".") > 0
}

// FileStem returns the last element without its extension.
func FileStem(p string) string {
	name := BaseName(p)
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
