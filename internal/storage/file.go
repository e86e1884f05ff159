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

// Package storage holds the file primitives shared by every scope: atomic
// writes, tolerant text reads, recursive listing and ignore filtering. All
// functions operate on a billy.Filesystem rooted at the scope directory and
// take slash-separated paths relative to that root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
)

const tempMarker = ".tmp."

// WriteAtomic writes data to name via a sibling temp file followed by a
// rename, so readers observe either the previous content or the new content.
// Missing parent directories are created.
func WriteAtomic(fs billy.Filesystem, name string, data []byte) error {
	if dir := common.ParentPath(name); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return common.NewIOError("create directory", dir, err)
		}
	}

	tmp := common.JoinPath(common.ParentPath(name), "."+common.BaseName(name)+tempMarker+uuid.NewString())
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return common.NewIOError("create temp file", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		discardTemp(fs, tmp)
		return common.NewIOError("write", tmp, err)
	}
	if err := f.Close(); err != nil {
		discardTemp(fs, tmp)
		return common.NewIOError("close", tmp, err)
	}

	if err := fs.Rename(tmp, name); err != nil {
		discardTemp(fs, tmp)
		return common.NewIOError("rename", name, err)
	}
	return nil
}

func discardTemp(fs billy.Filesystem, tmp string) {
	if err := fs.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("path", tmp).Warn("storage: failed to remove temp file")
	}
}

// IsTempFile reports whether name is a leftover from WriteAtomic.
func IsTempFile(name string) bool {
	base := common.BaseName(name)
	return strings.HasPrefix(base, ".") && strings.Contains(base, tempMarker)
}

// ReadFile returns the content of name and whether it exists. A missing file
// is not an error.
func ReadFile(fs billy.Filesystem, name string) ([]byte, bool, error) {
	f, err := fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, common.NewIOError("open", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, true, common.NewIOError("read", name, err)
	}
	return data, true, nil
}

// ReadText is ReadFile decoded as text. Invalid UTF-8 sequences are replaced
// with U+FFFD rather than failing the read.
func ReadText(fs billy.Filesystem, name string) (string, bool, error) {
	data, exists, err := ReadFile(fs, name)
	if err != nil || !exists {
		return "", exists, err
	}
	return DecodeText(data), true, nil
}

// DecodeText converts bytes to a string, replacing invalid UTF-8.
func DecodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

// Exists reports whether name is present and is a regular file.
func Exists(fs billy.Filesystem, name string) (bool, error) {
	info, err := fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, common.NewIOError("stat", name, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s is a directory", common.ErrIO, name)
	}
	return true, nil
}

// RemoveFile deletes name. It reports false when the file was already gone.
func RemoveFile(fs billy.Filesystem, name string) (bool, error) {
	if err := fs.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, common.NewIOError("remove", name, err)
	}
	return true, nil
}
