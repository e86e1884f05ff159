package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"agentcfg/internal/common"
)

// FileFilter decides whether a path is included in a listing.
// relPath is relative to the filesystem root, not to the listed directory.
// Returning false for a directory prunes the whole subtree.
type FileFilter func(relPath string, isDir bool) bool

// ListFiles returns every regular file under root, relative to root, sorted.
// A missing root yields an empty list. Atomic-write leftovers are skipped.
func ListFiles(fs billy.Filesystem, root string, filter FileFilter) ([]string, error) {
	var files []string
	err := util.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == root && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return common.NewIOError("walk", p, err)
		}

		full := filepath.ToSlash(p)
		if info.IsDir() {
			if p != root && filter != nil && !filter(full, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || IsTempFile(full) {
			return nil
		}
		if filter != nil && !filter(full, false) {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return common.NewIOError("resolve", p, relErr)
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ListTopLevel returns the names of regular files directly under dir, sorted.
func ListTopLevel(fs billy.Filesystem, dir string, filter FileFilter) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, common.NewIOError("read directory", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Mode().IsRegular() || IsTempFile(e.Name()) {
			continue
		}
		if filter != nil && !filter(common.JoinPath(dir, e.Name()), false) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
