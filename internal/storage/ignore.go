package storage

import (
	"strings"

	"github.com/go-git/go-billy/v5"
	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"
)

// IgnoreFileName is the gitignore-syntax file at the source root.
const IgnoreFileName = ".syncignore"

// LoadIgnoreFilter compiles the ignore file at name into a FileFilter.
// Returns nil when the file does not exist.
func LoadIgnoreFilter(fs billy.Filesystem, name string) (FileFilter, error) {
	text, exists, err := ReadText(fs, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return CompileIgnoreFilter(strings.Split(text, "\n")...), nil
}

// CompileIgnoreFilter builds a FileFilter from gitignore-syntax lines.
func CompileIgnoreFilter(lines ...string) FileFilter {
	gi := ignore.CompileIgnoreLines(lines...)
	return func(relPath string, isDir bool) bool {
		checkPath := relPath
		if isDir {
			checkPath = relPath + "/"
		}
		if matched, how := gi.MatchesPathHow(checkPath); matched {
			if how != nil {
				log.WithFields(log.Fields{"path": relPath, "rule": how.Line}).Trace("storage: path ignored")
			}
			return false
		}
		return true
	}
}
