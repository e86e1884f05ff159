// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
)

func init() {
	// Silent until Setup is called.
	log.SetOutput(io.Discard)
}

// Options selects the level and sink.
type Options struct {
	Level  string // none, off, warn, info, debug, trace (case insensitive)
	Path   string // rotated log file, used unless Stderr is set
	Stderr bool
}

// ParseLevel maps a settings level to a logrus level. ok is false when
// logging is disabled.
func ParseLevel(level string) (lvl log.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "none", "off":
		return log.PanicLevel, false, nil
	case "trace":
		return log.TraceLevel, true, nil
	case "debug":
		return log.DebugLevel, true, nil
	case "info":
		return log.InfoLevel, true, nil
	case "warn", "warning":
		return log.WarnLevel, true, nil
	case "error":
		return log.ErrorLevel, true, nil
	}
	return log.PanicLevel, false, fmt.Errorf("unknown log level %q", level)
}

// Setup points logrus at the configured sink. The returned closer releases
// the log file and is safe to call when logging is disabled.
func Setup(opts Options) (io.Closer, error) {
	lvl, enabled, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if !enabled {
		log.SetOutput(io.Discard)
		return nopCloser{}, nil
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if opts.Stderr || opts.Path == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
	log.SetOutput(sink)
	return sink, nil
}

// Operation returns a logger tagged with a fresh correlation id and the
// operation name.
func Operation(name string) *log.Entry {
	return log.WithFields(log.Fields{"op": name, "op_id": uuid.NewString()})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
