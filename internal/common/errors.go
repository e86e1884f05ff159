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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrMappingConflict   = errors.New("mapping conflict")
	ErrMappingValidation = errors.New("mapping validation failed")
	ErrNotFound          = errors.New("not found")
	ErrIO                = errors.New("I/O error")
	ErrSerialization     = errors.New("serialization error")
	ErrLocked            = errors.New("workspace is locked")
)

// PathError reports a path rejected by the normalizer.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

func (e *PathError) Is(target error) bool { return target == ErrInvalidPath }

// ConflictError reports two or more sources resolving to the same agent target.
type ConflictError struct {
	Category string
	Agent    string
	Target   string
	Sources  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("multiple source files map to same target %s:%s (category %s): %s",
		e.Agent, e.Target, e.Category, strings.Join(e.Sources, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrMappingConflict }

// ValidationError reports an invalid mapping field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid mapping: " + e.Message
	}
	return fmt.Sprintf("invalid mapping %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrMappingValidation }

// IOError wraps a filesystem failure with the operation and path involved.
// errors.Is matches both ErrIO and the underlying error.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// NewIOError returns nil when err is nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
