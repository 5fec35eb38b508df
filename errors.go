package configlink

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInclude indicates an includeIf section without a path entry.
	ErrMalformedInclude = errors.New("malformed includeIf section")
	// ErrCreateConfigDir indicates a config directory could not be created.
	ErrCreateConfigDir = errors.New("failed to create config directory")
	// ErrWriteConfig indicates a config file could not be written.
	ErrWriteConfig = errors.New("failed to write config")
	// ErrInvalidProfileName indicates a profile name that is empty or contains a path separator.
	ErrInvalidProfileName = errors.New("invalid profile name")
)

// MalformedIncludeError reports an `[includeIf "gitdir:..."]` header that is
// not followed by a `path = ...` entry before the next section starts. Line
// is the 1-based line number of the offending header.
//
// It matches ErrMalformedInclude under errors.Is.
type MalformedIncludeError struct {
	Line int
}

func (e *MalformedIncludeError) Error() string {
	return fmt.Sprintf("malformed includeIf section at line %d: no path entry before next section", e.Line)
}

func (e *MalformedIncludeError) Unwrap() error {
	return ErrMalformedInclude
}
