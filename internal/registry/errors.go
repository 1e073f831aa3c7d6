package registry

import (
	"errors"
	"fmt"
)

// ErrNoCurrent is returned by Current before any version was activated.
var ErrNoCurrent = errors.New("no current version")

// ErrInvalidAppID is returned by Manager.Get for an appID that is not a
// plain name.
var ErrInvalidAppID = errors.New("invalid app id")

// ConfigError reports a missing required option.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("registry must define a `%s` property", e.Field)
}

type DuplicateVersionError struct {
	Key string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("Version for key [%s] has already been uploaded", e.Key)
}

type VersionNotFoundError struct {
	Key string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("Version for key [%s] does not exist", e.Key)
}

// RevisionUnavailableError wraps a failure of the revision source.
type RevisionUnavailableError struct {
	Err error
}

func (e *RevisionUnavailableError) Error() string {
	return fmt.Sprintf("revision unavailable: %v", e.Err)
}

func (e *RevisionUnavailableError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
