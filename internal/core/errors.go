package core

import (
	"errors"
	"fmt"

	"github.com/git-pkgs/ghsource/client"
)

// ErrNotFound is returned when a repository or version is not found.
var ErrNotFound = client.ErrNotFound

// ErrTooLarge is returned when an archive exceeds its size ceiling.
var ErrTooLarge = errors.New("response too large")

type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// ProtocolError reports a remote response that does not have the expected
// shape, or a release that advertises no usable archive.
type ProtocolError struct {
	Repository string
	Version    string
	Msg        string
	Err        error
}

func (e *ProtocolError) Error() string {
	where := e.Repository
	if e.Version != "" {
		where += "@" + e.Version
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransferError reports a non-success status or an oversized response.
type TransferError struct {
	URL        string
	StatusCode int
	Msg        string
	Err        error
}

func (e *TransferError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer %s: status %d: %s", e.URL, e.StatusCode, msg)
	}
	return fmt.Sprintf("transfer %s: %s", e.URL, msg)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// IOError reports a filesystem failure while staging or unpacking.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// PlatformUnsupportedError is returned when a feature relies on tooling the
// current platform does not provide.
type PlatformUnsupportedError struct {
	Platform string
	Feature  string
	Hint     string
}

func (e *PlatformUnsupportedError) Error() string {
	msg := fmt.Sprintf("%s is not supported on %s", e.Feature, e.Platform)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}
