// SPDX-License-Identifier: MIT

package cmd

import (
	"errors"
	"io/fs"

	"github.com/udib-project/udib/internal/artifact"
	"github.com/udib-project/udib/internal/fetch"
	"github.com/udib-project/udib/internal/iso"
)

// Exit codes by failure category. Every failure is terminal for the
// invocation, the category tells callers what went wrong.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitNetwork   = 3
	exitIntegrity = 4
	exitTool      = 5
	exitIO        = 6
)

// usageError marks bad command line input detected before any work begins.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Is(other error) bool {
	_, ok := other.(*usageError)
	return ok
}

func (e *usageError) Unwrap() error {
	return e.err
}

// categorize maps an error to its failure category label and exit code.
func categorize(err error) (string, int) {
	switch {
	case err == nil:
		return "", exitOK
	case errors.Is(err, &usageError{}),
		errors.Is(err, artifact.ErrUnknownArtifact):
		return "usage error", exitUsage
	case errors.Is(err, fetch.ErrIntegrity):
		return "integrity error", exitIntegrity
	case errors.Is(err, &fetch.RequestError{}):
		return "network error", exitNetwork
	case errors.Is(err, &iso.ExtractError{}),
		errors.Is(err, &iso.RepackError{}),
		errors.Is(err, &iso.ToolError{}),
		errors.Is(err, iso.ErrInitrdNotFound),
		errors.Is(err, iso.ErrInvalidVolumeID):
		return "tool error", exitTool
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrExist):
		return "io error", exitIO
	default:
		return "error", exitFailure
	}
}
