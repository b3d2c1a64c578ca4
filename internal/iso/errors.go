// SPDX-License-Identifier: MIT

package iso

import (
	"errors"
	"fmt"
)

var (
	// ErrInitrdNotFound is returned when the extracted image tree does
	// not contain the expected initrd archive.
	ErrInitrdNotFound = errors.New("initrd archive not found in image tree")

	// ErrInvalidVolumeID is returned for volume IDs with characters the
	// image authoring tool does not accept.
	ErrInvalidVolumeID = errors.New("invalid character in volume ID")
)

// ToolError wraps a failed external tool invocation.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}

	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

func (e *ToolError) Is(other error) bool {
	_, ok := other.(*ToolError)
	return ok
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExtractError wraps failures while unpacking a disk image.
type ExtractError struct {
	Image string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Image, e.Err)
}

func (e *ExtractError) Is(other error) bool {
	_, ok := other.(*ExtractError)
	return ok
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// RepackError wraps failures while authoring the output disk image.
type RepackError struct {
	Tree string
	Err  error
}

func (e *RepackError) Error() string {
	return fmt.Sprintf("repack %s: %v", e.Tree, e.Err)
}

func (e *RepackError) Is(other error) bool {
	_, ok := other.(*RepackError)
	return ok
}

func (e *RepackError) Unwrap() error {
	return e.Err
}
