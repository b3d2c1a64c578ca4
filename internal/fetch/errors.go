// SPDX-License-Identifier: MIT

package fetch

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks any failed integrity verification: an invalid manifest
// signature, a missing manifest entry, or a checksum mismatch. It is always
// distinguishable from network failures.
var ErrIntegrity = errors.New("integrity verification failed")

// RequestError wraps a failed HTTP request, either a transport error or an
// unexpected response status.
type RequestError struct {
	URL    string
	Status string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("request %s: unexpected status %s", e.URL, e.Status)
	}

	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *RequestError) Is(other error) bool {
	_, ok := other.(*RequestError)
	return ok
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
