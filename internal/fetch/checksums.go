// SPDX-License-Identifier: MIT

package fetch

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Sums is a parsed SHA512SUMS manifest, mapping file names to lowercase hex
// checksums.
type Sums map[string]string

// ParseSums reads a checksum manifest in the coreutils sha512sum format:
// one entry per line, hex digest and file name separated by two spaces (or
// a space and an asterisk for binary mode). Unparsable lines are rejected.
func ParseSums(r io.Reader) (Sums, error) {
	sums := make(Sums)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		digest, name, found := strings.Cut(line, " ")
		if !found || len(digest) != 128 {
			return nil, fmt.Errorf("malformed checksum line: %q", line)
		}

		name = strings.TrimPrefix(name, " ")
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimPrefix(name, "./")
		if name == "" {
			return nil, fmt.Errorf("malformed checksum line: %q", line)
		}

		sums[name] = strings.ToLower(digest)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return sums, nil
}

// Find returns the single manifest entry matching the pattern. Zero or
// multiple matches fail, so a manifest listing several images of the same
// flavor is never resolved silently.
func (s Sums) Find(pattern *regexp.Regexp) (string, error) {
	var matches []string

	for name := range s {
		if pattern.MatchString(name) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: no manifest entry matches %s",
			ErrIntegrity, pattern)
	default:
		return "", fmt.Errorf("%w: %d manifest entries match %s",
			ErrIntegrity, len(matches), pattern)
	}
}
