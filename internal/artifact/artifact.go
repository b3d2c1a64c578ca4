// SPDX-License-Identifier: MIT

// Package artifact defines the remote artifacts udib knows how to retrieve.
package artifact

import (
	"errors"
	"fmt"
	"regexp"
)

var ErrUnknownArtifact = errors.New("unknown artifact")

// Known artifact names, the valid values for "udib get WHAT".
const (
	NameISO          = "iso"
	NamePreseedBasic = "preseed-file-basic"
	NamePreseedFull  = "preseed-file-full"
)

const (
	debianCDMirror = "https://cdimage.debian.org/debian-cd/current/amd64/iso-cd/"

	// Fingerprint of the Debian CD signing key
	// (debian-cd@lists.debian.org) that signs the SHA512SUMS files.
	debianCDSigningKey = "DF9B9C49EAA9298432589D76DA87E80D6294BE9B"

	// Keyserver carrying the Debian CD signing key.
	DefaultKeyserver = "keyring.debian.org"
)

// netinstPattern matches the file name of the stable amd64 netinst image in
// the SHA512SUMS manifest.
var netinstPattern = regexp.MustCompile(`^debian-[0-9.]+-amd64-netinst\.iso$`)

// Artifact describes a single retrievable remote artifact.
//
// An artifact either has a fixed FileName and a direct URL, or a BaseURL
// together with a FilePattern used to discover the concrete file name from
// the artifact's checksum manifest. The latter is used for the installer
// image whose name changes with every point release.
type Artifact struct {
	// Name is the logical name used on the command line.
	Name string
	// FileName is the fixed remote file name. Empty if the name is
	// discovered via FilePattern.
	FileName string
	// URL is the direct download URL for fixed-name artifacts.
	URL string
	// BaseURL is the directory URL the discovered file name is joined to.
	BaseURL string
	// FilePattern discovers the file name in the checksum manifest.
	FilePattern *regexp.Regexp
	// ChecksumURL points to the SHA-512 checksum manifest covering the
	// artifact. Empty if no manifest is published upstream.
	ChecksumURL string
	// SignatureURL points to the detached OpenPGP signature over the
	// checksum manifest.
	SignatureURL string
	// SigningKey is the fingerprint of the key expected to have signed
	// the checksum manifest.
	SigningKey string
}

// Verified reports whether the artifact has a published checksum manifest
// and signature to verify the download against.
func (a *Artifact) Verified() bool {
	return a.ChecksumURL != ""
}

// Lookup resolves a logical artifact name to its descriptor. The returned
// value is a fresh copy, callers may adjust URLs without affecting others.
func Lookup(name string) (Artifact, error) {
	switch name {
	case NameISO:
		return Artifact{
			Name:         NameISO,
			BaseURL:      debianCDMirror,
			FilePattern:  netinstPattern,
			ChecksumURL:  debianCDMirror + "SHA512SUMS",
			SignatureURL: debianCDMirror + "SHA512SUMS.sign",
			SigningKey:   debianCDSigningKey,
		}, nil
	case NamePreseedBasic:
		return Artifact{
			Name:     NamePreseedBasic,
			FileName: "example-preseed.txt",
			URL:      "https://www.debian.org/releases/stable/example-preseed.txt",
		}, nil
	case NamePreseedFull:
		return Artifact{
			Name:     NamePreseedFull,
			FileName: "example-preseed-full.txt",
			URL:      "https://preseed.debian.net/debian-preseed/bookworm/amd64-main-full.txt",
		}, nil
	default:
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownArtifact, name)
	}
}

// Names returns all valid logical artifact names.
func Names() []string {
	return []string{NamePreseedBasic, NamePreseedFull, NameISO}
}
