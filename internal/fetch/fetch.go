// SPDX-License-Identifier: MIT

// Package fetch retrieves remote artifacts and verifies their integrity
// before they ever reach their final destination.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/udib-project/udib/internal/artifact"
)

// DefaultTimeout bounds a whole fetch operation including the image
// download. Netinst images are several hundred MB.
const DefaultTimeout = 30 * time.Minute

const maxManifestSize = 10 * 1024 * 1024

// Target is the resolved output location, either an explicit file path or a
// directory the default file name is derived into. Exactly one is set.
type Target struct {
	File string
	Dir  string
}

// Path resolves the final destination for the given file name.
func (t Target) Path(name string) string {
	if t.File != "" {
		return t.File
	}

	return filepath.Join(t.Dir, name)
}

// Fetcher downloads artifacts over HTTP and verifies them against their
// signed checksum manifest.
type Fetcher struct {
	client  *http.Client
	keyring *Keyring
}

// New creates a [Fetcher] using the given HTTP client and keyring. A nil
// client gets a default one with [DefaultTimeout].
func New(client *http.Client, keyring *Keyring) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &Fetcher{client: client, keyring: keyring}
}

// Fetch retrieves the artifact into the target and returns the final path.
//
// For verified artifacts the checksum manifest and its detached signature
// are fetched first, the signature is checked against the keyring, and the
// artifact is hashed while downloading. The download lands in a temporary
// file next to the destination and is renamed only after all checks passed,
// so no unverified file ever exists at the final path.
func (f *Fetcher) Fetch(
	ctx context.Context,
	art artifact.Artifact,
	target Target,
) (string, error) {
	if !art.Verified() {
		return f.fetchPlain(ctx, art, target)
	}

	sums, err := f.fetchSums(ctx, art)
	if err != nil {
		return "", err
	}

	name := art.FileName
	if art.FilePattern != nil {
		name, err = sums.Find(art.FilePattern)
		if err != nil {
			return "", err
		}
	}

	want, exists := sums[name]
	if !exists {
		return "", fmt.Errorf("%w: no checksum for %s in manifest",
			ErrIntegrity, name)
	}

	dest := target.Path(name)

	url := art.URL
	if url == "" {
		url = art.BaseURL + name
	}

	slog.Info("Downloading artifact",
		slog.String("url", url),
		slog.String("destination", dest))

	err = f.downloadVerified(ctx, url, dest, want)
	if err != nil {
		return "", err
	}

	return dest, nil
}

// fetchSums downloads the checksum manifest and its signature and verifies
// the signature before the manifest is trusted.
func (f *Fetcher) fetchSums(
	ctx context.Context,
	art artifact.Artifact,
) (Sums, error) {
	manifest, err := f.get(ctx, art.ChecksumURL, maxManifestSize)
	if err != nil {
		return nil, err
	}

	signature, err := f.get(ctx, art.SignatureURL, maxSignatureSize)
	if err != nil {
		return nil, err
	}

	err = f.keyring.VerifyDetached(manifest, signature)
	if err != nil {
		return nil, err
	}

	slog.Debug("Checksum manifest signature is valid",
		slog.String("url", art.ChecksumURL))

	sums, err := ParseSums(bytes.NewReader(manifest))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	return sums, nil
}

// fetchPlain downloads an artifact that has no published checksum manifest,
// keeping the temp-file-and-rename discipline.
func (f *Fetcher) fetchPlain(
	ctx context.Context,
	art artifact.Artifact,
	target Target,
) (string, error) {
	dest := target.Path(art.FileName)

	slog.Info("Downloading artifact",
		slog.String("url", art.URL),
		slog.String("destination", dest))

	err := f.downloadVerified(ctx, art.URL, dest, "")
	if err != nil {
		return "", err
	}

	return dest, nil
}

// downloadVerified streams the URL into a temporary file next to dest while
// hashing, compares the checksum if one is expected and moves the file into
// place. The temporary file is removed on every failure path.
func (f *Fetcher) downloadVerified(
	ctx context.Context,
	url, dest, wantSum string,
) (err error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		tmp.Close()

		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	hash := sha512.New()

	_, err = io.Copy(tmp, io.TeeReader(resp.Body, hash))
	if err != nil {
		return &RequestError{URL: url, Err: err}
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if wantSum != "" {
		haveSum := hex.EncodeToString(hash.Sum(nil))
		if haveSum != wantSum {
			return fmt.Errorf("%w: checksum mismatch for %s: want %s, have %s",
				ErrIntegrity, filepath.Base(dest), wantSum, haveSum)
		}

		slog.Debug("Checksum verified", slog.String("file", dest))
	}

	err = os.Rename(tmp.Name(), dest)
	if err != nil {
		return fmt.Errorf("move into place: %w", err)
	}

	return nil
}

// get downloads a small resource completely into memory.
func (f *Fetcher) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, &RequestError{URL: url, Err: err}
	}

	return data, nil
}

func (f *Fetcher) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Unwrap the url.Error wrapper, its message repeats the URL.
		var urlErr *neturl.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return nil, &RequestError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &RequestError{URL: url, Status: resp.Status}
	}

	return resp, nil
}
