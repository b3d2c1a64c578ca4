// SPDX-License-Identifier: MIT

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var ErrNoKeys = errors.New("no keys in keyring")

// Signatures over checksum manifests are small, keys files can be larger.
const (
	maxSignatureSize = 10 * 1024
	maxKeySize       = 10 * 1024 * 1024
)

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE-----"

// Keyring holds the public keys trusted to sign checksum manifests.
type Keyring struct {
	entities openpgp.EntityList
	client   *http.Client
}

// NewKeyring creates an empty keyring that imports keys with the given HTTP
// client.
func NewKeyring(client *http.Client) *Keyring {
	return &Keyring{client: client}
}

// Size returns the number of keys in the keyring.
func (k *Keyring) Size() int {
	return len(k.entities)
}

// Add adds already parsed entities to the keyring.
func (k *Keyring) Add(entities openpgp.EntityList) {
	k.entities = append(k.entities, entities...)
}

// ImportFromFile imports armored or binary keys from a local file.
func (k *Keyring) ImportFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parse key file %s: %w", path, err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("%w: %s", ErrNoKeys, path)
	}

	k.entities = append(k.entities, entities...)

	return nil
}

// ImportFromKeyserver imports the key with the given fingerprint, trying the
// preferred keyserver first and public fallbacks after that. Keys whose
// fingerprint does not match the requested one are rejected.
func (k *Keyring) ImportFromKeyserver(
	ctx context.Context,
	fingerprint, keyserver string,
) error {
	keyservers := []string{
		keyserver,
		"keys.openpgp.org",
		"keyserver.ubuntu.com",
	}

	var lastErr error

	for _, server := range keyservers {
		urls := []string{
			fmt.Sprintf("https://%s/vks/v1/by-fingerprint/%s", server, fingerprint),
			fmt.Sprintf("https://%s/pks/lookup?op=get&search=0x%s", server, fingerprint),
		}

		for _, url := range urls {
			entities, err := k.fetchKey(ctx, url)
			if err != nil {
				lastErr = err
				continue
			}

			matched := matchFingerprint(entities, fingerprint)
			if len(matched) == 0 {
				lastErr = fmt.Errorf("no key matching fingerprint %s at %s",
					fingerprint, server)

				continue
			}

			k.entities = append(k.entities, matched...)

			return nil
		}
	}

	return fmt.Errorf("import key %s: %w", fingerprint, lastErr)
}

func (k *Keyring) fetchKey(
	ctx context.Context,
	url string,
) (openpgp.EntityList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, &RequestError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{URL: url, Status: resp.Status}
	}

	entities, err := openpgp.ReadArmoredKeyRing(
		io.LimitReader(resp.Body, maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("parse key from %s: %w", url, err)
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeys, url)
	}

	return entities, nil
}

func matchFingerprint(
	entities openpgp.EntityList,
	fingerprint string,
) openpgp.EntityList {
	var matched openpgp.EntityList

	want := strings.ToUpper(fingerprint)
	for _, entity := range entities {
		have := fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
		if have == want || strings.HasSuffix(have, want) {
			matched = append(matched, entity)
		}
	}

	return matched
}

// VerifyDetached verifies a detached signature over the given data with the
// keyring. Armored and binary signatures are both accepted. Any verification
// failure is an integrity error.
func (k *Keyring) VerifyDetached(data, signature []byte) error {
	if len(k.entities) == 0 {
		return ErrNoKeys
	}

	check := openpgp.CheckDetachedSignature
	if bytes.HasPrefix(signature, []byte(armoredSignaturePrefix)) {
		check = openpgp.CheckArmoredDetachedSignature
	}

	_, err := check(
		k.entities, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		return fmt.Errorf("%w: bad signature: %w", ErrIntegrity, err)
	}

	return nil
}
