// SPDX-License-Identifier: MIT

package fetch_test

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udib-project/udib/internal/fetch"
)

// newTestKey generates a fresh signing key for tests.
func newTestKey(t *testing.T) *openpgp.Entity {
	t.Helper()

	entity, err := openpgp.NewEntity(
		"Test Signer", "", "signer@test.invalid", nil)
	require.NoError(t, err)

	return entity
}

// signDetached creates a binary detached signature over data.
func signDetached(t *testing.T, signer *openpgp.Entity, data []byte) []byte {
	t.Helper()

	var sig bytes.Buffer

	err := openpgp.DetachSign(&sig, signer, bytes.NewReader(data), nil)
	require.NoError(t, err)

	return sig.Bytes()
}

// newTestKeyring returns a keyring trusting the given entities.
func newTestKeyring(entities ...*openpgp.Entity) *fetch.Keyring {
	keyring := fetch.NewKeyring(http.DefaultClient)
	keyring.Add(entities)

	return keyring
}

func TestKeyringVerifyDetached(t *testing.T) {
	signer := newTestKey(t)
	data := []byte("checksum manifest contents\n")
	signature := signDetached(t, signer, data)

	t.Run("valid signature", func(t *testing.T) {
		keyring := newTestKeyring(signer)

		err := keyring.VerifyDetached(data, signature)
		assert.NoError(t, err)
	})

	t.Run("tampered data", func(t *testing.T) {
		keyring := newTestKeyring(signer)

		tampered := append([]byte("x"), data...)

		err := keyring.VerifyDetached(tampered, signature)
		require.ErrorIs(t, err, fetch.ErrIntegrity)
	})

	t.Run("tampered signature", func(t *testing.T) {
		keyring := newTestKeyring(signer)

		tampered := bytes.Clone(signature)
		tampered[len(tampered)/2] ^= 0xff

		err := keyring.VerifyDetached(data, tampered)
		require.ErrorIs(t, err, fetch.ErrIntegrity)
	})

	t.Run("signature by unknown key", func(t *testing.T) {
		keyring := newTestKeyring(newTestKey(t))

		err := keyring.VerifyDetached(data, signature)
		require.ErrorIs(t, err, fetch.ErrIntegrity)
	})

	t.Run("empty keyring", func(t *testing.T) {
		keyring := fetch.NewKeyring(http.DefaultClient)

		err := keyring.VerifyDetached(data, signature)
		require.ErrorIs(t, err, fetch.ErrNoKeys)
	})
}

func TestKeyringImportFromFile(t *testing.T) {
	signer := newTestKey(t)

	var public bytes.Buffer
	require.NoError(t, signer.Serialize(&public))

	t.Run("binary keyring", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keyring.gpg")
		require.NoError(t, os.WriteFile(path, public.Bytes(), 0o600))

		keyring := fetch.NewKeyring(http.DefaultClient)

		err := keyring.ImportFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, keyring.Size())

		data := []byte("signed data")
		err = keyring.VerifyDetached(data, signDetached(t, signer, data))
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		keyring := fetch.NewKeyring(http.DefaultClient)

		err := keyring.ImportFromFile(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})

	t.Run("garbage file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keyring.gpg")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

		keyring := fetch.NewKeyring(http.DefaultClient)

		err := keyring.ImportFromFile(path)
		require.Error(t, err)
	})
}
