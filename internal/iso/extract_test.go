// SPDX-License-Identifier: MIT

package iso_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udib-project/udib/internal/iso"
)

func TestExtractMBR(t *testing.T) {
	t.Run("copies the MBR region", func(t *testing.T) {
		image := filepath.Join(t.TempDir(), "source.iso")
		content := bytes.Repeat([]byte{0xaa, 0x55}, 4096)
		require.NoError(t, os.WriteFile(image, content, 0o644))

		dest := filepath.Join(t.TempDir(), "mbr.bin")
		require.NoError(t, iso.ExtractMBR(image, dest))

		mbr, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, content[:432], mbr)
	})

	t.Run("image too short", func(t *testing.T) {
		image := filepath.Join(t.TempDir(), "source.iso")
		require.NoError(t, os.WriteFile(image, []byte("tiny"), 0o644))

		err := iso.ExtractMBR(image, filepath.Join(t.TempDir(), "mbr.bin"))

		var extractErr *iso.ExtractError

		require.ErrorAs(t, err, &extractErr)
		assert.Equal(t, image, extractErr.Image)
	})

	t.Run("missing image", func(t *testing.T) {
		err := iso.ExtractMBR(
			filepath.Join(t.TempDir(), "absent.iso"),
			filepath.Join(t.TempDir(), "mbr.bin"),
		)

		var extractErr *iso.ExtractError

		require.ErrorAs(t, err, &extractErr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
