// SPDX-License-Identifier: MIT

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (int, string) {
	t.Helper()

	var stderr bytes.Buffer

	code := Run(context.Background(), args, &stderr)

	return code, stderr.String()
}

func TestRunUsageErrors(t *testing.T) {
	t.Run("unknown subcommand", func(t *testing.T) {
		code, _ := runCmd(t, "frobnicate")
		assert.Equal(t, exitUsage, code)
	})

	t.Run("unknown flag", func(t *testing.T) {
		code, stderr := runCmd(t, "get", "iso", "--frobnicate")
		assert.Equal(t, exitUsage, code)
		// Flag parse errors must land on the writer given to Run, not
		// on the process stderr.
		assert.Contains(t, stderr, "frobnicate")
	})

	t.Run("exclusive output flags", func(t *testing.T) {
		code, _ := runCmd(t, "get", "iso", "-o", "a.iso", "-O", "/tmp")
		assert.Equal(t, exitUsage, code)
	})

	t.Run("get without artifact name", func(t *testing.T) {
		code, _ := runCmd(t, "get")
		assert.Equal(t, exitUsage, code)
	})

	t.Run("get with unknown artifact", func(t *testing.T) {
		code, stderr := runCmd(t, "get", "floppy")
		assert.Equal(t, exitUsage, code)
		assert.Contains(t, stderr, "unknown artifact")
	})

	t.Run("inject without files", func(t *testing.T) {
		code, _ := runCmd(t, "inject")
		assert.Equal(t, exitUsage, code)
	})

	t.Run("inject validates output before downloading", func(t *testing.T) {
		notADir := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(notADir, nil, 0o644))

		input := filepath.Join(t.TempDir(), "preseed.cfg")
		require.NoError(t, os.WriteFile(input, nil, 0o644))

		// Without --image-file a base image download would follow. A
		// bad output target must fail before any request is made.
		code, stderr := runCmd(t, "inject", "-O", notADir, input)

		assert.Equal(t, exitUsage, code)
		assert.Contains(t, stderr, "not a directory")
	})

	t.Run("existing output file", func(t *testing.T) {
		existing := filepath.Join(t.TempDir(), "out.iso")
		require.NoError(t, os.WriteFile(existing, nil, 0o644))

		code, stderr := runCmd(t, "get", "preseed-file-basic", "-o", existing)

		assert.Equal(t, exitUsage, code)
		assert.Contains(t, stderr, "output file exists")
	})
}

func TestRunIOErrors(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		code, _ := runCmd(t, "get", "iso",
			"--config", filepath.Join(t.TempDir(), "absent.yaml"),
			"-O", t.TempDir())
		assert.Equal(t, exitIO, code)
	})

	t.Run("missing input file", func(t *testing.T) {
		image := filepath.Join(t.TempDir(), "base.iso")
		require.NoError(t, os.WriteFile(image, []byte("image"), 0o644))

		code, _ := runCmd(t, "inject",
			"-i", image,
			"-O", t.TempDir(),
			filepath.Join(t.TempDir(), "absent.cfg"))
		assert.Equal(t, exitIO, code)
	})
}
