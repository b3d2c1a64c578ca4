// SPDX-License-Identifier: MIT

package iso_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udib-project/udib/internal/iso"
)

func TestRunnerRun(t *testing.T) {
	runner := &iso.Runner{}

	t.Run("success", func(t *testing.T) {
		err := runner.Run(context.Background(), "sh", "-c", "exit 0")
		assert.NoError(t, err)
	})

	t.Run("exit code is captured", func(t *testing.T) {
		err := runner.Run(context.Background(), "sh", "-c", "exit 3")

		var toolErr *iso.ToolError

		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, "sh", toolErr.Tool)
		assert.Equal(t, 3, toolErr.ExitCode)
	})

	t.Run("stderr tail is retained", func(t *testing.T) {
		script := "for i in $(seq 1 15); do echo line $i >&2; done; exit 1"

		err := runner.Run(context.Background(), "sh", "-c", script)

		var toolErr *iso.ToolError

		require.ErrorAs(t, err, &toolErr)
		assert.NotContains(t, toolErr.Stderr, "line 5")
		assert.Contains(t, toolErr.Stderr, "line 6")
		assert.Contains(t, toolErr.Stderr, "line 15")
	})

	t.Run("stdout is not part of the error", func(t *testing.T) {
		script := "echo progress; echo broken >&2; exit 1"

		err := runner.Run(context.Background(), "sh", "-c", script)

		var toolErr *iso.ToolError

		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, "broken", toolErr.Stderr)
	})

	t.Run("missing binary", func(t *testing.T) {
		err := runner.Run(context.Background(), "udib-no-such-tool")

		var toolErr *iso.ToolError

		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, "udib-no-such-tool", toolErr.Tool)
		assert.Zero(t, toolErr.ExitCode)
	})

	t.Run("canceled context terminates the tool", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runner.Run(ctx, "sleep", "30")

		var toolErr *iso.ToolError

		require.ErrorAs(t, err, &toolErr)
	})
}
