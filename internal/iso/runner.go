// SPDX-License-Identifier: MIT

package iso

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// stderrTailLines bounds how much tool output is kept for error messages.
const stderrTailLines = 10

// Runner invokes external imaging tools as blocking subprocesses. Tool
// output is drained into debug logs, the tail of stderr is retained for
// error reporting.
type Runner struct{}

// Run executes the tool and waits for it. A non-zero exit or a missing
// binary is returned as [*ToolError].
func (r *Runner) Run(ctx context.Context, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)

	slog.Debug("Running tool", slog.String("command", cmd.String()))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ToolError{Tool: tool, Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ToolError{Tool: tool, Err: err}
	}

	var tail []string

	drainers := errgroup.Group{}
	drainers.Go(func() error {
		return drainLines(stdout, tool, nil)
	})
	drainers.Go(func() error {
		return drainLines(stderr, tool, &tail)
	})

	if err := cmd.Start(); err != nil {
		return &ToolError{Tool: tool, Err: err}
	}

	drainErr := drainers.Wait()

	if err := cmd.Wait(); err != nil {
		toolErr := &ToolError{
			Tool:   tool,
			Stderr: strings.Join(tail, "\n"),
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		} else {
			toolErr.Err = err
		}

		return toolErr
	}

	return drainErr
}

// drainLines logs every output line of the tool. If tail is given, the last
// [stderrTailLines] lines are retained in it.
func drainLines(r io.Reader, tool string, tail *[]string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		slog.Debug(line, slog.String("tool", tool))

		if tail != nil {
			*tail = append(*tail, line)
			if len(*tail) > stderrTailLines {
				*tail = (*tail)[1:]
			}
		}
	}

	return scanner.Err()
}
