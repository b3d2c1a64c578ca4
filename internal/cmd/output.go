// SPDX-License-Identifier: MIT

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/udib-project/udib/internal/fetch"
	"github.com/udib-project/udib/internal/iso"
)

// resolveTarget turns the output flags into a fetch target. An explicit
// output file must not exist yet, an output directory must exist and be
// writable. Without flags the current directory is used.
func (o *options) resolveTarget() (fetch.Target, error) {
	if o.outputFile != "" {
		path, err := absOutputFile(o.outputFile)
		if err != nil {
			return fetch.Target{}, err
		}

		return fetch.Target{File: path}, nil
	}

	dir := o.outputDir
	if dir == "" {
		var err error

		dir, err = os.Getwd()
		if err != nil {
			return fetch.Target{}, fmt.Errorf("current directory: %w", err)
		}
	}

	err := checkWritableDir(dir)
	if err != nil {
		return fetch.Target{}, err
	}

	return fetch.Target{Dir: dir}, nil
}

// resolveInjectOutput resolves the final image path for inject from an
// already validated target, deriving the default name from the source image.
func resolveInjectOutput(target fetch.Target, image string) (string, error) {
	path := target.Path(iso.DefaultOutputName(image))

	if target.File == "" {
		// Derived paths get the same no-overwrite check as explicit
		// ones.
		_, err := os.Lstat(path)
		if err == nil {
			return "", &usageError{
				err: fmt.Errorf("output file exists: %s", path),
			}
		}
	}

	return path, nil
}

func absOutputFile(path string) (string, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve output file: %w", err)
	}

	_, err = os.Lstat(path)
	if err == nil {
		return "", &usageError{
			err: fmt.Errorf("output file exists: %s", path),
		}
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	err = checkWritableDir(filepath.Dir(path))
	if err != nil {
		return "", err
	}

	return path, nil
}

// checkWritableDir fails early when the output location cannot be written,
// before any network or tool invocation happens.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return &usageError{err: fmt.Errorf("not a directory: %s", dir)}
	}

	err = unix.Access(dir, unix.W_OK)
	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, fs.ErrPermission)
	}

	return nil
}
