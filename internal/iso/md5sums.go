// SPDX-License-Identifier: MIT

package iso

import (
	"bufio"
	"crypto/md5" //nolint:gosec // The installer's manifest format is MD5.
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// md5sumFile is the integrity manifest the installer validates the image
// contents against before trusting them.
const md5sumFile = "md5sum.txt"

// RewriteMD5Sums regenerates the image tree's md5sum.txt after the tree was
// modified. Without this the installer's own integrity check rejects the
// image. Each regular file under the tree gets one line in the installer's
// expected format:
//
//	<md5-hex><two spaces><path relative to the tree root>
//
// Symlinks and the manifest itself are excluded. A tree without a manifest
// is passed through unchanged.
func RewriteMD5Sums(root string) (err error) {
	manifestPath := filepath.Join(root, md5sumFile)

	_, err = os.Lstat(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Image tree has no integrity manifest, skipping",
			slog.String("root", root))

		return nil
	}

	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}

	err = os.Chmod(root, 0o755)
	if err != nil {
		return fmt.Errorf("unlock tree root: %w", err)
	}

	err = os.Remove(manifestPath)
	if err != nil {
		return fmt.Errorf("remove stale manifest: %w", err)
	}

	defer func() {
		if err == nil {
			err = errors.Join(
				os.Chmod(manifestPath, 0o444),
				os.Chmod(root, 0o555),
			)
		}
	}()

	manifest, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer manifest.Close()

	out := bufio.NewWriter(manifest)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() || path == manifestPath {
			return nil
		}

		sum, err := md5File(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "%s  %s\n", sum, filepath.ToSlash(rel))

		return err
	})
	if err != nil {
		return fmt.Errorf("rewrite manifest: %w", err)
	}

	err = out.Flush()
	if err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}

	err = manifest.Close()
	if err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}

	return nil
}

func md5File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New() //nolint:gosec

	_, err = io.Copy(hash, file)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
