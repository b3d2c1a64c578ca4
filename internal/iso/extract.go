// SPDX-License-Identifier: MIT

package iso

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const xorrisoBin = "xorriso"

// mbrSize is the isohybrid MBR region at the start of a BIOS-bootable image
// that must be replayed into the repacked image.
const mbrSize = 432

// ExtractTree unpacks the image's complete filesystem tree into dir. The
// image itself is never modified.
//
// Directories on installer images are read-only, so xorriso is told to lift
// directory permissions during extraction.
func ExtractTree(ctx context.Context, runner *Runner, image, dir string) error {
	err := runner.Run(ctx, xorrisoBin,
		"-osirrox", "on:auto_chmod_on",
		"-indev", image,
		"-extract", "/", dir,
	)
	if err != nil {
		return &ExtractError{Image: image, Err: err}
	}

	return nil
}

// ExtractMBR copies the image's MBR region into dest. The repack step embeds
// it so the new image boots on the same BIOS firmware path as the source.
func ExtractMBR(image, dest string) error {
	src, err := os.Open(image)
	if err != nil {
		return &ExtractError{Image: image, Err: err}
	}
	defer src.Close()

	mbr := make([]byte, mbrSize)

	_, err = io.ReadFull(src, mbr)
	if err != nil {
		return &ExtractError{
			Image: image,
			Err:   fmt.Errorf("read MBR region: %w", err),
		}
	}

	err = os.WriteFile(dest, mbr, 0o644)
	if err != nil {
		return &ExtractError{Image: image, Err: err}
	}

	return nil
}

// removeTree removes an extracted image tree. Trees extracted from installer
// images contain read-only directories that plain RemoveAll cannot descend
// into, so write permission is restored first.
func removeTree(root string) error {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			_ = os.Chmod(path, 0o755)
		}

		return nil
	})

	return os.RemoveAll(root)
}
