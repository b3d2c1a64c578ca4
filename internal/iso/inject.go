// SPDX-License-Identifier: MIT

// Package iso modifies Debian installer images: it extracts an image's
// filesystem tree, splices files into the initrd boot archive, regenerates
// the image's integrity manifest and repacks a bootable image. Heavy lifting
// on the ISO 9660 side is delegated to xorriso, the boot archive is
// rewritten natively.
package iso

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// InjectSpec describes one injection run.
type InjectSpec struct {
	// Image is the source installer image. It is never modified.
	Image string
	// Files are the local files to place in the initrd root. Later
	// entries win on base name collisions.
	Files []string
	// Output is the path the new image is written to.
	Output string
	// VolumeID is the filesystem label of the new image.
	VolumeID string
}

// Inject builds a new bootable image from the source image with the given
// files spliced into its initrd: extract tree, extract MBR, splice, rewrite
// integrity manifest, repack. All scratch space lives in one scoped
// temporary workspace that is removed on every path.
func Inject(ctx context.Context, runner *Runner, spec InjectSpec) (err error) {
	files, err := resolveInputFiles(spec.Files)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "udib-inject-*")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	defer func() {
		removeErr := removeTree(workDir)
		if removeErr != nil {
			slog.Error("Failed to remove workspace",
				slog.String("path", workDir),
				slog.Any("error", removeErr))
		}
	}()

	treeDir := filepath.Join(workDir, "tree")

	err = os.Mkdir(treeDir, 0o755)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	slog.Info("Extracting image tree", slog.String("image", spec.Image))

	err = ExtractTree(ctx, runner, spec.Image, treeDir)
	if err != nil {
		return err
	}

	mbrPath := filepath.Join(workDir, "mbr.bin")

	err = ExtractMBR(spec.Image, mbrPath)
	if err != nil {
		return err
	}

	slog.Info("Splicing files into initrd",
		slog.Int("count", len(files)))

	err = SpliceInitrd(treeDir, files)
	if err != nil {
		return err
	}

	slog.Info("Regenerating integrity manifest")

	err = RewriteMD5Sums(treeDir)
	if err != nil {
		return err
	}

	slog.Info("Repacking image", slog.String("output", spec.Output))

	return Repack(ctx, runner, RepackSpec{
		Tree:     treeDir,
		MBR:      mbrPath,
		Output:   spec.Output,
		VolumeID: spec.VolumeID,
	})
}

// resolveInputFiles validates that every input file is readable and resolves
// base name collisions with last-write-wins, keeping the input order of the
// surviving entries.
func resolveInputFiles(files []string) ([]string, error) {
	winner := make(map[string]int, len(files))

	for idx, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("input file: %w", err)
		}

		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("input file %s: not a regular file", file)
		}

		name := filepath.Base(file)
		if prev, exists := winner[name]; exists {
			slog.Warn("Duplicate file name, keeping the later file",
				slog.String("name", name),
				slog.String("dropped", files[prev]),
				slog.String("kept", file))
		}

		winner[name] = idx
	}

	resolved := make([]string, 0, len(winner))

	for idx, file := range files {
		if winner[filepath.Base(file)] == idx {
			resolved = append(resolved, file)
		}
	}

	return resolved, nil
}
