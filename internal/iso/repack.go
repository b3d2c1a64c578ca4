// SPDX-License-Identifier: MIT

package iso

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// DefaultVolumeID is the filesystem label the repacked image mounts under
// when none is given.
const DefaultVolumeID = "Debian"

// Volume IDs may carry alphanumerics, space, period, underscore and hyphen.
var volumeIDInvalidChar = regexp.MustCompile(`[^\w .-]`)

// RepackSpec describes one image authoring run.
type RepackSpec struct {
	// Tree is the root of the modified image filesystem tree.
	Tree string
	// MBR is the file holding the source image's MBR region.
	MBR string
	// Output is the path the new image is written to.
	Output string
	// VolumeID is the filesystem label of the new image.
	VolumeID string
}

// Repack authors a new bootable image from the tree, preserving the boot
// configuration of the source image: the replayed isohybrid MBR and the
// isolinux El Torito entry keep BIOS boot working, the alternate El Torito
// entry pointing at the GRUB EFI image keeps UEFI boot working.
//
// The image is written to a temporary path and renamed on success, so a
// failed run leaves nothing at the output path.
func Repack(ctx context.Context, runner *Runner, spec RepackSpec) (err error) {
	if spec.VolumeID == "" {
		spec.VolumeID = DefaultVolumeID
	}

	if match := volumeIDInvalidChar.FindString(spec.VolumeID); match != "" {
		return fmt.Errorf("%w: %q", ErrInvalidVolumeID, match)
	}

	tmp := spec.Output + ".partial"

	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	err = runner.Run(ctx, xorrisoBin,
		"-as", "mkisofs",
		"-r", "-V", spec.VolumeID,
		"-o", tmp,
		"-J", "-joliet-long", "-cache-inodes",
		"-isohybrid-mbr", spec.MBR,
		"-b", "isolinux/isolinux.bin",
		"-c", "isolinux/boot.cat",
		"-boot-load-size", "4", "-boot-info-table", "-no-emul-boot",
		"-eltorito-alt-boot",
		"-e", "boot/grub/efi.img", "-no-emul-boot",
		"-isohybrid-gpt-basdat", "-isohybrid-apm-hfsplus",
		spec.Tree,
	)
	if err != nil {
		return &RepackError{Tree: spec.Tree, Err: err}
	}

	err = os.Rename(tmp, spec.Output)
	if err != nil {
		return &RepackError{
			Tree: spec.Tree,
			Err:  fmt.Errorf("move image into place: %w", err),
		}
	}

	return nil
}

// DefaultOutputName derives the output image name from the source image
// name: the stem gets a "-preseeded" suffix before the extension.
func DefaultOutputName(image string) string {
	base := filepath.Base(image)
	ext := filepath.Ext(base)

	return base[:len(base)-len(ext)] + "-preseeded" + ext
}
