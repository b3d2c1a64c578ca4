// SPDX-License-Identifier: MIT

package iso

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
)

// InitrdPath is the boot archive the installer loads early file overrides
// from, relative to the image root. The amd64 text installer reads
// install.amd/initrd.gz.
const InitrdPath = "install.amd/initrd.gz"

// SpliceInitrd injects the given files at the root of the image tree's
// initrd archive. The archive is gunzipped, its cpio stream is rewritten
// entry for entry, the files are appended under their base names and the
// archive is gzipped again in place.
//
// The installer recognizes an automated answer file in the initrd root only
// under the name "preseed.cfg"; files are injected under their own base
// names and not renamed.
func SpliceInitrd(root string, files []string) (err error) {
	archivePath := filepath.Join(root, filepath.FromSlash(InitrdPath))

	info, statErr := os.Stat(archivePath)
	if statErr != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrInitrdNotFound, archivePath)
	}

	// The ISO tree carries the archive and its directory read-only.
	// Lift the permissions for the rewrite and restore them after.
	err = os.Chmod(filepath.Dir(archivePath), 0o755)
	if err != nil {
		return fmt.Errorf("unlock initrd directory: %w", err)
	}

	err = os.Chmod(archivePath, 0o644)
	if err != nil {
		return fmt.Errorf("unlock initrd: %w", err)
	}

	defer func() {
		if err == nil {
			err = errors.Join(
				os.Chmod(archivePath, 0o444),
				os.Chmod(filepath.Dir(archivePath), 0o555),
			)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".initrd.*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}

	defer func() {
		tmp.Close()

		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	err = rewriteInitrd(tmp, archivePath, files)
	if err != nil {
		return err
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}

	err = os.Rename(tmp.Name(), archivePath)
	if err != nil {
		return fmt.Errorf("replace initrd: %w", err)
	}

	return nil
}

// rewriteInitrd writes a new gzipped cpio archive into w: all entries of the
// existing archive followed by the injected files.
func rewriteInitrd(w io.Writer, archivePath string, files []string) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open initrd: %w", err)
	}
	defer src.Close()

	gzReader, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: not gzip compressed: %w", ErrInitrdNotFound, err)
	}
	defer gzReader.Close()

	gzWriter := gzip.NewWriter(w)
	writer := cpio.NewWriter(gzWriter)

	err = copyArchive(writer, cpio.NewReader(gzReader))
	if err != nil {
		return err
	}

	for _, file := range files {
		err = appendFile(writer, file)
		if err != nil {
			return err
		}

		slog.Debug("Injected file into initrd",
			slog.String("file", file),
			slog.String("name", filepath.Base(file)))
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	err = gzWriter.Close()
	if err != nil {
		return fmt.Errorf("compress archive: %w", err)
	}

	return nil
}

// copyArchive copies every entry of the source archive unchanged. Appended
// entries with the same name win during initramfs unpacking, so existing
// entries never have to be dropped.
func copyArchive(w *cpio.Writer, r *cpio.Reader) error {
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: read archive: %w", ErrInitrdNotFound, err)
		}

		err = w.WriteHeader(hdr)
		if err != nil {
			return fmt.Errorf("write header for %s: %w", hdr.Name, err)
		}

		_, err = io.Copy(w, r)
		if err != nil {
			return fmt.Errorf("copy entry %s: %w", hdr.Name, err)
		}
	}
}

// appendFile adds a regular file at the archive root under its base name.
func appendFile(w *cpio.Writer, path string) error {
	source, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("read info: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}

	hdr, err := cpio.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("create header: %w", err)
	}

	hdr.Name = filepath.Base(path)
	hdr.Mode = cpio.TypeReg | 0o644

	err = w.WriteHeader(hdr)
	if err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	_, err = io.Copy(w, source)
	if err != nil {
		return fmt.Errorf("write body for %s: %w", hdr.Name, err)
	}

	return nil
}
