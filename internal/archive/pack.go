package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrNothingToPack is returned when the source directory holds no regular files.
var ErrNothingToPack = errors.New("no files to pack")

// Pack writes every regular file and symlink below srcDir into w as a tar
// stream in the given format, placing entries under <variant>/.
// It returns the number of regular files written.
func Pack(w io.Writer, srcDir, variant string, format Format) (files int, err error) {
	var (
		stream io.Writer
		closer io.Closer
	)

	switch format {
	case FormatGzip:
		gz := kgzip.NewWriter(w)
		stream, closer = gz, gz
	case FormatZstd:
		zw, zErr := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if zErr != nil {
			return 0, fmt.Errorf("open zstd stream: %w", zErr)
		}

		stream, closer = zw, zw
	case FormatTar:
		stream = w
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	tw := tar.NewWriter(stream)

	defer func() {
		err = errors.Join(err, tw.Close())
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
	}()

	prefix := strings.Trim(variant, "/")
	if prefix != "" {
		if err = tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     prefix + "/",
			Mode:     int64(dirMode),
		}); err != nil {
			return 0, fmt.Errorf("write variant directory: %w", err)
		}
	}

	root := filepath.Clean(srcDir)

	err = filepath.WalkDir(root, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if current == root {
			return nil
		}

		added, addErr := addEntry(tw, root, current, entry, prefix)
		if addErr != nil {
			return addErr
		}

		if added {
			files++
		}

		return nil
	})
	if err != nil {
		return files, fmt.Errorf("pack %s: %w", srcDir, err)
	}

	if files == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNothingToPack, srcDir)
	}

	return files, nil
}

// PackFile writes an archive of srcDir to outPath, choosing the format from
// the file name.
func PackFile(srcDir, outPath, variant string) (files int, err error) {
	format, err := FormatFromName(outPath)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		err = errors.Join(err, out.Close())
	}()

	return Pack(out, srcDir, variant, format)
}

// addEntry writes one walked entry. The boolean reports a regular file.
func addEntry(tw *tar.Writer, root, current string, entry fs.DirEntry, prefix string) (bool, error) {
	info, err := entry.Info()
	if err != nil {
		return false, err
	}

	var link string

	switch {
	case info.Mode().IsRegular(), info.IsDir():
	case info.Mode()&fs.ModeSymlink != 0:
		if link, err = os.Readlink(current); err != nil {
			return false, err
		}
	default:
		// Sockets and devices have no place in a library bundle.
		return false, nil
	}

	hdr, err := tar.FileInfoHeader(info, filepath.ToSlash(link))
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(root, current)
	if err != nil {
		return false, err
	}

	hdr.Name = path.Join(prefix, filepath.ToSlash(rel))
	if info.IsDir() {
		hdr.Name += "/"
	}

	// Owner names of the packaging host mean nothing on the device.
	hdr.Uname, hdr.Gname = "", ""
	hdr.Uid, hdr.Gid = 0, 0

	if err = tw.WriteHeader(hdr); err != nil {
		return false, err
	}

	if !info.Mode().IsRegular() {
		return false, nil
	}

	f, err := os.Open(current)
	if err != nil {
		return false, err
	}

	_, err = io.Copy(tw, f)

	return true, errors.Join(err, f.Close())
}
