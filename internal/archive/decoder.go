package archive

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	// defaultMaxFileSize caps a single extracted file (256 MiB).
	defaultMaxFileSize int64 = 256 << 20

	// defaultMaxTotalSize caps the whole extraction (1 GiB).
	defaultMaxTotalSize int64 = 1 << 30

	dirMode         os.FileMode = 0o755
	defaultFileMode os.FileMode = 0o644
)

var (
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrUnsupportedEntry is returned for devices, fifos and hard links.
	ErrUnsupportedEntry = errors.New("unsupported archive entry")
	// ErrTooLarge is returned when a file or the whole extraction exceeds its cap.
	ErrTooLarge = errors.New("archive content too large")
	// ErrVariantNotFound is returned when no regular file matched the variant.
	ErrVariantNotFound = errors.New("no files for variant in archive")
)

// TarDecoder extracts a variant of a bundle archive into a directory.
type TarDecoder struct {
	maxFileSize  int64
	maxTotalSize int64
}

// Option configures a TarDecoder.
type Option func(*TarDecoder)

// WithMaxFileSize caps a single extracted file. Non-positive values keep the default.
func WithMaxFileSize(n int64) Option {
	return func(d *TarDecoder) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// WithMaxTotalSize caps the sum of extracted files. Non-positive values keep the default.
func WithMaxTotalSize(n int64) Option {
	return func(d *TarDecoder) {
		if n > 0 {
			d.maxTotalSize = n
		}
	}
}

// NewTarDecoder returns a decoder with the given limits.
func NewTarDecoder(opts ...Option) *TarDecoder {
	d := &TarDecoder{
		maxFileSize:  defaultMaxFileSize,
		maxTotalSize: defaultMaxTotalSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Decode extracts the entries under <variant>/ of the archive at archivePath
// into destDir, stripping the variant prefix. An empty variant extracts every
// entry as is. The compression is detected from the archive contents.
func (d *TarDecoder) Decode(archivePath, destDir, variant string) (err error) {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	br := bufio.NewReader(f)

	format, err := sniffFormat(br)
	if err != nil {
		return err
	}

	var stream io.Reader

	switch format {
	case FormatGzip:
		gz, gzErr := kgzip.NewReader(br)
		if gzErr != nil {
			return fmt.Errorf("open gzip stream: %w", gzErr)
		}

		defer func() {
			err = errors.Join(err, gz.Close())
		}()

		stream = gz
	case FormatZstd:
		zr, zErr := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if zErr != nil {
			return fmt.Errorf("open zstd stream: %w", zErr)
		}
		defer zr.Close()

		stream = zr
	default:
		stream = br
	}

	return d.extract(tar.NewReader(stream), destDir, strings.Trim(variant, "/"))
}

func (d *TarDecoder) extract(tr *tar.Reader, destDir, variant string) error {
	var (
		files int
		total int64
	)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name, err := cleanEntryName(hdr.Name)
		if err != nil {
			return err
		}

		rel, ok := stripVariant(name, variant)
		if !ok {
			continue
		}

		target, err := safeJoin(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, dirMode); err != nil {
				return fmt.Errorf("create directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			if hdr.Size > d.maxFileSize {
				return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, rel, hdr.Size, d.maxFileSize)
			}

			total += hdr.Size
			if total > d.maxTotalSize {
				return fmt.Errorf("%w: total exceeds %d bytes", ErrTooLarge, d.maxTotalSize)
			}

			if err = writeEntry(target, tr, hdr.Size, entryMode(hdr)); err != nil {
				return fmt.Errorf("write %s: %w", rel, err)
			}

			files++
		case tar.TypeSymlink:
			if err = writeSymlink(destDir, target, hdr.Linkname); err != nil {
				return fmt.Errorf("link %s: %w", rel, err)
			}
		case tar.TypeXGlobalHeader:
			continue
		default:
			return fmt.Errorf("%w: %s (type %q)", ErrUnsupportedEntry, name, hdr.Typeflag)
		}
	}

	if files == 0 {
		if variant == "" {
			return fmt.Errorf("%w: archive is empty", ErrVariantNotFound)
		}

		return fmt.Errorf("%w: %s", ErrVariantNotFound, variant)
	}

	return nil
}

// cleanEntryName normalizes a tar entry name and rejects absolute or escaping names.
func cleanEntryName(name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
		}
	}

	return cleaned, nil
}

// stripVariant returns the entry path below the variant directory.
// The variant directory itself and entries of other variants are skipped.
func stripVariant(name, variant string) (string, bool) {
	if name == "." {
		return "", false
	}

	if variant == "" {
		return name, true
	}

	rel, found := strings.CutPrefix(name, variant+"/")
	if !found || rel == "" {
		return "", false
	}

	return rel, true
}

// safeJoin joins rel onto dir and checks the result stays inside dir.
func safeJoin(dir, rel string) (string, error) {
	base := filepath.Clean(dir)
	target := filepath.Join(base, filepath.FromSlash(rel))

	if target != base && !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}

	return target, nil
}

func entryMode(hdr *tar.Header) os.FileMode {
	mode := hdr.FileInfo().Mode().Perm()
	if mode == 0 {
		return defaultFileMode
	}

	// The deployed libraries must stay readable by their owner.
	return mode | 0o400
}

func writeEntry(target string, r io.Reader, size int64, mode os.FileMode) (err error) {
	if err = os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return err
	}

	// A leftover directory or link of the same name is replaced.
	if info, statErr := os.Lstat(target); statErr == nil && !info.Mode().IsRegular() {
		if err = os.RemoveAll(target); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	n, err := io.Copy(f, io.LimitReader(r, size))
	if err != nil {
		return err
	}

	if n != size {
		return fmt.Errorf("short entry: %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
	}

	return nil
}

// writeSymlink creates a link that points at or below its own directory.
// Links climbing with ".." are rejected so that later entries written through
// a link cannot leave destDir.
func writeSymlink(destDir, target, linkname string) error {
	if _, err := cleanEntryName(linkname); err != nil || linkname == "" {
		return fmt.Errorf("%w: link to %q", ErrUnsafePath, linkname)
	}

	if _, err := safeJoin(destDir, linkname); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return err
	}

	if err := os.RemoveAll(target); err != nil {
		return err
	}

	return os.Symlink(filepath.FromSlash(linkname), target)
}
