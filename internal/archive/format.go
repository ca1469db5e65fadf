package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Format is the compression wrapped around the tar stream.
type Format int

const (
	// FormatTar is an uncompressed tar stream.
	FormatTar Format = iota
	// FormatGzip is a gzip-compressed tar stream.
	FormatGzip
	// FormatZstd is a zstd-compressed tar stream.
	FormatZstd
)

// ErrUnsupportedFormat is returned for archives that are not (compressed) tar streams.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	// ustar magic sits at offset 257 of the first header block.
	tarMagicOffset = 257
	tarMagic       = []byte("ustar")
)

// String returns the usual file extension of the format.
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "tar.gz"
	case FormatZstd:
		return "tar.zst"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FormatFromName picks the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatZstd, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatGzip, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// sniffFormat inspects the first bytes of r without consuming them.
func sniffFormat(r *bufio.Reader) (Format, error) {
	head, err := r.Peek(tarMagicOffset + len(tarMagic))
	if len(head) >= len(zstdMagic) && bytes.Equal(head[:len(zstdMagic)], zstdMagic) {
		return FormatZstd, nil
	}

	if len(head) >= len(gzipMagic) && bytes.Equal(head[:len(gzipMagic)], gzipMagic) {
		return FormatGzip, nil
	}

	if len(head) == tarMagicOffset+len(tarMagic) && bytes.Equal(head[tarMagicOffset:], tarMagic) {
		return FormatTar, nil
	}

	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	return 0, ErrUnsupportedFormat
}
