package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files (name -> content) below dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// writeArchive stores raw archive bytes in a temp file and returns its path.
func writeArchive(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bundle.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// rawTar builds an uncompressed tar from headers; regular entries get body as content.
func rawTar(t *testing.T, headers []*tar.Header, body string) []byte {
	t.Helper()

	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)
	for _, hdr := range headers {
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(body))
		}

		require.NoError(t, tw.WriteHeader(hdr))

		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())

	return buf.Bytes()
}

// TestPackDecodeRoundtrip packs a directory in every format and extracts it back.
func TestPackDecodeRoundtrip(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatTar, FormatGzip, FormatZstd} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			src := t.TempDir()
			writeTree(t, src, map[string]string{
				"a.so":          "alpha",
				"b.so":          "bravo",
				"plugins/c.so":  "charlie",
				"plugins/d.cfg": "delta",
			})

			var buf bytes.Buffer

			files, err := Pack(&buf, src, "arm", format)
			require.NoError(t, err)
			require.Equal(t, 4, files)

			dest := t.TempDir()
			require.NoError(t, NewTarDecoder().Decode(writeArchive(t, buf.Bytes()), dest, "arm"))

			for name, want := range map[string]string{
				"a.so":          "alpha",
				"b.so":          "bravo",
				"plugins/c.so":  "charlie",
				"plugins/d.cfg": "delta",
			} {
				got, readErr := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
				require.NoError(t, readErr, name)
				require.Equal(t, want, string(got), name)
			}

			// The variant directory itself is stripped.
			_, err = os.Stat(filepath.Join(dest, "arm"))
			require.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

// TestDecodeSelectsVariant extracts one platform subtree and ignores the others.
func TestDecodeSelectsVariant(t *testing.T) {
	t.Parallel()

	data := rawTar(t, []*tar.Header{
		{Typeflag: tar.TypeDir, Name: "arm/", Mode: 0o755},
		{Typeflag: tar.TypeReg, Name: "arm/libx.so", Mode: 0o644},
		{Typeflag: tar.TypeDir, Name: "x86/", Mode: 0o755},
		{Typeflag: tar.TypeReg, Name: "x86/liby.so", Mode: 0o644},
		{Typeflag: tar.TypeReg, Name: "README", Mode: 0o644},
	}, "lib")
	archivePath := writeArchive(t, data)

	dest := t.TempDir()
	require.NoError(t, NewTarDecoder().Decode(archivePath, dest, "x86"))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "liby.so", entries[0].Name())

	// No variant means everything, unchanged.
	all := t.TempDir()
	require.NoError(t, NewTarDecoder().Decode(archivePath, all, ""))
	require.FileExists(t, filepath.Join(all, "arm", "libx.so"))
	require.FileExists(t, filepath.Join(all, "x86", "liby.so"))
	require.FileExists(t, filepath.Join(all, "README"))

	// Unknown variant extracts nothing and fails.
	err = NewTarDecoder().Decode(archivePath, t.TempDir(), "mips")
	require.ErrorIs(t, err, ErrVariantNotFound)
}

// TestDecodeRejectsUnsafeEntries covers traversal, absolute names and devices.
func TestDecodeRejectsUnsafeEntries(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		header *tar.Header
		want   error
	}{
		"parent traversal": {&tar.Header{Typeflag: tar.TypeReg, Name: "arm/../../evil.so", Mode: 0o644}, ErrUnsafePath},
		"absolute":         {&tar.Header{Typeflag: tar.TypeReg, Name: "/etc/evil.so", Mode: 0o644}, ErrUnsafePath},
		"climbing link":    {&tar.Header{Typeflag: tar.TypeSymlink, Name: "arm/l", Linkname: "../../etc"}, ErrUnsafePath},
		"absolute link":    {&tar.Header{Typeflag: tar.TypeSymlink, Name: "arm/l", Linkname: "/etc/passwd"}, ErrUnsafePath},
		"fifo":             {&tar.Header{Typeflag: tar.TypeFifo, Name: "arm/pipe", Mode: 0o644}, ErrUnsupportedEntry},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			archivePath := writeArchive(t, rawTar(t, []*tar.Header{tc.header}, "x"))
			err := NewTarDecoder().Decode(archivePath, t.TempDir(), "arm")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

// TestDecodeSymlinkInsideDestination keeps sibling links such as soname aliases.
func TestDecodeSymlinkInsideDestination(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	archivePath := writeArchive(t, rawTar(t, []*tar.Header{
		{Typeflag: tar.TypeReg, Name: "arm/libz.so.1", Mode: 0o644},
		{Typeflag: tar.TypeSymlink, Name: "arm/libz.so", Linkname: "libz.so.1"},
	}, "zlib"))

	dest := t.TempDir()
	require.NoError(t, NewTarDecoder().Decode(archivePath, dest, "arm"))

	got, err := os.ReadFile(filepath.Join(dest, "libz.so"))
	require.NoError(t, err)
	require.Equal(t, "zlib", string(got))
}

// TestDecodeLimits verifies per-file and total caps.
func TestDecodeLimits(t *testing.T) {
	t.Parallel()

	archivePath := writeArchive(t, rawTar(t, []*tar.Header{
		{Typeflag: tar.TypeReg, Name: "arm/a.so", Mode: 0o644},
		{Typeflag: tar.TypeReg, Name: "arm/b.so", Mode: 0o644},
	}, "0123456789"))

	err := NewTarDecoder(WithMaxFileSize(5)).Decode(archivePath, t.TempDir(), "arm")
	require.ErrorIs(t, err, ErrTooLarge)

	err = NewTarDecoder(WithMaxTotalSize(15)).Decode(archivePath, t.TempDir(), "arm")
	require.ErrorIs(t, err, ErrTooLarge)

	require.NoError(t, NewTarDecoder(WithMaxFileSize(10), WithMaxTotalSize(20)).
		Decode(archivePath, t.TempDir(), "arm"))
}

// TestDecodeRejectsUnknownFormat feeds bytes that are no archive at all.
func TestDecodeRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	archivePath := writeArchive(t, []byte("7z\xbc\xaf\x27\x1c not a tar"))
	err := NewTarDecoder().Decode(archivePath, t.TempDir(), "arm")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	err = NewTarDecoder().Decode(filepath.Join(t.TempDir(), "missing"), t.TempDir(), "arm")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFormatFromName maps extensions to formats.
func TestFormatFromName(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{
		"libs.tar.zst": FormatZstd,
		"libs.TZST":    FormatZstd,
		"libs.tar.gz":  FormatGzip,
		"libs.tgz":     FormatGzip,
		"libs.tar":     FormatTar,
	}
	for name, want := range cases {
		got, err := FormatFromName(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := FormatFromName("libs.7z")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

// TestPackFile writes to disk and refuses empty directories.
func TestPackFile(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "libs.tar.gz")

	_, err := PackFile(src, out, "arm")
	require.ErrorIs(t, err, ErrNothingToPack)

	writeTree(t, src, map[string]string{"a.so": "a"})

	files, err := PackFile(src, out, "arm")
	require.NoError(t, err)
	require.Equal(t, 1, files)

	dest := t.TempDir()
	require.NoError(t, NewTarDecoder().Decode(out, dest, "arm"))
	require.FileExists(t, filepath.Join(dest, "a.so"))
}
