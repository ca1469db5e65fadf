package marker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing marker.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), ".lock"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	// Removing a missing marker is fine.
	require.NoError(t, repo.Remove(context.Background()))
}

// TestFileRepository_SaveLoad ensures Save writes the bare integer and Load reads it back.
func TestFileRepository_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".lock")
	repo := NewFileRepository(path)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, 1))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1", string(contents))

	// Overwrite with a higher version.
	require.NoError(t, repo.Save(ctx, 12))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, got)

	// Only the marker remains; temporary swap files are gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".lock", entries[0].Name())

	require.NoError(t, repo.Remove(ctx))

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileRepository_Malformed covers content that is not a single integer.
func TestFileRepository_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"text":  "one",
		"empty": "",
		"float": "1.5",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), ".lock")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := NewFileRepository(path).Load(context.Background())
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// TestFileRepository_FirstLine reads only the first line and tolerates surrounding blanks.
func TestFileRepository_FirstLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".lock")
	require.NoError(t, os.WriteFile(path, []byte(" 3\r\ngarbage\n"), 0o644))

	got, err := NewFileRepository(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, got)
}
