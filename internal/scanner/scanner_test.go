package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "statement.csv"))
	touch(t, filepath.Join(root, "Statement.QIF"))
	touch(t, filepath.Join(root, "sub", "bank.ofx"))
	touch(t, filepath.Join(root, "readme.md"))
	touch(t, filepath.Join(root, "archive.zip"))

	got, err := Scan(root)
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "Statement.QIF"),
		filepath.Join(root, "statement.csv"),
		filepath.Join(root, "sub", "bank.ofx"),
	}
	assert.Equal(t, want, got)
}

func TestScan_SkipsHidden(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "ok.csv"))
	touch(t, filepath.Join(root, ".hidden.csv"))
	touch(t, filepath.Join(root, ".sync", "state.csv"))

	got, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ok.csv")}, got)
}

func TestScan_EmptyDir(t *testing.T) {
	got, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
