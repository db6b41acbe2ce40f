package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtensionSorted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"zz.hcl", "aa.hcl", "mm.txt", "bb.hcl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	got, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "aa.hcl"),
		filepath.Join(dir, "bb.hcl"),
		filepath.Join(dir, "zz.hcl"),
	}
	assert.Equal(t, want, got)
}

func TestFindFilesByExtensionMissingRoot(t *testing.T) {
	t.Parallel()

	got, err := FindFilesByExtension(filepath.Join(t.TempDir(), "nope"), ".hcl")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "manager", BaseName("/x/y/manager.hcl"))
	assert.Equal(t, "manager", BaseName("manager.hcl"))
}
