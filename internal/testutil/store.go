package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/storage"
)

// TempStore opens a fresh store under t.TempDir().
func TempStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	return s
}
