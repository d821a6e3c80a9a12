package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxbrunsfeld/tree-tags/internal/registry"
	"github.com/maxbrunsfeld/tree-tags/internal/store"
)

func TestScanSkipsDotDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.go"), []byte("package a"), 0o644))

	paths := make(chan string, 10)
	require.NoError(t, scan(context.Background(), root, paths, nil, nil))

	var seen []string
	for p := range paths {
		seen = append(seen, p)
	}

	require.ElementsMatch(t, []string{
		filepath.Join(root, "a.go"),
		filepath.Join(root, "sub", "b.go"),
	}, seen)
}

func TestIndexPathSkipsUnregisteredExtensions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.rs"), []byte("fn main() {}"), 0o644))

	reg, err := registry.New(t.TempDir(), nil, "")
	require.NoError(t, err)

	ix := New(reg, func() (*store.Store, error) {
		s, err := store.Open("file::memory:?cache=shared", false)
		if err != nil {
			return nil, err
		}
		return s, s.Initialize()
	}, 2, nil, nil)

	require.NoError(t, ix.IndexPath(context.Background(), root))
}

func TestScanHonorsIncludeAndExcludePatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a_test.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("x = 1"), 0o644))

	paths := make(chan string, 10)
	require.NoError(t, scan(context.Background(), root, paths, []string{"**/*.go"}, []string{"**/*_test.go"}))

	var seen []string
	for p := range paths {
		seen = append(seen, p)
	}
	require.Equal(t, []string{filepath.Join(root, "a.go")}, seen)
}
