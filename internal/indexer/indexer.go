// Package indexer drives the concurrent directory walk (spec.md §5):
// a scanner goroutine feeds file paths to a fixed pool of workers,
// each with its own store connection, stopping the whole run on the
// first file that errors.
package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/pipeline"
	"github.com/maxbrunsfeld/tree-tags/internal/registry"
	"github.com/maxbrunsfeld/tree-tags/internal/store"
)

// OpenStore is how the indexer gets one store connection per worker:
// every worker calls it once at startup, since store.Store wraps a
// single SQLite connection and SQLite serializes writers itself.
type OpenStore func() (*store.Store, error)

// Indexer owns the shared, mutex-guarded language registry and the
// per-worker store factory used to walk and index a directory tree.
type Indexer struct {
	registry  *registry.Registry
	openStore OpenStore
	workers   int
	include   []string
	exclude   []string
}

// New builds an Indexer. workers <= 0 defaults to runtime.NumCPU().
// include/exclude are doublestar glob patterns restricting the walk,
// the way core/filewalker.go's FileScope does; an empty include
// matches everything.
func New(reg *registry.Registry, openStore OpenStore, workers int, include, exclude []string) *Indexer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{registry: reg, openStore: openStore, workers: workers, include: include, exclude: exclude}
}

// IndexPath walks root, indexing every regular file. The first file to
// fail with an error from internal/pipeline stops the whole walk and
// is returned; errors from individual dot-directories being skipped do
// not count as failures.
func (ix *Indexer) IndexPath(ctx context.Context, root string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := make(chan string, 1000)

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i := 0; i < ix.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := ix.openStore()
			if err != nil {
				recordErr(model.IO(err))
				return
			}
			for path := range paths {
				if err := pipeline.IndexFile(ctx, ix.registry, s, path); err != nil {
					recordErr(err)
					return
				}
			}
		}()
	}

	scanErr := scan(ctx, root, paths, ix.include, ix.exclude)

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return scanErr
}

// scan walks root, sending every regular file's path to paths and
// skipping dot-directories (.git, .build and the like) and any file
// that doesn't match include (if non-empty) or does match exclude. It
// always closes paths, even on error or cancellation.
func scan(ctx context.Context, root string, paths chan<- string, include, exclude []string) error {
	defer close(paths)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A per-entry walk error (e.g. permission denied) is skipped,
			// not propagated: returning it here would make WalkDir abort
			// the whole walk instead of just this entry.
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !matchesAny(path, include, true) || matchesAny(path, exclude, false) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case paths <- path:
			return nil
		}
	})
}

// matchesAny reports whether path matches any of patterns. When
// patterns is empty, the result is emptyDefault (true for include,
// since no include patterns means "match everything"; false for
// exclude, since no exclude patterns means "exclude nothing").
func matchesAny(path string, patterns []string, emptyDefault bool) bool {
	if len(patterns) == 0 {
		return emptyDefault
	}
	for _, pattern := range patterns {
		if matched, err := doublestar.PathMatch(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
