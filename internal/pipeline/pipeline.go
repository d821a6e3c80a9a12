// Package pipeline wires one file's parse-walk-store path together
// (spec.md §4.F / §7): extension lookup, parsing, walking, and
// committing or aborting the file's transaction.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/registry"
	"github.com/maxbrunsfeld/tree-tags/internal/sheet"
	"github.com/maxbrunsfeld/tree-tags/internal/store"
	"github.com/maxbrunsfeld/tree-tags/internal/walker"
)

// IndexFile runs the full per-file pipeline: skip files with no
// registered grammar or non-UTF-8 content, otherwise parse and walk
// the file, committing its facts or aborting on error.
func IndexFile(ctx context.Context, reg *registry.Registry, s *store.Store, path string) error {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	lang, err := reg.ForExtension(ext)
	if err != nil {
		if err == registry.ErrNotApplicable {
			return nil
		}
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return model.IO(err)
	}
	if !utf8.Valid(source) {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.Lang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return model.IO(err)
	}

	handle, err := s.BeginFile([]byte(path))
	if err != nil {
		return err
	}

	cursor := sheet.NewTreeCursor(tree.RootNode(), source, lang.Sheet)
	if err := walker.New(cursor, handle).Run(); err != nil {
		handle.Abort()
		return err
	}

	return handle.Commit()
}
