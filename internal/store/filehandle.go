package store

import (
	"gorm.io/gorm"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
)

// FileHandle is the open transaction for one file's worth of facts. It
// implements walker.Sink directly, so internal/pipeline can hand it to
// a Walker without an adapter.
type FileHandle struct {
	tx     *gorm.DB
	fileID int64
}

func (h *FileHandle) InsertLocalDef(pos model.Position, length int) (int64, error) {
	d := &LocalDefinition{FileID: h.fileID, Row: pos.Row, Column: pos.Column, Length: length}
	if err := h.tx.Create(d).Error; err != nil {
		return 0, model.Store(err)
	}
	return d.ID, nil
}

func (h *FileHandle) InsertLocalRef(definitionID int64, pos model.Position, length int) error {
	r := &LocalReference{FileID: h.fileID, DefinitionID: definitionID, Row: pos.Row, Column: pos.Column, Length: length}
	return model.Store(h.tx.Create(r).Error)
}

func (h *FileHandle) InsertRef(name string, pos model.Position, kind string) error {
	r := &Reference{FileID: h.fileID, Name: name, Row: pos.Row, Column: pos.Column, Kind: kind}
	return model.Store(h.tx.Create(r).Error)
}

func (h *FileHandle) InsertDef(name string, namePos, start, end model.Position, kind string, modulePath []string) error {
	d := &Definition{
		FileID:          h.fileID,
		StartRow:        start.Row,
		StartColumn:     start.Column,
		EndRow:          end.Row,
		EndColumn:       end.Column,
		Name:            name,
		NameStartRow:    namePos.Row,
		NameStartColumn: namePos.Column,
		Kind:            kind,
		ModulePath:      joinModulePath(modulePath),
	}
	return model.Store(h.tx.Create(d).Error)
}

// Commit finalizes the file's transaction.
func (h *FileHandle) Commit() error {
	return model.Store(h.tx.Commit().Error)
}

// Abort discards the file's transaction, e.g. after a walk error.
func (h *FileHandle) Abort() error {
	return model.Store(h.tx.Rollback().Error)
}

// joinModulePath serializes a module path as tab-separated entries
// with a trailing tab, matching original_source/src/store.rs exactly
// so an empty path round-trips as an empty string rather than "\t".
func joinModulePath(path []string) string {
	s := ""
	for _, entry := range path {
		s += entry + "\t"
	}
	return s
}
