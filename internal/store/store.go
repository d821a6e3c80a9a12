package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
)

// Store owns one database connection. Each indexer worker opens its
// own Store against the same dsn (spec.md §5), so SQLite's own locking
// serializes concurrent writers.
type Store struct {
	db *gorm.DB
}

// isRemoteDSN reports whether dsn addresses a remote libSQL/Turso
// server rather than a local SQLite file, mirroring termfx-morfx's
// db.Connect isURL check.
func isRemoteDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql://")
}

// Open connects to the database at dsn: a local SQLite file path, or a
// libsql:// / https:// URL for a remote Turso database, authenticated
// via TREE_TAGS_LIBSQL_AUTH_TOKEN. Foreign keys are enabled the way
// termfx-morfx's db.Connect does for its own SQLite dialector.
func Open(dsn string, debug bool) (*Store, error) {
	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	if isRemoteDSN(dsn) {
		var connector driver.Connector
		var err error
		if token := os.Getenv("TREE_TAGS_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, model.Store(fmt.Errorf("libsql connector for %s: %w", dsn, err))
		}
		dialector = sqlite.New(sqlite.Config{DriverName: "libsql", Conn: sql.OpenDB(connector), DSN: dsn})
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, model.Store(fmt.Errorf("open %s: %w", dsn, err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}
	return &Store{db: db}, nil
}

// Initialize creates the five tables if they don't already exist.
func (s *Store) Initialize() error {
	err := s.db.AutoMigrate(&File{}, &Definition{}, &Reference{}, &LocalDefinition{}, &LocalReference{})
	if err != nil {
		return model.Store(err)
	}
	return nil
}

// DeleteFiles removes every indexed file whose path starts with
// prefix, cascading to its defs/refs/local rows. Used by the
// clear-index command; re-indexing a single file goes through
// BeginFile instead.
func (s *Store) DeleteFiles(prefix []byte) error {
	ids, err := s.fileIDsWithPrefix(prefix)
	if err != nil {
		return model.Store(err)
	}
	if len(ids) == 0 {
		return nil
	}
	return model.Store(s.db.Transaction(func(tx *gorm.DB) error {
		return deleteFileRowsByIDs(tx, ids)
	}))
}

func (s *Store) fileIDsWithPrefix(prefix []byte) ([]int64, error) {
	var ids []int64
	err := s.db.Model(&File{}).Where("instr(path, ?) = 1", prefix).Pluck("id", &ids).Error
	return ids, err
}

// BeginFile opens a transaction for one file's worth of facts: any
// existing row for path, and everything that points at it
// (defs/refs/local_defs/local_refs), is deleted first, a fresh File
// row is inserted, and the returned FileHandle implements walker.Sink
// against that transaction. The caller must Commit or Abort it.
func (s *Store) BeginFile(path []byte) (*FileHandle, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, model.Store(tx.Error)
	}

	var old File
	err := tx.Where("path = ?", path).Take(&old).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		tx.Rollback()
		return nil, model.Store(err)
	}
	if err == nil {
		if err := deleteFileRows(tx, old.ID); err != nil {
			tx.Rollback()
			return nil, model.Store(err)
		}
	}

	f := &File{Path: path}
	if err := tx.Create(f).Error; err != nil {
		tx.Rollback()
		return nil, model.Store(err)
	}

	return &FileHandle{tx: tx, fileID: f.ID}, nil
}

// deleteFileRows removes one file's dependent rows and its own row.
func deleteFileRows(tx *gorm.DB, fileID int64) error {
	return deleteFileRowsByIDs(tx, []int64{fileID})
}

// deleteFileRowsByIDs removes every dependent row for a set of file
// ids, then the File rows themselves, in the fixed order defs/refs/
// local_refs/local_defs/files. Shared by BeginFile's single-file
// reindex cascade and DeleteFiles' batch cascade.
func deleteFileRowsByIDs(tx *gorm.DB, fileIDs []int64) error {
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&Definition{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&Reference{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&LocalReference{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&LocalDefinition{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", fileIDs).Delete(&File{}).Error
}

// Match is one (path, position, length) hit returned by FindDefinition.
type Match struct {
	Path     []byte
	Position model.Position
	Length   int
}

// FindDefinition resolves the symbol at (row, col) in path, trying the
// local (scope-resolved) stage first and falling back to the global
// name-match stage, per spec.md §4.D.
func (s *Store) FindDefinition(path []byte, row, col int) ([]Match, error) {
	var file File
	if err := s.db.Where("path = ?", path).First(&file).Error; err != nil {
		return nil, model.Store(err)
	}

	var localDef LocalDefinition
	err := s.db.
		Table("local_refs").
		Select("local_defs.row, local_defs.column, local_defs.length").
		Joins("JOIN local_defs ON local_refs.definition_id = local_defs.id").
		Where("local_refs.file_id = ? AND local_refs.row = ? AND local_refs.column <= ? AND local_refs.column + local_refs.length > ?", file.ID, row, col, col).
		Take(&localDef).Error
	if err == nil {
		return []Match{{
			Path:     path,
			Position: model.Position{Row: localDef.Row, Column: localDef.Column},
			Length:   localDef.Length,
		}}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, model.Store(err)
	}

	type globalRow struct {
		Path        []byte
		NameStartRow int
		NameStartColumn int
		Length      int
	}
	var rows []globalRow
	err = s.db.
		Table("refs").
		Select("files.path AS path, defs.name_start_row AS name_start_row, defs.name_start_column AS name_start_column, length(defs.name) AS length").
		Joins("JOIN defs ON defs.name = refs.name").
		Joins("JOIN files ON files.id = defs.file_id").
		Where("refs.file_id = ? AND refs.row = ? AND refs.column <= ? AND refs.column + length(refs.name) > ?", file.ID, row, col, col).
		Limit(50).
		Find(&rows).Error
	if err != nil {
		return nil, model.Store(err)
	}

	matches := make([]Match, len(rows))
	for i, r := range rows {
		matches[i] = Match{
			Path:     r.Path,
			Position: model.Position{Row: r.NameStartRow, Column: r.NameStartColumn},
			Length:   r.Length,
		}
	}
	return matches, nil
}

// FindUsages resolves the definition at (row, col) in path and returns
// every reference to it, local or global. This supplements spec.md,
// whose find-usages subcommand was declared but never implemented in
// the original indexer.
func (s *Store) FindUsages(path []byte, row, col int) ([]Match, error) {
	var file File
	if err := s.db.Where("path = ?", path).First(&file).Error; err != nil {
		return nil, model.Store(err)
	}

	var localDef LocalDefinition
	err := s.db.
		Where("file_id = ? AND row = ? AND column <= ? AND column + length > ?", file.ID, row, col, col).
		Take(&localDef).Error
	if err == nil {
		var refs []LocalReference
		if err := s.db.Where("definition_id = ?", localDef.ID).Find(&refs).Error; err != nil {
			return nil, model.Store(err)
		}
		matches := make([]Match, len(refs))
		for i, r := range refs {
			matches[i] = Match{Path: path, Position: model.Position{Row: r.Row, Column: r.Column}, Length: r.Length}
		}
		return matches, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, model.Store(err)
	}

	var def Definition
	err = s.db.
		Where("file_id = ? AND name_start_row = ? AND name_start_column <= ? AND name_start_column + length(name) > ?", file.ID, row, col, col).
		Take(&def).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, model.Store(err)
	}

	type globalRow struct {
		Path   []byte
		Row    int
		Column int
	}
	var rows []globalRow
	err = s.db.
		Table("refs").
		Select("files.path AS path, refs.row AS row, refs.column AS column").
		Joins("JOIN files ON files.id = refs.file_id").
		Where("refs.name = ?", def.Name).
		Find(&rows).Error
	if err != nil {
		return nil, model.Store(err)
	}

	matches := make([]Match, len(rows))
	for i, r := range rows {
		matches[i] = Match{Path: r.Path, Position: model.Position{Row: r.Row, Column: r.Column}, Length: len(def.Name)}
	}
	return matches, nil
}
