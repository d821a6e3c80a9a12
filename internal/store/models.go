// Package store is the relational persistence layer (spec.md §4.D): a
// SQLite schema of five tables reachable through GORM, plus the
// two-stage find-definition query and the walker.Sink a file's
// insertion transaction implements.
package store

// File is one indexed source file, keyed by its path as the indexer's
// directory walk yields it (the walk root joined with the file's path
// beneath it). Re-indexing a path deletes its old row and every
// dependent defs/refs/local_defs/local_refs row (store.deleteFileRows)
// before inserting a fresh one.
type File struct {
	ID   int64  `gorm:"primaryKey"`
	Path []byte `gorm:"uniqueIndex;not null"`
}

func (File) TableName() string { return "files" }

// Definition is a named, globally-findable declaration: a function,
// type, module member, or similar, together with its module path.
type Definition struct {
	ID             int64 `gorm:"primaryKey"`
	FileID         int64 `gorm:"not null;index"`
	StartRow       int
	StartColumn    int
	EndRow         int
	EndColumn      int
	Name           string `gorm:"index"`
	NameStartRow   int
	NameStartColumn int
	Kind           string
	ModulePath     string
}

func (Definition) TableName() string { return "defs" }

// Reference is a global use of a name: one that find-definition
// resolves by matching Name against Definition.Name in the same file
// set, since no cross-file symbol table is maintained (spec.md §4.D).
type Reference struct {
	ID     int64 `gorm:"primaryKey"`
	FileID int64 `gorm:"not null;index"`
	Name   string `gorm:"index"`
	Row    int
	Column int
	Kind   string
}

func (Reference) TableName() string { return "refs" }

// LocalDefinition is a scope-resolved definition: a local variable,
// parameter, or similar, identified purely by position and byte
// length (its name is not stored, since local_refs already point at
// it by id).
type LocalDefinition struct {
	ID     int64 `gorm:"primaryKey"`
	FileID int64 `gorm:"not null;index"`
	Row    int
	Column int
	Length int
}

func (LocalDefinition) TableName() string { return "local_defs" }

// LocalReference is a scope-resolved use of a name, pointing directly
// at the LocalDefinition the walker matched it to.
type LocalReference struct {
	ID           int64 `gorm:"primaryKey"`
	FileID       int64 `gorm:"not null;index"`
	DefinitionID int64 `gorm:"not null;index"`
	Row          int
	Column       int
	Length       int
}

func (LocalReference) TableName() string { return "local_refs" }
