package walker

import "github.com/maxbrunsfeld/tree-tags/internal/model"

// localDef is a non-hoisted local definition recorded in source order.
type localDef struct {
	name string
	pos  model.Position
}

// localRef is a local use of a name, recorded in source order within
// the scope it was seen in (before any bubbling to a parent scope).
type localRef struct {
	name string
	pos  model.Position
}

// scope is the transient per-walk entity spec.md §3 describes: an
// optional kind tag, ordered local refs/defs, and a hoisted map keyed
// by name with first-writer-wins semantics.
type scope struct {
	kind        *string
	localDefs   []localDef
	hoistedDefs map[string]model.Position
	localRefs   []localRef
}

func newScope(kind *string) *scope {
	return &scope{hoistedDefs: make(map[string]model.Position), kind: kind}
}

// definition is a (possibly still-open) global definition. While open
// it lives on a module's pending stack; once closed it moves to the
// module's completed list until the module itself pops and flushes it.
type definition struct {
	name    *string
	namePos model.Position
	kind    *string
	start   model.Position
	end     model.Position
}

// module is the transient per-walk entity tracking a (possibly
// anonymous) module's name, completed definitions, and in-flight
// pending definitions.
type module struct {
	name      *string
	completed []definition
	pending   []*definition
}

func newModule() *module {
	return &module{}
}
