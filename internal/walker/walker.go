// Package walker implements the scope/definition walker: a generic
// pre-order/post-order traversal driven by a sheet.Cursor, resolving
// local references to local definitions by lexical scoping with
// hoisting (spec.md §4.B) while collecting nested global definitions
// and their module paths (spec.md §4.C).
package walker

import (
	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/sheet"
)

// Sink receives the facts the walker produces, in the shape
// internal/store.FileHandle implements. Keeping this as an interface
// lets the walker be tested with an in-memory recorder instead of a
// real database, as spec.md §8's synthetic-tree scenarios call for.
type Sink interface {
	InsertLocalDef(pos model.Position, length int) (int64, error)
	InsertLocalRef(definitionID int64, pos model.Position, length int) error
	InsertRef(name string, pos model.Position, kind string) error
	InsertDef(name string, namePos, start, end model.Position, kind string, modulePath []string) error
}

// Walker drives a sheet.Cursor over one parsed file, flushing facts to
// a Sink as scopes and modules close.
type Walker struct {
	cursor  sheet.Cursor
	sink    Sink
	scopes  []*scope
	modules []*module
}

// New builds a Walker for one file's traversal.
func New(cursor sheet.Cursor, sink Sink) *Walker {
	return &Walker{cursor: cursor, sink: sink}
}

// Run performs the full walk: push the file (bottom) scope and
// anonymous file module, traverse every node pre-order/post-order,
// then pop both, flushing all remaining facts.
func (w *Walker) Run() error {
	w.pushScope(nil)
	w.pushModule()

	if err := w.enter(); err != nil {
		return err
	}

	visitedNode := false
	for {
		if visitedNode {
			if w.cursor.GotoNextSibling() {
				if err := w.enter(); err != nil {
					return err
				}
				visitedNode = false
			} else if w.cursor.GotoParent() {
				if err := w.leave(); err != nil {
					return err
				}
			} else {
				break
			}
		} else if w.cursor.GotoFirstChild() {
			if err := w.enter(); err != nil {
				return err
			}
		} else {
			if err := w.leave(); err != nil {
				return err
			}
			visitedNode = true
		}
	}

	if err := w.popModule(); err != nil {
		return err
	}
	return w.popScope()
}

func (w *Walker) enter() error {
	node := w.cursor.Node()
	props := w.cursor.Properties()
	isLocalDef := false

	if props.Is("local-definition", "true") {
		isLocalDef = true
		name := string(node.Text())
		pos := node.Start()
		target := w.targetScope(props)
		if props.Has("local-is-hoisted") {
			if _, exists := target.hoistedDefs[name]; !exists {
				target.hoistedDefs[name] = pos
			}
		} else {
			target.localDefs = append(target.localDefs, localDef{name: name, pos: pos})
		}
	}

	if props.Is("local-reference", "true") && !isLocalDef {
		target := w.targetScope(props)
		target.localRefs = append(target.localRefs, localRef{name: string(node.Text()), pos: node.Start()})
	}

	if props.Is("local-scope", "true") {
		var kind *string
		if k, ok := props["scope-type"]; ok {
			kind = &k
		}
		w.pushScope(kind)
	}

	if props.Is("module", "true") {
		w.pushModule()
	}

	if props["module-part"] == "name" {
		name := string(node.Text())
		w.topModule().name = &name
	}

	if props.Is("definition", "true") {
		d := &definition{start: node.Start(), end: node.End()}
		if k, ok := props["definition-type"]; ok {
			d.kind = &k
		}
		m := w.topModule()
		m.pending = append(m.pending, d)
	}

	switch props["definition-part"] {
	case "name":
		name := string(node.Text())
		d := w.topDefinition()
		d.name = &name
		d.namePos = node.Start()
	case "value":
		if k, ok := props["definition-type"]; ok {
			w.topDefinition().kind = &k
		}
	}

	if props.Is("reference", "true") {
		if err := w.sink.InsertRef(string(node.Text()), node.Start(), props["reference-type"]); err != nil {
			return model.Store(err)
		}
	}

	return nil
}

func (w *Walker) leave() error {
	props := w.cursor.Properties()

	if props.Is("local-scope", "true") {
		if err := w.popScope(); err != nil {
			return err
		}
	}
	if props.Is("definition", "true") {
		w.popDefinition()
	}
	if props.Is("module", "true") {
		if err := w.popModule(); err != nil {
			return err
		}
	}
	return nil
}

// targetScope finds the nearest enclosing scope whose kind matches the
// current node's scope-type property. With no scope-type, the
// innermost scope is used. The file scope at depth 0 is always a
// valid fallback, per spec.md §4.B.
func (w *Walker) targetScope(props sheet.Properties) *scope {
	scopeType, hasScopeType := props["scope-type"]
	if !hasScopeType {
		return w.scopes[len(w.scopes)-1]
	}
	for i := len(w.scopes) - 1; i > 0; i-- {
		if w.scopes[i].kind != nil && *w.scopes[i].kind == scopeType {
			return w.scopes[i]
		}
	}
	return w.scopes[0]
}

func (w *Walker) pushScope(kind *string) {
	w.scopes = append(w.scopes, newScope(kind))
}

// popScope flushes the top scope's facts to the sink and resolves its
// local refs against its own local/hoisted defs, bubbling unresolved
// refs to the parent scope (or discarding them at the file scope).
func (w *Walker) popScope() error {
	n := len(w.scopes)
	s := w.scopes[n-1]
	w.scopes = w.scopes[:n-1]

	localDefIDs := make([]int64, len(s.localDefs))
	for i, d := range s.localDefs {
		id, err := w.sink.InsertLocalDef(d.pos, len(d.name))
		if err != nil {
			return model.Store(err)
		}
		localDefIDs[i] = id
	}

	hoistedIDs := make(map[string]int64, len(s.hoistedDefs))
	for name, pos := range s.hoistedDefs {
		id, err := w.sink.InsertLocalDef(pos, len(name))
		if err != nil {
			return model.Store(err)
		}
		hoistedIDs[name] = id
	}

	var parent *scope
	if len(w.scopes) > 0 {
		parent = w.scopes[len(w.scopes)-1]
	}

	for _, ref := range s.localRefs {
		defID, found := resolveInScope(s, localDefIDs, ref)
		if !found {
			if id, ok := hoistedIDs[ref.name]; ok {
				defID, found = id, true
			}
		}
		if found {
			if err := w.sink.InsertLocalRef(defID, ref.pos, len(ref.name)); err != nil {
				return model.Store(err)
			}
		} else if parent != nil {
			parent.localRefs = append(parent.localRefs, ref)
		}
		// Unresolved at the file (bottom) scope: silently discarded,
		// resolvable (if at all) only by global reference lookup.
	}

	return nil
}

// resolveInScope scans non-hoisted local defs oldest to newest, up to
// but not including any strictly after the ref's position, returning
// the most recent name match (shadowing within the same scope).
func resolveInScope(s *scope, defIDs []int64, ref localRef) (int64, bool) {
	var (
		defID int64
		found bool
	)
	for i, d := range s.localDefs {
		if ref.pos.Less(d.pos) {
			break
		}
		if d.name == ref.name {
			defID, found = defIDs[i], true
		}
	}
	return defID, found
}

func (w *Walker) pushModule() {
	w.modules = append(w.modules, newModule())
}

// popModule flushes every completed, named definition of the popped
// module, with its module path built from module names outermost to
// the just-popped module, skipping anonymous modules.
func (w *Walker) popModule() error {
	n := len(w.modules)
	m := w.modules[n-1]
	w.modules = w.modules[:n-1]

	path := make([]string, 0, len(w.modules)+1)
	for _, ancestor := range w.modules {
		if ancestor.name != nil {
			path = append(path, *ancestor.name)
		}
	}
	if m.name != nil {
		path = append(path, *m.name)
	}

	for _, d := range m.completed {
		if d.name == nil {
			continue
		}
		kind := ""
		if d.kind != nil {
			kind = *d.kind
		}
		if err := w.sink.InsertDef(*d.name, d.namePos, d.start, d.end, kind, path); err != nil {
			return model.Store(err)
		}
	}
	return nil
}

func (w *Walker) popDefinition() {
	m := w.topModule()
	n := len(m.pending)
	d := m.pending[n-1]
	m.pending = m.pending[:n-1]
	m.completed = append(m.completed, *d)
}

func (w *Walker) topModule() *module {
	return w.modules[len(w.modules)-1]
}

func (w *Walker) topDefinition() *definition {
	m := w.topModule()
	return m.pending[len(m.pending)-1]
}
