package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/sheet"
)

func pos(row, col int) model.Position { return model.Position{Row: row, Column: col} }

func run(t *testing.T, root *fakeNode) *fakeSink {
	t.Helper()
	sink := newFakeSink()
	w := New(newFakeCursor(root), sink)
	require.NoError(t, w.Run())
	return sink
}

// Shadowing: two non-hoisted defs of x in the same scope, a ref after
// both, resolves to the most recent def.
func TestShadowingWithinScope(t *testing.T) {
	root := branch(nil,
		leaf("x", 0, 0, sheet.Properties{"local-definition": "true"}),
		leaf("x", 0, 5, sheet.Properties{"local-definition": "true"}),
		leaf("x", 0, 10, sheet.Properties{"local-reference": "true"}),
	)
	sink := run(t, root)

	require.Len(t, sink.localRefs, 1)
	resolved := sink.defPos[sink.localRefs[0].DefID]
	assert.Equal(t, pos(0, 5), resolved)
}

// Hoisting: a ref before a hoisted def still resolves to it.
func TestHoistedDefResolvesBeforeItsOwnPosition(t *testing.T) {
	root := branch(nil,
		leaf("f", 0, 0, sheet.Properties{"local-reference": "true"}),
		leaf("f", 0, 10, sheet.Properties{"local-definition": "true", "local-is-hoisted": "true"}),
	)
	sink := run(t, root)

	require.Len(t, sink.localRefs, 1)
	resolved := sink.defPos[sink.localRefs[0].DefID]
	assert.Equal(t, pos(0, 10), resolved)
}

// Escape: a ref inside a nested scope with no local match bubbles to
// the enclosing (file) scope and resolves against its earlier def.
func TestUnresolvedRefBubblesToParentScope(t *testing.T) {
	root := branch(nil,
		leaf("x", 0, 0, sheet.Properties{"local-definition": "true"}),
		branch(sheet.Properties{"local-scope": "true"},
			leaf("x", 1, 0, sheet.Properties{"local-reference": "true"}),
		),
	)
	sink := run(t, root)

	require.Len(t, sink.localRefs, 1)
	resolved := sink.defPos[sink.localRefs[0].DefID]
	assert.Equal(t, pos(0, 0), resolved)
}

// A ref left unresolved all the way up to the file (bottom) scope is
// silently discarded rather than erroring.
func TestUnresolvedRefAtFileScopeIsDiscarded(t *testing.T) {
	root := branch(nil,
		leaf("y", 0, 0, sheet.Properties{"local-reference": "true"}),
	)
	sink := run(t, root)
	assert.Empty(t, sink.localRefs)
}

// scope-type targeting: a def/ref pair tagged for the enclosing
// function scope resolve against each other even though a nested
// block scope sits between them and the function scope.
func TestScopeTypeTargetsEnclosingKind(t *testing.T) {
	funcKind := sheet.Properties{"local-scope": "true", "scope-type": "function"}
	blockKind := sheet.Properties{"local-scope": "true", "scope-type": "block"}
	root := branch(nil,
		branch(funcKind,
			branch(blockKind,
				leaf("x", 2, 0, sheet.Properties{"local-definition": "true", "scope-type": "function"}),
				leaf("x", 2, 5, sheet.Properties{"local-reference": "true", "scope-type": "function"}),
			),
		),
	)
	sink := run(t, root)

	require.Len(t, sink.localRefs, 1)
	resolved := sink.defPos[sink.localRefs[0].DefID]
	assert.Equal(t, pos(2, 0), resolved)
}

// A node that is simultaneously a local-definition and a
// local-reference (e.g. a bare declaration) is only ever treated as a
// definition; no reference is emitted for it.
func TestDefinitionTakesPrecedenceOverReferenceOnSameNode(t *testing.T) {
	root := branch(nil,
		leaf("x", 0, 0, sheet.Properties{"local-definition": "true", "local-reference": "true"}),
	)
	sink := run(t, root)
	assert.Empty(t, sink.localRefs)
}

// A global reference node (reference=true) is flushed immediately,
// independent of scope resolution.
func TestGlobalReferenceIsFlushedImmediately(t *testing.T) {
	root := branch(nil,
		leaf("foo.bar", 3, 1, sheet.Properties{"reference": "true", "reference-type": "call"}),
	)
	sink := run(t, root)

	require.Len(t, sink.refs, 1)
	assert.Equal(t, "foo.bar", sink.refs[0].Name)
	assert.Equal(t, pos(3, 1), sink.refs[0].Pos)
	assert.Equal(t, "call", sink.refs[0].Kind)
}

// Nested modules accumulate a module path from outermost to innermost,
// and a definition is attributed to the module it was declared in.
func TestNestedModulePathIsBuiltOutermostFirst(t *testing.T) {
	root := branch(nil,
		branch(sheet.Properties{"module": "true"},
			leaf("a", 0, 0, sheet.Properties{"module-part": "name"}),
			branch(sheet.Properties{"module": "true"},
				leaf("b", 1, 0, sheet.Properties{"module-part": "name"}),
				branch(sheet.Properties{"definition": "true", "definition-type": "function"},
					leaf("c", 2, 0, sheet.Properties{"definition-part": "name"}),
				),
			),
		),
	)
	sink := run(t, root)

	require.Len(t, sink.defs, 1)
	d := sink.defs[0]
	assert.Equal(t, "c", d.Name)
	assert.Equal(t, "function", d.Kind)
	assert.Equal(t, []string{"a", "b"}, d.ModulePath)
}

// module-part=name is an unconditional overwrite on every occurrence:
// the last one seen before the module closes wins.
func TestModulePartNameLastOccurrenceWins(t *testing.T) {
	root := branch(sheet.Properties{"module": "true"},
		leaf("first", 0, 0, sheet.Properties{"module-part": "name"}),
		leaf("second", 0, 10, sheet.Properties{"module-part": "name"}),
		branch(sheet.Properties{"definition": "true"},
			leaf("thing", 1, 0, sheet.Properties{"definition-part": "name"}),
		),
	)
	sink := run(t, root)

	require.Len(t, sink.defs, 1)
	assert.Equal(t, []string{"second"}, sink.defs[0].ModulePath)
}

// An anonymous module (no module-part=name ever seen) is skipped when
// building the module path, rather than contributing an empty string.
func TestAnonymousModuleOmittedFromPath(t *testing.T) {
	root := branch(sheet.Properties{"module": "true"},
		branch(sheet.Properties{"definition": "true"},
			leaf("thing", 0, 0, sheet.Properties{"definition-part": "name"}),
		),
	)
	sink := run(t, root)

	require.Len(t, sink.defs, 1)
	assert.Empty(t, sink.defs[0].ModulePath)
}
