package walker

import (
	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/sheet"
)

// fakeNode is a synthetic syntax-tree node with properties attached
// directly, standing in for a real tree-sitter node matched against a
// property sheet. This lets the scope-resolver laws in spec.md §8 be
// tested without a parser or a grammar.
type fakeNode struct {
	text     string
	start    model.Position
	end      model.Position
	props    sheet.Properties
	children []*fakeNode
}

func (n *fakeNode) Text() []byte          { return []byte(n.text) }
func (n *fakeNode) Start() model.Position { return n.start }
func (n *fakeNode) End() model.Position   { return n.end }

func leaf(text string, row, col int, props sheet.Properties) *fakeNode {
	return &fakeNode{text: text, start: model.Position{Row: row, Column: col}, end: model.Position{Row: row, Column: col + len(text)}, props: props}
}

func branch(props sheet.Properties, children ...*fakeNode) *fakeNode {
	return &fakeNode{props: props, children: children}
}

// fakeCursor walks a fakeNode tree, implementing sheet.Cursor.
type fakeCursor struct {
	path    []*fakeNode
	indices []int
}

func newFakeCursor(root *fakeNode) *fakeCursor {
	return &fakeCursor{path: []*fakeNode{root}, indices: []int{0}}
}

func (c *fakeCursor) current() *fakeNode { return c.path[len(c.path)-1] }

func (c *fakeCursor) GotoFirstChild() bool {
	cur := c.current()
	if len(cur.children) == 0 {
		return false
	}
	c.path = append(c.path, cur.children[0])
	c.indices = append(c.indices, 0)
	return true
}

func (c *fakeCursor) GotoNextSibling() bool {
	if len(c.path) < 2 {
		return false
	}
	parent := c.path[len(c.path)-2]
	idx := c.indices[len(c.indices)-1]
	if idx+1 >= len(parent.children) {
		return false
	}
	c.path[len(c.path)-1] = parent.children[idx+1]
	c.indices[len(c.indices)-1] = idx + 1
	return true
}

func (c *fakeCursor) GotoParent() bool {
	if len(c.path) < 2 {
		return false
	}
	c.path = c.path[:len(c.path)-1]
	c.indices = c.indices[:len(c.indices)-1]
	return true
}

func (c *fakeCursor) Node() sheet.Node { return c.current() }

func (c *fakeCursor) Properties() sheet.Properties {
	if c.current().props == nil {
		return sheet.Properties{}
	}
	return c.current().props
}

// fakeSink records every fact the walker flushes, for assertions.
type fakeSink struct {
	nextID    int64
	defPos    map[int64]model.Position
	localRefs []struct {
		DefID int64
		Pos   model.Position
	}
	refs []struct {
		Name string
		Pos  model.Position
		Kind string
	}
	defs []struct {
		Name       string
		NamePos    model.Position
		Start, End model.Position
		Kind       string
		ModulePath []string
	}
}

func newFakeSink() *fakeSink {
	return &fakeSink{defPos: make(map[int64]model.Position)}
}

func (s *fakeSink) InsertLocalDef(pos model.Position, length int) (int64, error) {
	s.nextID++
	s.defPos[s.nextID] = pos
	return s.nextID, nil
}

func (s *fakeSink) InsertLocalRef(definitionID int64, pos model.Position, length int) error {
	s.localRefs = append(s.localRefs, struct {
		DefID int64
		Pos   model.Position
	}{definitionID, pos})
	return nil
}

func (s *fakeSink) InsertRef(name string, pos model.Position, kind string) error {
	s.refs = append(s.refs, struct {
		Name string
		Pos  model.Position
		Kind string
	}{name, pos, kind})
	return nil
}

func (s *fakeSink) InsertDef(name string, namePos, start, end model.Position, kind string, modulePath []string) error {
	s.defs = append(s.defs, struct {
		Name       string
		NamePos    model.Position
		Start, End model.Position
		Kind       string
		ModulePath []string
	}{name, namePos, start, end, kind, modulePath})
	return nil
}
