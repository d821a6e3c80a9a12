package sheet

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
)

// Node is the slice of *sitter.Node the walker needs: its source text
// and its start/end positions. Keeping this as a narrow interface
// (rather than passing *sitter.Node around) lets internal/walker be
// tested against synthetic trees with no real parser, as spec.md §8's
// scope-resolver-law tests require.
type Node interface {
	Text() []byte
	Start() model.Position
	End() model.Position
}

// Cursor is the single stateful interpreter the walker drives: the
// four navigation operations spec.md §4.A names, plus access to the
// current node and its resolved property bag.
type Cursor interface {
	GotoFirstChild() bool
	GotoNextSibling() bool
	GotoParent() bool
	Node() Node
	Properties() Properties
}

// treeCursor adapts a *sitter.TreeCursor + source buffer + Sheet into
// a Cursor, the production implementation used by internal/pipeline.
type treeCursor struct {
	cursor *sitter.TreeCursor
	source []byte
	sheet  *Sheet
}

// NewTreeCursor builds the production Cursor for a parsed tree.
func NewTreeCursor(root *sitter.Node, source []byte, sheet *Sheet) Cursor {
	return &treeCursor{
		cursor: sitter.NewTreeCursor(root),
		source: source,
		sheet:  sheet,
	}
}

func (c *treeCursor) GotoFirstChild() bool  { return c.cursor.GoToFirstChild() }
func (c *treeCursor) GotoNextSibling() bool { return c.cursor.GoToNextSibling() }
func (c *treeCursor) GotoParent() bool      { return c.cursor.GoToParent() }

func (c *treeCursor) Node() Node {
	return sitterNode{node: c.cursor.CurrentNode(), source: c.source}
}

func (c *treeCursor) Properties() Properties {
	n := c.cursor.CurrentNode()
	return c.sheet.Match(n.Type(), c.cursor.CurrentFieldName())
}

type sitterNode struct {
	node   *sitter.Node
	source []byte
}

func (n sitterNode) Text() []byte {
	return n.source[n.node.StartByte():n.node.EndByte()]
}

func (n sitterNode) Start() model.Position {
	p := n.node.StartPoint()
	return model.Position{Row: int(p.Row), Column: int(p.Column)}
}

func (n sitterNode) End() model.Position {
	p := n.node.EndPoint()
	return model.Position{Row: int(p.Row), Column: int(p.Column)}
}
