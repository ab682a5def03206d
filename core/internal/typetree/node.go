// Package typetree parses the type trees that describe the field layout of
// every serialized object class.
//
// Two on-disk encodings exist. Older files store each node recursively with
// inline names. Newer files store a flat node array with depths and offsets
// into a string pool, which is rebuilt into a tree with a parent stack.
package typetree

import (
	"fmt"
	"strings"
)

// flagPostAlign marks nodes whose value is followed by padding to 4 bytes.
const flagPostAlign = 0x4000

// nullName is used for names that cannot be resolved from a string pool.
const nullName = "(null)"

// Node is one field in a type tree.
type Node struct {
	Type     string
	Name     string
	Size     int32
	Index    int32
	IsArray  bool
	Version  int32
	Flags    int32
	Children []*Node
}

func newNode() *Node {
	return &Node{Type: nullName, Name: nullName}
}

// PostAlign reports whether reading this node ends on a 4-byte boundary.
func (n *Node) PostAlign() bool {
	return n.Flags&flagPostAlign != 0
}

// Child returns the first direct child with the given field name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("<%s %s (size=%d, index=%d, is_array=%t, flags=%d)>",
		n.Type, n.Name, n.Size, n.Index, n.IsArray, n.Flags)
}

// Dump renders the tree one node per line, indented by depth.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.String())
	b.WriteByte('\n')
	for _, c := range n.Children {
		c.dump(b, depth+1)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// UsesBlob reports whether format stores trees in the flat blob encoding.
func UsesBlob(format uint32) bool {
	return format == 10 || format >= 12
}
