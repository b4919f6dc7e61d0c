package wikidoc

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeID is a stable index into a Document's node table.
type NodeID int

// None is the zero handle: no parent, no match.
const None NodeID = -1

// Kind identifies what a node holds.
type Kind uint8

const (
	DocumentNode Kind = iota
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
)

type node struct {
	kind     Kind
	data     string // tag name, text, comment body or doctype name
	attrs    []html.Attribute
	parent   NodeID
	children []NodeID
}

// Document is an ordered node tree stored as a flat arena. Parent and child
// links are indices, so detaching and re-inserting only rewrites index lists.
// Detached nodes stay in the arena and may be inserted again.
type Document struct {
	nodes []node
	root  NodeID
}

// NewDocument returns an empty <html><head></head><body></body></html> tree.
func NewDocument() *Document {
	d := &Document{}
	d.root = d.add(node{kind: DocumentNode})
	htmlEl := d.CreateElement("html")
	d.Append(d.root, htmlEl)
	d.Append(htmlEl, d.CreateElement("head"))
	d.Append(htmlEl, d.CreateElement("body"))
	return d
}

func (d *Document) add(n node) NodeID {
	n.parent = None
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

// Body returns the <body> element, or the root when there is none.
func (d *Document) Body() NodeID {
	if b := d.SelectFirst(d.root, "body"); b != None {
		return b
	}
	return d.root
}

// CreateElement allocates a detached element.
func (d *Document) CreateElement(tag string) NodeID {
	return d.add(node{kind: ElementNode, data: tag})
}

// CreateText allocates a detached text node.
func (d *Document) CreateText(text string) NodeID {
	return d.add(node{kind: TextNode, data: text})
}

func (d *Document) Kind(id NodeID) Kind { return d.nodes[id].kind }

// Tag returns the element name, or "" for non-elements.
func (d *Document) Tag(id NodeID) string {
	if d.nodes[id].kind != ElementNode {
		return ""
	}
	return d.nodes[id].data
}

// Data returns the raw payload of text and comment nodes.
func (d *Document) Data(id NodeID) string { return d.nodes[id].data }

func (d *Document) Parent(id NodeID) NodeID { return d.nodes[id].parent }

// Children returns a copy of id's child list; mutating the tree while
// ranging over it is safe.
func (d *Document) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), d.nodes[id].children...)
}

// FirstElementChild returns the first element child of id.
func (d *Document) FirstElementChild(id NodeID) NodeID {
	for _, c := range d.nodes[id].children {
		if d.nodes[c].kind == ElementNode {
			return c
		}
	}
	return None
}

// NextSibling returns the node following id under the same parent.
func (d *Document) NextSibling(id NodeID) NodeID {
	p := d.nodes[id].parent
	if p == None {
		return None
	}
	siblings := d.nodes[p].children
	i := d.indexIn(p, id)
	if i+1 < len(siblings) {
		return siblings[i+1]
	}
	return None
}

// Attr returns the value of an attribute.
func (d *Document) Attr(id NodeID, key string) (string, bool) {
	for _, a := range d.nodes[id].attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (d *Document) SetAttr(id NodeID, key, val string) {
	n := &d.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Val = val
			return
		}
	}
	n.attrs = append(n.attrs, html.Attribute{Key: key, Val: val})
}

func (d *Document) indexIn(parent, child NodeID) int {
	for i, c := range d.nodes[parent].children {
		if c == child {
			return i
		}
	}
	return -1
}

// Detach removes id and its subtree from its parent.
func (d *Document) Detach(id NodeID) {
	p := d.nodes[id].parent
	if p == None {
		return
	}
	i := d.indexIn(p, id)
	kids := d.nodes[p].children
	d.nodes[p].children = append(kids[:i:i], kids[i+1:]...)
	d.nodes[id].parent = None
}

func (d *Document) insertAt(parent NodeID, i int, child NodeID) {
	d.Detach(child)
	kids := d.nodes[parent].children
	out := make([]NodeID, 0, len(kids)+1)
	out = append(out, kids[:i]...)
	out = append(out, child)
	out = append(out, kids[i:]...)
	d.nodes[parent].children = out
	d.nodes[child].parent = parent
}

// Append adds child as the last child of parent.
func (d *Document) Append(parent, child NodeID) {
	d.Detach(child)
	d.nodes[parent].children = append(d.nodes[parent].children, child)
	d.nodes[child].parent = parent
}

// Prepend adds child as the first child of parent.
func (d *Document) Prepend(parent, child NodeID) {
	d.insertAt(parent, 0, child)
}

// InsertBefore places n immediately before ref. ref must be attached.
func (d *Document) InsertBefore(ref, n NodeID) {
	d.Detach(n)
	p := d.nodes[ref].parent
	d.insertAt(p, d.indexIn(p, ref), n)
}

// InsertAfter places n immediately after ref. ref must be attached.
func (d *Document) InsertAfter(ref, n NodeID) {
	d.Detach(n)
	p := d.nodes[ref].parent
	d.insertAt(p, d.indexIn(p, ref)+1, n)
}

// Attached reports whether id is still reachable from the root.
func (d *Document) Attached(id NodeID) bool {
	for id != None {
		if id == d.root {
			return true
		}
		id = d.nodes[id].parent
	}
	return false
}

// Walk visits id and its descendants in document order. Returning false from
// fn skips the node's children.
func (d *Document) Walk(id NodeID, fn func(NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range d.Children(id) {
		d.Walk(c, fn)
	}
}

// Select returns all descendant elements of root with the given tag.
func (d *Document) Select(root NodeID, tag string) []NodeID {
	var out []NodeID
	for _, c := range d.nodes[root].children {
		d.Walk(c, func(id NodeID) bool {
			if d.Tag(id) == tag {
				out = append(out, id)
			}
			return true
		})
	}
	return out
}

// SelectFirst returns the first descendant element of root with the given tag.
func (d *Document) SelectFirst(root NodeID, tag string) NodeID {
	found := None
	for _, c := range d.nodes[root].children {
		d.Walk(c, func(id NodeID) bool {
			if found != None {
				return false
			}
			if d.Tag(id) == tag {
				found = id
				return false
			}
			return true
		})
		if found != None {
			break
		}
	}
	return found
}

// TextContent concatenates every text node under id.
func (d *Document) TextContent(id NodeID) string {
	var buf strings.Builder
	d.Walk(id, func(n NodeID) bool {
		if d.nodes[n].kind == TextNode {
			buf.WriteString(d.nodes[n].data)
		}
		return true
	})
	return buf.String()
}
