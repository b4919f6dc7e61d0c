package wikidoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads an HTML document (as served by Parsoid) into an arena tree.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{}
	var copyNode func(n *html.Node) NodeID
	copyNode = func(n *html.Node) NodeID {
		var id NodeID
		switch n.Type {
		case html.DocumentNode:
			id = d.add(node{kind: DocumentNode})
		case html.ElementNode:
			id = d.add(node{kind: ElementNode, data: n.Data, attrs: append([]html.Attribute(nil), n.Attr...)})
		case html.TextNode:
			id = d.add(node{kind: TextNode, data: n.Data})
		case html.CommentNode:
			id = d.add(node{kind: CommentNode, data: n.Data})
		case html.DoctypeNode:
			id = d.add(node{kind: DoctypeNode, data: n.Data, attrs: append([]html.Attribute(nil), n.Attr...)})
		default:
			return None
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := copyNode(c); child != None {
				d.Append(id, child)
			}
		}
		return id
	}
	d.root = copyNode(root)
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the attached tree as HTML.
func (d *Document) Render(w io.Writer) error {
	var build func(id NodeID) *html.Node
	build = func(id NodeID) *html.Node {
		n := d.nodes[id]
		out := &html.Node{Data: n.data, Attr: append([]html.Attribute(nil), n.attrs...)}
		switch n.kind {
		case DocumentNode:
			out.Type = html.DocumentNode
		case ElementNode:
			out.Type = html.ElementNode
		case TextNode:
			out.Type = html.TextNode
		case CommentNode:
			out.Type = html.CommentNode
		case DoctypeNode:
			out.Type = html.DoctypeNode
		}
		for _, c := range n.children {
			out.AppendChild(build(c))
		}
		return out
	}
	if err := html.Render(w, build(d.root)); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// String renders the document, returning "" if rendering fails.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// HeadingLevel returns 1-6 for h1-h6 elements and 0 otherwise.
func (d *Document) HeadingLevel(id NodeID) int {
	return headingLevel(d.Tag(id))
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}
