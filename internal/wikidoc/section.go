package wikidoc

import "strings"

// Section is the heading at Heading plus every following sibling up to the
// next sibling heading of the same or a higher level. It is computed on
// demand and holds no content of its own.
//
// Parsoid wraps each section in a <section> element whose first child is the
// heading; a sibling wrapper whose heading is at or above the level also ends
// a section, so both the flat and the wrapped layouts resolve the same way.
type Section struct {
	doc     *Document
	heading NodeID
}

// SectionAt returns the section headed by id, which must be an h1-h6 element.
func (d *Document) SectionAt(id NodeID) Section {
	return Section{doc: d, heading: id}
}

// Sections lists every section in the document body in document order.
func (d *Document) Sections() []Section {
	var out []Section
	d.Walk(d.Body(), func(id NodeID) bool {
		if d.HeadingLevel(id) > 0 {
			out = append(out, Section{doc: d, heading: id})
			return false
		}
		return true
	})
	return out
}

func (s Section) Heading() NodeID { return s.heading }

// Document returns the tree the section lives in.
func (s Section) Document() *Document { return s.doc }

func (s Section) Level() int { return s.doc.HeadingLevel(s.heading) }

// Title is the trimmed text of the heading.
func (s Section) Title() string {
	return strings.TrimSpace(s.doc.TextContent(s.heading))
}

// boundaryLevel is the heading level a sibling node opens, or 0.
func (d *Document) boundaryLevel(id NodeID) int {
	if l := d.HeadingLevel(id); l > 0 {
		return l
	}
	if d.Tag(id) == "section" {
		if first := d.FirstElementChild(id); first != None {
			return d.HeadingLevel(first)
		}
	}
	return 0
}

// Content returns the sibling nodes after the heading that belong to the
// section.
func (s Section) Content() []NodeID {
	d := s.doc
	level := s.Level()
	var out []NodeID
	for n := d.NextSibling(s.heading); n != None; n = d.NextSibling(n) {
		if l := d.boundaryLevel(n); l > 0 && l <= level {
			break
		}
		out = append(out, n)
	}
	return out
}

// wrapper returns the enclosing Parsoid <section> when it holds exactly this
// section.
func (s Section) wrapper() NodeID {
	d := s.doc
	p := d.Parent(s.heading)
	if p == None || d.Tag(p) != "section" || d.FirstElementChild(p) != s.heading {
		return None
	}
	content := s.Content()
	kids := d.Children(p)
	if len(content) != len(kids)-1-d.indexIn(p, s.heading) {
		return None
	}
	return p
}

// Detach removes the heading and its content from the document.
func (s Section) Detach() {
	if w := s.wrapper(); w != None {
		s.doc.Detach(w)
		return
	}
	for _, n := range s.Content() {
		s.doc.Detach(n)
	}
	s.doc.Detach(s.heading)
}

// Anchor is the node that represents the section among its siblings: the
// Parsoid wrapper if there is one, otherwise the heading.
func (s Section) Anchor() NodeID {
	if w := s.wrapper(); w != None {
		return w
	}
	return s.heading
}

// Append adds n at the end of the section.
func (s Section) Append(n NodeID) {
	content := s.Content()
	if len(content) == 0 {
		s.doc.InsertAfter(s.heading, n)
		return
	}
	s.doc.InsertAfter(content[len(content)-1], n)
}

// Select returns elements with the given tag inside the section's content.
func (s Section) Select(tag string) []NodeID {
	var out []NodeID
	for _, c := range s.Content() {
		if s.doc.Tag(c) == tag {
			out = append(out, c)
		}
		out = append(out, s.doc.Select(c, tag)...)
	}
	return out
}

// SelectFirst returns the first element with the given tag in the content.
func (s Section) SelectFirst(tag string) NodeID {
	if found := s.Select(tag); len(found) > 0 {
		return found[0]
	}
	return None
}

// Templates lists transclusions in the section's content.
func (s Section) Templates() []Template {
	var out []Template
	for _, c := range s.Content() {
		out = append(out, s.doc.Templates(c)...)
	}
	return out
}

// SubSections lists the sections nested inside this one, in document order.
func (s Section) SubSections() []Section {
	d := s.doc
	level := s.Level()
	var out []Section
	for _, c := range s.Content() {
		d.Walk(c, func(id NodeID) bool {
			if l := d.HeadingLevel(id); l > level {
				out = append(out, Section{doc: d, heading: id})
				return false
			}
			return true
		})
	}
	return out
}

// SubHeadings returns the headings of the given level in the content.
func (s Section) SubHeadings(level int) []NodeID {
	var out []NodeID
	for _, sub := range s.SubSections() {
		if sub.Level() == level {
			out = append(out, sub.heading)
		}
	}
	return out
}

// IsEmpty reports whether nothing but the heading carries content: every
// other node is whitespace, a comment, or an element with no text and no
// transclusion inside it.
func (s Section) IsEmpty() bool {
	for _, n := range s.Content() {
		if !s.doc.isBlank(n) {
			return false
		}
	}
	return true
}

func (d *Document) isBlank(id NodeID) bool {
	switch d.Kind(id) {
	case CommentNode:
		return true
	case TextNode:
		return strings.TrimSpace(d.Data(id)) == ""
	case ElementNode:
		if strings.TrimSpace(d.TextContent(id)) != "" {
			return false
		}
		return len(d.Templates(id)) == 0
	}
	return true
}
