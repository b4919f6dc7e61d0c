package wikidoc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Template is a view over a Parsoid transclusion element: the element whose
// typeof contains mw:Transclusion and whose data-mw describes the call.
type Template struct {
	doc *Document
	id  NodeID
}

type dataMW struct {
	Parts []json.RawMessage `json:"parts"`
}

type templatePart struct {
	Template *struct {
		Target struct {
			Wt   string `json:"wt"`
			Href string `json:"href,omitempty"`
		} `json:"target"`
	} `json:"template"`
}

// Node returns the transclusion's first element.
func (t Template) Node() NodeID { return t.id }

// Name returns the normalized title of the first transcluded page, e.g.
// "Wikipedia:Miscellany for deletion/Foo" or "Template:TOCright".
func (t Template) Name() string {
	raw, _ := t.doc.Attr(t.id, "data-mw")
	var mw dataMW
	if err := json.Unmarshal([]byte(raw), &mw); err != nil {
		return ""
	}
	for _, p := range mw.Parts {
		var part templatePart
		if err := json.Unmarshal(p, &part); err != nil || part.Template == nil {
			continue
		}
		if href := part.Template.Target.Href; href != "" {
			return TitleFromHref(href)
		}
		return strings.TrimSpace(part.Template.Target.Wt)
	}
	return ""
}

// Detach removes the transclusion, including the sibling elements Parsoid
// ties to it through a shared about id.
func (t Template) Detach() {
	d := t.doc
	if about, ok := d.Attr(t.id, "about"); ok && about != "" {
		for next := d.NextSibling(t.id); next != None; {
			following := d.NextSibling(next)
			if d.Kind(next) == ElementNode {
				a, _ := d.Attr(next, "about")
				if a != about {
					break
				}
				d.Detach(next)
			} else if d.Kind(next) != TextNode || strings.TrimSpace(d.Data(next)) != "" {
				break
			}
			next = following
		}
	}
	d.Detach(t.id)
}

// IsTemplate reports whether id is the head element of a transclusion.
func (d *Document) IsTemplate(id NodeID) bool {
	if d.Kind(id) != ElementNode {
		return false
	}
	typeOf, _ := d.Attr(id, "typeof")
	if !strings.Contains(typeOf, "mw:Transclusion") {
		return false
	}
	_, ok := d.Attr(id, "data-mw")
	return ok
}

// Templates lists the transclusions under root in document order.
func (d *Document) Templates(root NodeID) []Template {
	var out []Template
	d.Walk(root, func(id NodeID) bool {
		if d.IsTemplate(id) {
			out = append(out, Template{doc: d, id: id})
		}
		return true
	})
	return out
}

// NewTemplate builds a detached transclusion of the named page.
func (d *Document) NewTemplate(name string) Template {
	part := map[string]any{
		"template": map[string]any{
			"target": map[string]string{"wt": name, "href": HrefForTitle(name)},
			"params": map[string]any{},
			"i":      0,
		},
	}
	raw, _ := json.Marshal(map[string]any{"parts": []any{part}})
	id := d.CreateElement("span")
	d.SetAttr(id, "typeof", "mw:Transclusion")
	d.SetAttr(id, "about", fmt.Sprintf("#mwt%d", 100000+int(id)))
	d.SetAttr(id, "data-mw", string(raw))
	return Template{doc: d, id: id}
}

// NewWikiLink builds a detached internal link to title.
func (d *Document) NewWikiLink(title string) NodeID {
	a := d.CreateElement("a")
	d.SetAttr(a, "rel", "mw:WikiLink")
	d.SetAttr(a, "href", HrefForTitle(title))
	d.SetAttr(a, "title", title)
	d.Append(a, d.CreateText(title))
	return a
}

// NewHeading builds a detached h1-h6 element holding text.
func (d *Document) NewHeading(level int, text string) (NodeID, error) {
	if level < 1 || level > 6 {
		return None, fmt.Errorf("invalid heading level %d", level)
	}
	h := d.CreateElement(fmt.Sprintf("h%d", level))
	d.Append(h, d.CreateText(text))
	return h, nil
}

// HrefForTitle returns the relative Parsoid href for a page title.
func HrefForTitle(title string) string {
	segments := strings.Split(strings.ReplaceAll(title, " ", "_"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "./" + strings.Join(segments, "/")
}

// TitleFromHref reverses HrefForTitle.
func TitleFromHref(href string) string {
	t := strings.TrimPrefix(href, "./")
	if u, err := url.PathUnescape(t); err == nil {
		t = u
	}
	return strings.ReplaceAll(t, "_", " ")
}
