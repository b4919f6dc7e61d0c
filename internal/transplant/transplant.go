// Package transplant moves discussion entries between regions of a listing
// page and into month archive pages.
package transplant

import (
	"fmt"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
)

// Region headings on the listing page.
const (
	OldBusiness = "Old business"
	Current     = "Current discussions"
)

// DayLevel is the heading level of per-day headings.
const DayLevel = 3

// StructuralError means a heading the edit depends on is not in the document.
type StructuralError struct {
	Expected string
	Title    string // discussion being moved, if any
}

func (e *StructuralError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("cannot place %s: heading %q not found", e.Title, e.Expected)
	}
	return fmt.Sprintf("heading %q not found", e.Expected)
}

// DayHeading formats t the way day headings are written: "May 20, 2021".
func DayHeading(t time.Time) string {
	return t.UTC().Format("January 2, 2006")
}

// FindSection returns the first section whose heading text is title.
func FindSection(doc *wikidoc.Document, title string) (wikidoc.Section, error) {
	for _, s := range doc.Sections() {
		if s.Title() == title {
			return s, nil
		}
	}
	return wikidoc.Section{}, &StructuralError{Expected: title}
}

// Contains reports whether sec holds a transclusion of title.
func Contains(sec wikidoc.Section, title string) bool {
	for _, t := range sec.Templates() {
		if t.Name() == title {
			return true
		}
	}
	return false
}

// AddToArchive adds "[[title]] (result)" at the top of the list under the
// day heading for start, creating the list if the day has none yet.
func AddToArchive(doc *wikidoc.Document, start time.Time, title, result string) error {
	date := DayHeading(start)
	sec, err := FindSection(doc, date)
	if err != nil {
		return &StructuralError{Expected: date, Title: title}
	}

	li := doc.CreateElement("li")
	doc.Append(li, doc.NewWikiLink(title))
	if result != "" {
		doc.Append(li, doc.CreateText(fmt.Sprintf(" (%s)", result)))
	}

	if list := sec.SelectFirst("ul"); list != wikidoc.None {
		doc.Prepend(list, li)
		return nil
	}
	ul := doc.CreateElement("ul")
	doc.Append(ul, li)
	sec.Append(ul)
	return nil
}

// AddToOldBusiness transcludes title under sec beneath the day heading for
// start. It does nothing if sec already transcludes title.
//
// A missing day heading is inserted before the first existing day heading,
// not in date order.
func AddToOldBusiness(sec wikidoc.Section, start time.Time, title string) error {
	if Contains(sec, title) {
		return nil
	}
	doc := sec.Document()
	date := DayHeading(start)
	tmpl := doc.NewTemplate(title)

	days := sec.SubHeadings(DayLevel)
	for _, h := range days {
		if doc.SectionAt(h).Title() == date {
			doc.InsertAfter(h, doc.CreateText("\n"))
			doc.InsertAfter(h, tmpl.Node())
			return nil
		}
	}

	heading, err := doc.NewHeading(DayLevel, date)
	if err != nil {
		return err
	}
	if len(days) > 0 {
		first := doc.SectionAt(days[0]).Anchor()
		doc.InsertBefore(first, heading)
		doc.InsertBefore(first, tmpl.Node())
		return nil
	}
	sec.Append(heading)
	doc.InsertAfter(heading, tmpl.Node())
	return nil
}

// RemoveFromCurrent detaches the first transclusion of title under sec and
// reports whether one was found.
func RemoveFromCurrent(sec wikidoc.Section, title string) bool {
	for _, t := range sec.Templates() {
		if t.Name() == title {
			t.Detach()
			return true
		}
	}
	return false
}

// RemoveAll detaches every transclusion of title in doc.
func RemoveAll(doc *wikidoc.Document, title string) int {
	n := 0
	for _, t := range doc.Templates(doc.Body()) {
		if t.Name() == title {
			t.Detach()
			n++
		}
	}
	return n
}

// CleanupEmptySections removes day sub-sections of sec that hold nothing but
// their heading. The heading for today is kept so same-day additions have a
// place to land. Deeper headings, such as those inside a transcluded
// discussion, are never touched. It returns the number of sections removed.
func CleanupEmptySections(sec wikidoc.Section, today time.Time) int {
	doc := sec.Document()
	keep := DayHeading(today)
	removed := 0
	for _, h := range sec.SubHeadings(DayLevel) {
		if !doc.Attached(h) {
			continue
		}
		sub := doc.SectionAt(h)
		if sub.Title() == keep {
			continue
		}
		if sub.IsEmpty() {
			sub.Detach()
			removed++
		}
	}
	return removed
}
