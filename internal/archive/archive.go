// Package archive builds month archive pages.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/transplant"
	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
)

// Converter turns documents into wikitext and back.
type Converter interface {
	ToWikitext(ctx context.Context, doc *wikidoc.Document) (string, error)
	ToDocument(ctx context.Context, wikitext string) (*wikidoc.Document, error)
}

// TOCTemplate floats the table of contents on archive pages.
const TOCTemplate = "Template:TOCright"

// PageTitle returns the archive page for discussions started at start, e.g.
// prefix + "June 2021".
func PageTitle(prefix string, start time.Time) string {
	return prefix + start.UTC().Format("January 2006")
}

// DaysInMonth returns the number of days in month of year.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Skeleton builds an archive page tree: the TOC template followed by one
// day heading per day of the month, last day first.
func Skeleton(year int, month time.Month) *wikidoc.Document {
	doc := wikidoc.NewDocument()
	body := doc.Body()
	doc.Append(body, doc.NewTemplate(TOCTemplate).Node())
	for day := DaysInMonth(year, month); day >= 1; day-- {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		// Level is constant and valid.
		h, _ := doc.NewHeading(transplant.DayLevel, transplant.DayHeading(date))
		doc.Append(body, h)
	}
	return doc
}

// Build returns a fresh archive page for month of year. The skeleton is
// round-tripped through conv so the headings come back with the section
// markup the converter attaches.
func Build(ctx context.Context, conv Converter, year int, month time.Month) (*wikidoc.Document, error) {
	wikitext, err := conv.ToWikitext(ctx, Skeleton(year, month))
	if err != nil {
		return nil, fmt.Errorf("archive skeleton to wikitext: %w", err)
	}
	doc, err := conv.ToDocument(ctx, wikitext)
	if err != nil {
		return nil, fmt.Errorf("archive skeleton to html: %w", err)
	}
	return doc, nil
}
