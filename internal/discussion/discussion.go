package discussion

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
)

// ClosedBanner is the phrase the closing template leaves on a closed discussion.
const ClosedBanner = "The following discussion is an archived debate"

// Discussion is one deletion discussion tracked through its lifecycle.
type Discussion struct {
	Title  string
	Start  time.Time
	Close  time.Time // zero while open
	Result string    // empty when no outcome was found
	Doc    *wikidoc.Document
}

// MalformedError means the discussion text has too few signatures to date it.
type MalformedError struct {
	Title string
	Found int
	Err   error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discussion %s is malformed: %v", e.Title, e.Err)
	}
	return fmt.Sprintf("discussion %s is malformed: found %d timestamps, need 2", e.Title, e.Found)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (d *Discussion) IsClosed() bool { return !d.Close.IsZero() }

// FromDocument reads the start and close times and the result out of a
// discussion page.
//
// Only the first two timestamps matter. On a closed discussion the closer
// signs first, so the first is the close time and the second the nomination;
// on an open one the first is the nomination.
func FromDocument(title string, doc *wikidoc.Document) (*Discussion, error) {
	text := doc.TextContent(doc.Body())
	stamps, err := ExtractTimestamps(text, 2)
	if err != nil {
		return nil, &MalformedError{Title: title, Err: err}
	}
	if len(stamps) < 2 {
		return nil, &MalformedError{Title: title, Found: len(stamps)}
	}

	d := &Discussion{Title: title, Doc: doc}
	if strings.Contains(text, ClosedBanner) {
		d.Close = stamps[0]
		d.Start = stamps[1]
		d.Result = ExtractResult(doc)
	} else {
		d.Start = stamps[0]
	}
	return d, nil
}

// ExtractResult returns the text of the second bold run, which is where the
// closing template puts the outcome ("The result of the discussion was
// '''Delete'''").
func ExtractResult(doc *wikidoc.Document) string {
	bolds := doc.Select(doc.Body(), "b")
	if len(bolds) < 2 {
		return ""
	}
	return strings.TrimSpace(doc.TextContent(bolds[1]))
}
