package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/archive"
	"github.com/dgallion1/mfdarchiver/internal/mediawiki"
	"github.com/dgallion1/mfdarchiver/internal/transplant"
	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
)

const (
	listingPage   = "Wikipedia:Miscellany for deletion"
	archivePrefix = "Wikipedia:Miscellany for deletion/Archived debates/"
	frontMatter   = "Wikipedia:Miscellany for deletion/Front matter"
)

var now = time.Date(2021, time.June, 4, 12, 0, 0, 0, time.UTC)

type savedEdit struct {
	title   string
	summary string
}

// memWiki keeps pages as rendered HTML, which doubles as their text form.
type memWiki struct {
	pages map[string]string
	saves []savedEdit
}

func newMemWiki() *memWiki {
	return &memWiki{pages: map[string]string{}}
}

func (w *memWiki) put(t *testing.T, title, html string) {
	t.Helper()
	w.pages[title] = mustDoc(t, html).String()
}

func (w *memWiki) Fetch(_ context.Context, title string) (*wikidoc.Document, error) {
	text, ok := w.pages[title]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", title, mediawiki.ErrNotFound)
	}
	return wikidoc.ParseString(text)
}

func (w *memWiki) FetchWikitext(_ context.Context, title string) (string, error) {
	text, ok := w.pages[title]
	if !ok {
		return "", mediawiki.ErrNotFound
	}
	return text, nil
}

func (w *memWiki) ToWikitext(_ context.Context, doc *wikidoc.Document) (string, error) {
	return doc.String(), nil
}

func (w *memWiki) ToDocument(_ context.Context, text string) (*wikidoc.Document, error) {
	return wikidoc.ParseString(text)
}

func (w *memWiki) SaveWikitext(_ context.Context, title, wikitext, summary string) error {
	w.pages[title] = wikitext
	w.saves = append(w.saves, savedEdit{title: title, summary: summary})
	return nil
}

func (w *memWiki) doc(t *testing.T, title string) *wikidoc.Document {
	t.Helper()
	text, ok := w.pages[title]
	if !ok {
		t.Fatalf("page %s does not exist", title)
	}
	return mustDoc(t, text)
}

func mustDoc(t *testing.T, s string) *wikidoc.Document {
	t.Helper()
	d, err := wikidoc.ParseString(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func sub(name string) string { return listingPage + "/" + name }

func tmpl(name string) string {
	return `<div typeof="mw:Transclusion" data-mw='{"parts":[{"template":{"target":{"wt":"` + name +
		`","href":"` + wikidoc.HrefForTitle(name) + `"},"params":{},"i":0}}]}'>` + name + `</div>`
}

func openDiscussion(started string) string {
	return `<div><p>Nominated. Nominator ` + started + `</p><p>Keep. Someone 23:59, 3 June 2021 (UTC)</p></div>`
}

func closedDiscussion(result, closed, started string) string {
	return `<div><p>The following discussion is an archived debate of the proposed deletion.</p>` +
		`<p><b>Please do not modify it.</b> The result of the discussion was <b>` + result + `</b>. Closer ` + closed + `</p>` +
		`<p>Nominated. Nominator ` + started + `</p></div>`
}

func newTestArchiver(w *memWiki) *Archiver {
	opts := Options{ListingPage: listingPage, ArchivePrefix: archivePrefix, Skip: []string{frontMatter}}
	return New(w, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dayTitles(d *wikidoc.Document, sec wikidoc.Section) []string {
	var out []string
	for _, h := range sec.SubHeadings(transplant.DayLevel) {
		out = append(out, d.SectionAt(h).Title())
	}
	return out
}

func section(t *testing.T, d *wikidoc.Document, title string) wikidoc.Section {
	t.Helper()
	s, err := transplant.FindSection(d, title)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// seedScenario lists one open, one malformed, one aging and one archivable
// discussion.
func seedScenario(t *testing.T, w *memWiki) {
	t.Helper()
	w.put(t, listingPage, tmpl(frontMatter)+
		`<h2>Current discussions</h2>`+
		`<h3>June 3, 2021</h3>`+tmpl(sub("C"))+tmpl(sub("M"))+
		`<h3>May 25, 2021</h3>`+tmpl(sub("A"))+
		`<h2>Old business</h2>`+
		`<h3>May 10, 2021</h3>`+tmpl(sub("B"))+
		`<h2>Closed discussions</h2><p>footer</p>`)
	w.put(t, sub("C"), openDiscussion("09:00, 3 June 2021 (UTC)"))
	w.put(t, sub("M"), `<p>Only one signature 09:00, 3 June 2021 (UTC)</p>`)
	w.put(t, sub("A"), openDiscussion("09:00, 25 May 2021 (UTC)"))
	w.put(t, sub("B"), closedDiscussion("Delete", "10:00, 1 June 2021 (UTC)", "09:00, 10 May 2021 (UTC)"))
}

func TestListedDiscussions(t *testing.T) {
	d := mustDoc(t, tmpl(frontMatter)+tmpl(sub("New"))+tmpl("Template:Other")+
		tmpl(sub("Old"))+tmpl(sub("New")))
	got := ListedDiscussions(d, listingPage, []string{frontMatter})
	want := []string{sub("Old"), sub("New")}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	w := newMemWiki()
	seedScenario(t, w)

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	archiveTitle := archivePrefix + "May 2021"
	if len(w.saves) != 2 {
		t.Fatalf("expected 2 saves, got %d: %v", len(w.saves), w.saves)
	}
	if w.saves[0].title != archiveTitle || w.saves[0].summary != "Archiving: [["+sub("B")+"]]" {
		t.Errorf("unexpected archive save %+v", w.saves[0])
	}
	if w.saves[1].title != listingPage || w.saves[1].summary != ListingSummary {
		t.Errorf("unexpected listing save %+v", w.saves[1])
	}

	arch := w.doc(t, archiveTitle)
	li := section(t, arch, "May 10, 2021").SelectFirst("li")
	if li == wikidoc.None {
		t.Fatal("expected a list item under May 10, 2021")
	}
	if got := arch.TextContent(li); got != sub("B")+" (Delete)" {
		t.Errorf("unexpected list item %q", got)
	}

	listing := w.doc(t, listingPage)
	old := section(t, listing, transplant.OldBusiness)
	if !transplant.Contains(old, sub("A")) || transplant.Contains(old, sub("B")) {
		t.Error("expected A, and not B, under Old business")
	}
	if got := dayTitles(listing, old); !slices.Equal(got, []string{"May 25, 2021"}) {
		t.Errorf("unexpected Old business days %v", got)
	}
	current := section(t, listing, transplant.Current)
	if transplant.Contains(current, sub("A")) {
		t.Error("expected A removed from Current discussions")
	}
	if !transplant.Contains(current, sub("C")) || !transplant.Contains(current, sub("M")) {
		t.Error("expected C and M left under Current discussions")
	}
	if got := dayTitles(listing, current); !slices.Equal(got, []string{"June 3, 2021"}) {
		t.Errorf("unexpected Current days %v", got)
	}
	if !strings.Contains(listing.TextContent(listing.Body()), "footer") {
		t.Error("expected unrelated content preserved")
	}

	want := Counts{Processed: 4, Malformed: 1, Aged: 1, Archived: 1, PagesSaved: 2}
	if got := report.Counts(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if o, _ := report.Outcome(sub("C")); o.Status != StatusOpen {
		t.Errorf("expected C open, got %q", o.Status)
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	w := newMemWiki()
	seedScenario(t, w)
	a := newTestArchiver(w)
	if _, err := a.Run(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.saves = nil

	report, err := a.Run(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) != 0 {
		t.Errorf("expected no saves, got %v", w.saves)
	}
	if o, _ := report.Outcome(sub("A")); o.Status != StatusAlreadyOld {
		t.Errorf("expected A already in Old business, got %q", o.Status)
	}
}

func TestRun_NothingToDo(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Current discussions</h2><h3>June 3, 2021</h3>`+tmpl(sub("C"))+`<h2>Old business</h2>`)
	w.put(t, sub("C"), openDiscussion("09:00, 3 June 2021 (UTC)"))

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) != 0 || len(report.PagesSaved) != 0 {
		t.Errorf("expected no saves, got %v", w.saves)
	}
}

func TestRun_ClosedPendingIsLeftAlone(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Current discussions</h2><h3>May 20, 2021</h3>`+tmpl(sub("P"))+`<h2>Old business</h2>`)
	w.put(t, sub("P"), closedDiscussion("Keep", "09:00, 4 June 2021 (UTC)", "09:00, 20 May 2021 (UTC)"))

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) != 0 {
		t.Errorf("expected no saves, got %v", w.saves)
	}
	if o, _ := report.Outcome(sub("P")); o.Status != StatusPending {
		t.Errorf("expected pending, got %q", o.Status)
	}
}

func TestRun_ExistingArchivePrepends(t *testing.T) {
	w := newMemWiki()
	archiveTitle := archivePrefix + "May 2021"
	existing := archive.Skeleton(2021, time.May)
	if err := transplant.AddToArchive(existing, time.Date(2021, time.May, 10, 0, 0, 0, 0, time.UTC), sub("Earlier"), "Keep"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.pages[archiveTitle] = existing.String()
	w.put(t, listingPage, `<h2>Old business</h2><h3>May 10, 2021</h3>`+tmpl(sub("B")))
	w.put(t, sub("B"), closedDiscussion("Delete", "10:00, 1 June 2021 (UTC)", "09:00, 10 May 2021 (UTC)"))

	if _, err := newTestArchiver(w).Run(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	arch := w.doc(t, archiveTitle)
	items := section(t, arch, "May 10, 2021").Select("li")
	if len(items) != 2 {
		t.Fatalf("expected 2 list items, got %d", len(items))
	}
	if got := arch.TextContent(items[0]); got != sub("B")+" (Delete)" {
		t.Errorf("expected newest entry first, got %q", got)
	}
}

func TestRun_SameDayArchivedOldestFirst(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Old business</h2><h3>May 10, 2021</h3>`+tmpl(sub("X"))+tmpl(sub("Y")))
	w.put(t, sub("X"), closedDiscussion("Delete", "10:00, 1 June 2021 (UTC)", "09:00, 10 May 2021 (UTC)"))
	w.put(t, sub("Y"), closedDiscussion("Keep", "10:00, 1 June 2021 (UTC)", "08:00, 10 May 2021 (UTC)"))

	if _, err := newTestArchiver(w).Run(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) == 0 {
		t.Fatal("expected an archive save")
	}
	wantSummary := "Archiving: [[" + sub("Y") + "]], [[" + sub("X") + "]]"
	if w.saves[0].summary != wantSummary {
		t.Errorf("expected %q, got %q", wantSummary, w.saves[0].summary)
	}
	arch := w.doc(t, archivePrefix+"May 2021")
	items := section(t, arch, "May 10, 2021").Select("li")
	if len(items) != 2 || arch.TextContent(items[0]) != sub("X")+" (Delete)" {
		t.Errorf("expected X prepended after Y")
	}
}

func TestRun_ArchiveMissingDayHeading(t *testing.T) {
	w := newMemWiki()
	archiveTitle := archivePrefix + "May 2021"
	w.put(t, archiveTitle, `<h3>May 11, 2021</h3>`)
	w.put(t, listingPage, `<h2>Old business</h2><h3>May 10, 2021</h3>`+tmpl(sub("B")))
	w.put(t, sub("B"), closedDiscussion("Delete", "10:00, 1 June 2021 (UTC)", "09:00, 10 May 2021 (UTC)"))

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) != 0 {
		t.Errorf("expected no saves, got %v", w.saves)
	}
	o, _ := report.Outcome(sub("B"))
	if o.Status != StatusStructural || o.Error == "" {
		t.Errorf("expected structural error outcome, got %+v", o)
	}
	if !transplant.Contains(section(t, w.doc(t, listingPage), transplant.OldBusiness), sub("B")) {
		t.Error("expected B kept on the listing")
	}
}

func TestRun_MissingDiscussionSkipped(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Current discussions</h2><h3>June 3, 2021</h3>`+tmpl(sub("Gone"))+`<h2>Old business</h2>`)

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o, _ := report.Outcome(sub("Gone")); o.Status != StatusMissing {
		t.Errorf("expected missing, got %q", o.Status)
	}
	if got := report.Counts().Skipped; got != 1 {
		t.Errorf("expected 1 skipped, got %d", got)
	}
}

func TestRun_AgingWithoutOldBusiness(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Current discussions</h2><h3>May 25, 2021</h3>`+tmpl(sub("A")))
	w.put(t, sub("A"), openDiscussion("09:00, 25 May 2021 (UTC)"))

	report, err := newTestArchiver(w).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, _ := report.Outcome(sub("A"))
	if o.Status != StatusStructural {
		t.Errorf("expected structural error, got %q", o.Status)
	}
	if len(w.saves) != 0 {
		t.Errorf("expected no saves, got %v", w.saves)
	}
}

func TestRun_ListingMissingIsFatal(t *testing.T) {
	_, err := newTestArchiver(newMemWiki()).Run(context.Background(), now)
	if !errors.Is(err, mediawiki.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRun_ClosedMayDiscussionArchivedUnderStartDay(t *testing.T) {
	w := newMemWiki()
	w.put(t, listingPage, `<h2>Current discussions</h2><h2>Old business</h2><h3>May 20, 2021</h3>`+tmpl(sub("Title")))
	w.put(t, sub("Title"), closedDiscussion("Delete", "10:00, 1 June 2021 (UTC)", "09:00, 20 May 2021 (UTC)"))

	at := time.Date(2021, time.June, 2, 5, 0, 0, 0, time.UTC)
	report, err := newTestArchiver(w).Run(context.Background(), at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, _ := report.Outcome(sub("Title"))
	if o.Status != StatusArchived || o.Archive != archivePrefix+"May 2021" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	arch := w.doc(t, o.Archive)
	li := section(t, arch, "May 20, 2021").SelectFirst("li")
	if li == wikidoc.None || arch.TextContent(li) != sub("Title")+" (Delete)" {
		t.Errorf("expected archived list item under May 20, 2021")
	}
}

// renderingWiki stamps every rendered text so saves can be traced back to the
// render that produced them.
type renderingWiki struct {
	*memWiki
	renders int
	last    string
	stale   []string
}

func (w *renderingWiki) ToWikitext(ctx context.Context, doc *wikidoc.Document) (string, error) {
	w.renders++
	w.last = fmt.Sprintf("%s<!-- render %d -->", doc.String(), w.renders)
	return w.last, nil
}

func (w *renderingWiki) SaveWikitext(ctx context.Context, title, wikitext, summary string) error {
	if wikitext != w.last {
		w.stale = append(w.stale, title)
	}
	return w.memWiki.SaveWikitext(ctx, title, wikitext, summary)
}

func TestRun_SavesTheComparedText(t *testing.T) {
	w := &renderingWiki{memWiki: newMemWiki()}
	seedScenario(t, w.memWiki)

	if _, err := New(w, Options{ListingPage: listingPage, ArchivePrefix: archivePrefix, Skip: []string{frontMatter}},
		slog.New(slog.NewTextHandler(io.Discard, nil))).Run(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.saves) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(w.saves))
	}
	if len(w.stale) != 0 {
		t.Errorf("expected each save to send its compared render, got stale saves for %v", w.stale)
	}
	// One render to build the new archive page, then one per gated page.
	if w.renders != 3 {
		t.Errorf("expected 3 renders, got %d", w.renders)
	}
}
