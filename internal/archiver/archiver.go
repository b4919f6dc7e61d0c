// Package archiver runs one pass over the MfD listing: it moves aging
// discussions to Old business and archives closed ones.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/archive"
	"github.com/dgallion1/mfdarchiver/internal/changegate"
	"github.com/dgallion1/mfdarchiver/internal/discussion"
	"github.com/dgallion1/mfdarchiver/internal/mediawiki"
	"github.com/dgallion1/mfdarchiver/internal/transplant"
	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
)

// ListingSummary is the edit summary for the listing page.
const ListingSummary = "Removing archived MfD debates and/or moving to old business"

// Wiki is what a run needs from the wiki. Fetch and FetchWikitext return
// mediawiki.ErrNotFound for missing pages.
type Wiki interface {
	archive.Converter
	Fetch(ctx context.Context, title string) (*wikidoc.Document, error)
	FetchWikitext(ctx context.Context, title string) (string, error)
	SaveWikitext(ctx context.Context, title, wikitext, summary string) error
}

// Options configures a run.
type Options struct {
	ListingPage   string
	ArchivePrefix string
	Skip          []string
}

// Archiver drives the lifecycle edits for one listing page.
type Archiver struct {
	wiki Wiki
	opts Options
	log  *slog.Logger
}

func New(wiki Wiki, opts Options, log *slog.Logger) *Archiver {
	return &Archiver{wiki: wiki, opts: opts, log: log}
}

// archiveGroup is the set of discussions bound for one archive page.
type archiveGroup struct {
	title       string
	discussions []*discussion.Discussion
}

// ListedDiscussions returns the discussion pages transcluded on the listing,
// oldest first. Transclusions outside the listing's subpages, and pages in
// skip, are ignored.
func ListedDiscussions(listing *wikidoc.Document, listingPage string, skip []string) []string {
	prefix := listingPage + "/"
	seen := make(map[string]bool)
	var titles []string
	for _, t := range listing.Templates(listing.Body()) {
		name := t.Name()
		if !strings.HasPrefix(name, prefix) || slices.Contains(skip, name) || seen[name] {
			continue
		}
		seen[name] = true
		titles = append(titles, name)
	}
	// The listing puts the newest day first.
	slices.Reverse(titles)
	return titles
}

// Run performs one pass at now. Any error it returns is fatal; problems with
// a single discussion are logged and recorded in the report instead.
func (a *Archiver) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := &Report{StartedAt: now}

	listing, err := a.wiki.Fetch(ctx, a.opts.ListingPage)
	if err != nil {
		return report, fmt.Errorf("fetch listing: %w", err)
	}
	titles := ListedDiscussions(listing, a.opts.ListingPage, a.opts.Skip)
	a.log.Info("discovered discussions", "listing", a.opts.ListingPage, "count", len(titles))

	var groups []*archiveGroup
	byTitle := make(map[string]*archiveGroup)

	for _, title := range titles {
		log := a.log.With("discussion", title)
		log.Info("processing discussion")

		d, err := a.load(ctx, title)
		if errors.Is(err, mediawiki.ErrNotFound) {
			log.Warn("discussion page missing, skipping")
			report.add(Outcome{Title: title, Status: StatusMissing})
			continue
		}
		var malformed *discussion.MalformedError
		if errors.As(err, &malformed) {
			log.Warn("malformed discussion, skipping", "error", err)
			report.add(Outcome{Title: title, Status: StatusMalformed, Error: err.Error()})
			continue
		}
		if err != nil {
			return report, err
		}

		state := discussion.Classify(d, now)
		log.Debug("classified", "state", state.String(), "start", d.Start, "close", d.Close)
		out := Outcome{Title: title, State: state.String()}

		switch state {
		case discussion.StateOpen:
			out.Status = StatusOpen
		case discussion.StateClosedPending:
			out.Status = StatusPending
		case discussion.StateAging:
			out.Status, err = a.moveToOldBusiness(listing, d, now)
			var structural *transplant.StructuralError
			if errors.As(err, &structural) {
				log.Warn("cannot move to old business", "error", err)
				out.Status = StatusStructural
				out.Error = err.Error()
			} else if err != nil {
				return report, err
			}
			if out.Status == StatusMovedOld {
				log.Info("moved to old business")
			}
		case discussion.StateToArchive:
			out.Status = StatusQueued
			out.Archive = archive.PageTitle(a.opts.ArchivePrefix, d.Start)
			g, ok := byTitle[out.Archive]
			if !ok {
				g = &archiveGroup{title: out.Archive}
				byTitle[out.Archive] = g
				groups = append(groups, g)
			}
			g.discussions = append(g.discussions, d)
			log.Info("going to archive", "archive", out.Archive, "result", d.Result)
		}
		report.add(out)
	}

	for _, g := range groups {
		if err := a.writeArchive(ctx, listing, g, report); err != nil {
			return report, err
		}
	}

	for _, region := range []string{transplant.OldBusiness, transplant.Current} {
		sec, err := transplant.FindSection(listing, region)
		if err != nil {
			a.log.Warn("listing region missing, not pruning", "error", err)
			continue
		}
		if n := transplant.CleanupEmptySections(sec, now); n > 0 {
			a.log.Info("pruned empty sections", "region", region, "removed", n)
		}
	}

	oldText, err := a.currentText(ctx, a.opts.ListingPage)
	if err != nil {
		return report, err
	}
	if err := a.saveGated(ctx, a.opts.ListingPage, oldText, listing, ListingSummary, report); err != nil {
		return report, err
	}
	return report, nil
}

// load fetches a discussion page and reads its timestamps and result.
func (a *Archiver) load(ctx context.Context, title string) (*discussion.Discussion, error) {
	doc, err := a.wiki.Fetch(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("fetch discussion: %w", err)
	}
	return discussion.FromDocument(title, doc)
}

// moveToOldBusiness moves d from Current discussions to Old business on the
// listing and prunes both regions.
func (a *Archiver) moveToOldBusiness(listing *wikidoc.Document, d *discussion.Discussion, now time.Time) (Status, error) {
	old, err := transplant.FindSection(listing, transplant.OldBusiness)
	if err != nil {
		return "", &transplant.StructuralError{Expected: transplant.OldBusiness, Title: d.Title}
	}
	if transplant.Contains(old, d.Title) {
		return StatusAlreadyOld, nil
	}
	current, err := transplant.FindSection(listing, transplant.Current)
	if err != nil {
		return "", &transplant.StructuralError{Expected: transplant.Current, Title: d.Title}
	}

	if err := transplant.AddToOldBusiness(old, d.Start, d.Title); err != nil {
		return "", err
	}
	if !transplant.RemoveFromCurrent(current, d.Title) {
		a.log.Warn("discussion not found under current discussions", "discussion", d.Title)
	}
	transplant.CleanupEmptySections(old, now)
	transplant.CleanupEmptySections(current, now)
	return StatusMovedOld, nil
}

// openArchive fetches the archive page, or builds a fresh one if it does not
// exist yet. It also returns the page's current wikitext, empty for a new page.
func (a *Archiver) openArchive(ctx context.Context, title string, start time.Time) (*wikidoc.Document, string, error) {
	doc, err := a.wiki.Fetch(ctx, title)
	if errors.Is(err, mediawiki.ErrNotFound) {
		a.log.Info("archive page missing, building it", "archive", title)
		doc, err = archive.Build(ctx, a.wiki, start.Year(), start.Month())
		if err != nil {
			return nil, "", err
		}
		return doc, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch archive: %w", err)
	}
	text, err := a.currentText(ctx, title)
	if err != nil {
		return nil, "", err
	}
	return doc, text, nil
}

// writeArchive adds each discussion in g to its archive page, removes it from
// the listing, and saves the archive page.
func (a *Archiver) writeArchive(ctx context.Context, listing *wikidoc.Document, g *archiveGroup, report *Report) error {
	start := g.discussions[0].Start.UTC()
	doc, oldText, err := a.openArchive(ctx, g.title, start)
	if err != nil {
		return err
	}

	var links []string
	for _, d := range g.discussions {
		if err := transplant.AddToArchive(doc, d.Start, d.Title, d.Result); err != nil {
			var structural *transplant.StructuralError
			if !errors.As(err, &structural) {
				return err
			}
			a.log.Warn("cannot archive discussion", "discussion", d.Title, "archive", g.title, "error", err)
			report.setStatus(d.Title, StatusStructural, err)
			continue
		}
		transplant.RemoveAll(listing, d.Title)
		report.setStatus(d.Title, StatusArchived, nil)
		links = append(links, "[["+d.Title+"]]")
	}
	if len(links) == 0 {
		return nil
	}

	return a.saveGated(ctx, g.title, oldText, doc, "Archiving: "+strings.Join(links, ", "), report)
}

// saveGated saves doc to title only if its wikitext differs from oldText.
func (a *Archiver) saveGated(ctx context.Context, title, oldText string, doc *wikidoc.Document, summary string, report *Report) error {
	newText, err := a.wiki.ToWikitext(ctx, doc)
	if err != nil {
		return fmt.Errorf("render %s: %w", title, err)
	}

	log := a.log.With("page", title)
	decision := changegate.Compare(title, oldText, newText)
	log.Info("diff", "changed", decision.Changed)
	decision.Log(log)
	if !decision.Changed {
		return nil
	}
	if err := a.wiki.SaveWikitext(ctx, title, newText, summary); err != nil {
		return fmt.Errorf("save %s: %w", title, err)
	}
	log.Info("saved edit", "summary", summary)
	report.PagesSaved = append(report.PagesSaved, title)
	return nil
}

// currentText returns the persisted wikitext of title, empty if the page does
// not exist.
func (a *Archiver) currentText(ctx context.Context, title string) (string, error) {
	text, err := a.wiki.FetchWikitext(ctx, title)
	if errors.Is(err, mediawiki.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch wikitext %s: %w", title, err)
	}
	return text, nil
}
