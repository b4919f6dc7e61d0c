package archiver

import "time"

// Status is what a run did with one discussion.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPending    Status = "closed_pending"
	StatusMovedOld   Status = "moved_to_old_business"
	StatusAlreadyOld Status = "already_in_old_business"
	StatusQueued     Status = "queued_for_archive"
	StatusArchived   Status = "archived"
	StatusMalformed  Status = "malformed"
	StatusMissing    Status = "missing"
	StatusStructural Status = "structural_error"
)

// Outcome records the handling of a single discussion.
type Outcome struct {
	Title   string `json:"title"`
	State   string `json:"state,omitempty"`
	Status  Status `json:"status"`
	Archive string `json:"archive,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	Outcomes   []Outcome `json:"outcomes"`
	PagesSaved []string  `json:"pages_saved"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Processed  int `json:"processed"`
	Malformed  int `json:"malformed"`
	Aged       int `json:"aged"`
	Archived   int `json:"archived"`
	Skipped    int `json:"skipped"`
	PagesSaved int `json:"pages_saved"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// setStatus updates the outcome recorded for title.
func (r *Report) setStatus(title string, status Status, err error) {
	for i := range r.Outcomes {
		if r.Outcomes[i].Title != title {
			continue
		}
		r.Outcomes[i].Status = status
		if err != nil {
			r.Outcomes[i].Error = err.Error()
		}
		return
	}
}

// Outcome returns the outcome recorded for title.
func (r *Report) Outcome(title string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Title == title {
			return o, true
		}
	}
	return Outcome{}, false
}

// Counts summarizes the report.
func (r *Report) Counts() Counts {
	c := Counts{Processed: len(r.Outcomes), PagesSaved: len(r.PagesSaved)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusMalformed:
			c.Malformed++
		case StatusMovedOld:
			c.Aged++
		case StatusArchived:
			c.Archived++
		case StatusMissing, StatusStructural:
			c.Skipped++
		}
	}
	return c
}
