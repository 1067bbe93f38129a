// Package calendar provides the commitment-lookup port used to derive the
// baseline wake time, plus an ICS-over-HTTP source.
package calendar

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/rotisserie/eris"
)

// Commitment is one calendar entry on a given date.
type Commitment struct {
	Time     time.Time
	Title    string
	Location string
	Notes    string
}

// Source looks up the commitments for a calendar date.
type Source interface {
	Commitments(ctx context.Context, date time.Time) ([]Commitment, error)
}

// FilterIgnored drops commitments whose notes contain the ignore marker.
func FilterIgnored(commitments []Commitment, marker string) []Commitment {
	if marker == "" {
		return commitments
	}
	kept := commitments[:0:0]
	for _, c := range commitments {
		if strings.Contains(c.Notes, marker) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// ICSSource fetches one or more ICS feeds over HTTP and flattens their events
// into commitments.
type ICSSource struct {
	urls   []string
	client *http.Client
}

// NewICSSource constructs a source for the given feed URLs. client may be nil
// for a default with a sane timeout.
func NewICSSource(urls []string, client *http.Client) *ICSSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ICSSource{urls: urls, client: client}
}

// Commitments implements Source, returning the events falling on date sorted
// by start time.
func (s *ICSSource) Commitments(ctx context.Context, date time.Time) ([]Commitment, error) {
	var commitments []Commitment
	for _, url := range s.urls {
		events, err := s.fetch(ctx, url, date)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch calendar %s", url)
		}
		commitments = append(commitments, events...)
	}

	sort.Slice(commitments, func(i, k int) bool {
		return commitments[i].Time.Before(commitments[k].Time)
	})
	return commitments, nil
}

func (s *ICSSource) fetch(ctx context.Context, url string, date time.Time) ([]Commitment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request calendar feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("calendar feed returned %s", resp.Status)
	}

	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "parse ics feed")
	}

	return EventsOn(cal, date), nil
}

// EventsOn extracts the commitments from a parsed calendar that start on the
// given date (in that date's location).
func EventsOn(cal *ics.Calendar, date time.Time) []Commitment {
	var commitments []Commitment
	for _, event := range cal.Events() {
		start, err := event.GetStartAt()
		if err != nil {
			continue
		}
		start = start.In(date.Location())
		if !sameDate(start, date) {
			continue
		}
		commitments = append(commitments, Commitment{
			Time:     start,
			Title:    propertyValue(event, ics.ComponentPropertySummary),
			Location: propertyValue(event, ics.ComponentPropertyLocation),
			Notes:    propertyValue(event, ics.ComponentPropertyDescription),
		})
	}
	return commitments
}

func propertyValue(event *ics.VEvent, name ics.ComponentProperty) string {
	prop := event.GetProperty(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
