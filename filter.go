package diary

import (
	"strings"
	"time"
)

// DiaryFilter narrows a listing. Zero value matches everything and is
// reported as inactive. Date bounds are inclusive whole days.
type DiaryFilter struct {
	DateStart *time.Time
	DateEnd   *time.Time

	SearchText string

	// Exact-match predicates the index knows nothing about. They are applied
	// by the query engine as the final pass over resolved entries.
	Tags          []string
	RequirePhotos bool
	Location      string
}

// IsActive reports whether any field is set.
func (f *DiaryFilter) IsActive() bool {
	return f.DateStart != nil || f.DateEnd != nil || f.SearchText != "" ||
		len(f.Tags) > 0 || f.RequirePhotos || f.Location != ""
}

// Matches is the authoritative predicate. The index only narrows candidates;
// every candidate still passes through here before it is returned.
func (f *DiaryFilter) Matches(e *DiaryEntry) bool {
	if f.DateStart != nil && e.Date.Before(DayStart(*f.DateStart)) {
		return false
	}
	if f.DateEnd != nil && e.Date.After(DayEnd(*f.DateEnd)) {
		return false
	}
	if f.SearchText != "" &&
		!strings.Contains(e.SearchText(), strings.ToLower(f.SearchText)) {
		return false
	}
	if f.RequirePhotos && len(e.PhotoIDs) == 0 {
		return false
	}
	if f.Location != "" && e.Location != f.Location {
		return false
	}
	for _, want := range f.Tags {
		if !hasTag(e, want) {
			return false
		}
	}
	return true
}

func hasTag(e *DiaryEntry, want string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	for _, t := range e.CachedTags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
