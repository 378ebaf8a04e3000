package diary

import (
	"strings"
	"time"
)

// DiaryEntry is the unit of persistence. Exactly one entry per id exists in
// the store at any time; the in-memory index is a derived view of it.
type DiaryEntry struct {
	ID       string
	Date     time.Time
	Title    string
	Content  string
	PhotoIDs []string
	Location string

	Tags         []string
	CachedTags   []string
	CachedTagsAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy. Query results hand out clones so callers can
// not reach into the store's or the cache's copy.
func (e *DiaryEntry) Clone() *DiaryEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.PhotoIDs = append([]string(nil), e.PhotoIDs...)
	c.Tags = append([]string(nil), e.Tags...)
	c.CachedTags = append([]string(nil), e.CachedTags...)
	return &c
}

// SearchText is the lowercase blob the search index stores for this entry:
// title, content, tags and location, newline-joined.
func (e *DiaryEntry) SearchText() string {
	parts := make([]string, 0, 3+len(e.Tags))
	parts = append(parts, e.Title, e.Content)
	parts = append(parts, e.Tags...)
	if e.Location != "" {
		parts = append(parts, e.Location)
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// DayStart truncates t to the start of its day, keeping the location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayEnd is the last representable instant of t's day.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day, compared in
// a's location.
func SameDay(a, b time.Time) bool {
	return DayStart(a).Equal(DayStart(b.In(a.Location())))
}

// diffPhotoIDs returns the ids present in next but not prev, and the ids
// present in prev but not next, both preserving first-seen order.
func diffPhotoIDs(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
