package diary

import (
	"context"
	"sort"
	"strings"
	"time"
)

// getCached resolves an entry through the read cache. Must run under d.lock.
// Returns (nil, nil) when the id is absent from the store.
func (d *Diary) getCached(ctx context.Context, id string) (*DiaryEntry, error) {
	if e, ok := d.cache.Get(id); ok {
		return e, nil
	}
	e, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if e != nil {
		d.cache.Add(id, e.Clone())
	}
	return e, nil
}

// GetDiaryEntry looks an entry up by id. An absent id is (nil, nil), not an
// error.
func (d *Diary) GetDiaryEntry(ctx context.Context, id string) (*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	e, err := d.getCached(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// GetSortedDiaryEntries scans the whole store and sorts by date. It bypasses
// the index on purpose; the result is a fresh list, detached from any later
// mutation.
func (d *Diary) GetSortedDiaryEntries(ctx context.Context, descending bool) ([]*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	entries := []*DiaryEntry{}
	for e, err := range d.store.Values(ctx) {
		if err != nil {
			return nil, storeFailure(err)
		}
		entries = append(entries, e.Clone())
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if descending {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}

// walkFiltered runs the narrowing pipeline over the index and calls visit for
// every matching entry, in index order, until visit returns false. Must run
// under d.lock with the index built. The index only narrows; filter.Matches
// stays the final word on every candidate. Ids whose entry is gone from the
// store are skipped.
func (d *Diary) walkFiltered(ctx context.Context, filter *DiaryFilter,
	visit func(e *DiaryEntry) bool) error {

	lo, hi := 0, d.index.Len()
	if filter != nil && (filter.DateStart != nil || filter.DateEnd != nil) {
		start, end := dateBounds(filter, d.index)
		lo, hi = d.index.FindRangeByDateRange(start, end)
	}
	needle := ""
	if filter != nil {
		needle = strings.ToLower(filter.SearchText)
	}
	for i := lo; i < hi; i++ {
		id := d.index.IDAt(i)
		if needle != "" && !d.index.SearchContains(id, needle) {
			continue
		}
		e, err := d.getCached(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			continue
		}
		if filter != nil && filter.IsActive() && !filter.Matches(e) {
			continue
		}
		if !visit(e) {
			return nil
		}
	}
	return nil
}

// dateBounds fills the open side of a half-bounded range from the index
// extremes so a single binary search covers both cases.
func dateBounds(filter *DiaryFilter, index *IndexManager) (start, end time.Time) {
	if filter.DateStart != nil {
		start = *filter.DateStart
	} else if index.Len() > 0 {
		start = index.sorted[index.Len()-1].date
	}
	if filter.DateEnd != nil {
		end = *filter.DateEnd
	} else if index.Len() > 0 {
		end = index.sorted[0].date
	}
	return start, end
}

// GetFilteredDiaryEntries returns every entry matching filter, in index
// order. A nil or inactive filter returns the full corpus.
func (d *Diary) GetFilteredDiaryEntries(ctx context.Context, filter *DiaryFilter) ([]*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.ensureIndex(ctx); err != nil {
		return nil, err
	}
	out := []*DiaryEntry{}
	err := d.walkFiltered(ctx, filter, func(e *DiaryEntry) bool {
		out = append(out, e.Clone())
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetFilteredDiaryEntriesPage returns up to limit matches after skipping
// offset matches, stopping the scan as soon as the page is full. An offset
// past the last match yields an empty page.
func (d *Diary) GetFilteredDiaryEntriesPage(ctx context.Context, filter *DiaryFilter, offset, limit int) ([]*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.ensureIndex(ctx); err != nil {
		return nil, err
	}
	out := []*DiaryEntry{}
	if limit <= 0 || offset < 0 {
		return out, nil
	}
	if filter == nil || !filter.IsActive() {
		// no predicate to count against, slice the index directly
		if offset >= d.index.Len() {
			return out, nil
		}
		hi := offset + limit
		if hi > d.index.Len() {
			hi = d.index.Len()
		}
		for _, id := range d.index.IDs(offset, hi) {
			e, err := d.getCached(ctx, id)
			if err != nil {
				return nil, err
			}
			if e == nil {
				continue
			}
			out = append(out, e.Clone())
		}
		return out, nil
	}
	skipped := 0
	err := d.walkFiltered(ctx, filter, func(e *DiaryEntry) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, e.Clone())
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetDiaryByPhotoDate returns the entries whose capture date falls on the
// same day as photoDate, most recently created first. This is keyed on a
// different field than the index, so it is a plain scan.
func (d *Diary) GetDiaryByPhotoDate(ctx context.Context, photoDate time.Time) ([]*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	entries := []*DiaryEntry{}
	for e, err := range d.store.Values(ctx) {
		if err != nil {
			return nil, storeFailure(err)
		}
		if SameDay(e.Date, photoDate) {
			entries = append(entries, e.Clone())
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// GetDiaryEntryByPhotoID returns the first entry referencing photoID, or
// (nil, nil) when no entry does.
func (d *Diary) GetDiaryEntryByPhotoID(ctx context.Context, photoID string) (*DiaryEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for e, err := range d.store.Values(ctx) {
		if err != nil {
			return nil, storeFailure(err)
		}
		for _, p := range e.PhotoIDs {
			if p == photoID {
				return e.Clone(), nil
			}
		}
	}
	return nil, nil
}
