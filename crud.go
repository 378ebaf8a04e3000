package diary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dai175/smart-photo-diary-sub001/diary_errors"
	"github.com/dai175/smart-photo-diary-sub001/utils"
)

// PhotoAsset is an external photo-library reference.
type PhotoAsset struct {
	ID          string
	CaptureDate time.Time
}

// SaveDiaryEntry creates a new entry: persists it, indexes it, publishes a
// created event and schedules background tag enrichment. The returned entry
// is the caller's copy.
func (d *Diary) SaveDiaryEntry(ctx context.Context, date time.Time, title, content string,
	photoIDs []string, location string, tags []string) (*DiaryEntry, error) {

	entry, err := d.create(ctx, date, title, content, photoIDs, location, tags)
	if err != nil {
		return nil, err
	}
	d.scheduleEnrichment(entry.ID, entry.Title, entry.Content, entry.Date, len(entry.PhotoIDs))
	return entry, nil
}

// SaveDiaryEntryWithPhotos maps a photo-library selection onto photo ids and
// delegates to SaveDiaryEntry.
func (d *Diary) SaveDiaryEntryWithPhotos(ctx context.Context, date time.Time, title, content string,
	photos []PhotoAsset, location string) (*DiaryEntry, error) {

	photoIDs := make([]string, 0, len(photos))
	for _, p := range photos {
		photoIDs = append(photoIDs, p.ID)
	}
	return d.SaveDiaryEntry(ctx, date, title, content, photoIDs, location, nil)
}

// CreateDiaryForPastPhoto creates an entry for a photo taken in the past.
// Persistence, indexing and events are identical to SaveDiaryEntry. Before
// creating it warns if an entry for the same capture day already exists; the
// check is advisory and never blocks creation. Enrichment sees the content
// contextualized with a relative-age phrase.
func (d *Diary) CreateDiaryForPastPhoto(ctx context.Context, date time.Time, title, content string,
	photoIDs []string, location string) (*DiaryEntry, error) {

	d.warnDuplicateDay(ctx, date)
	entry, err := d.create(ctx, date, title, content, photoIDs, location, nil)
	if err != nil {
		return nil, err
	}
	aged := fmt.Sprintf("%s (%s)", entry.Content, relativeAge(d.now(), entry.Date))
	d.scheduleEnrichment(entry.ID, entry.Title, aged, entry.Date, len(entry.PhotoIDs))
	return entry, nil
}

func (d *Diary) warnDuplicateDay(ctx context.Context, date time.Time) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.ensureIndex(ctx); err != nil {
		d.log.WarnCtx(ctx, "duplicate check skipped", "error", err)
		return
	}
	lo, hi := d.index.FindRangeByDateRange(date, date)
	if hi > lo {
		d.log.WarnCtx(ctx, "entry already exists for this day",
			"date", DayStart(date), "existing", hi-lo)
	}
}

func (d *Diary) create(ctx context.Context, date time.Time, title, content string,
	photoIDs []string, location string, tags []string) (*DiaryEntry, error) {

	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.ensureIndex(ctx); err != nil {
		return nil, err
	}
	now := d.now()
	entry := &DiaryEntry{
		ID:        uuid.New().String(),
		Date:      date,
		Title:     title,
		Content:   content,
		PhotoIDs:  append([]string(nil), photoIDs...),
		Location:  location,
		Tags:      append([]string(nil), tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.Put(ctx, entry); err != nil {
		return nil, storeFailure(err)
	}
	d.index.InsertEntry(entry)
	d.cache.Add(entry.ID, entry.Clone())
	d.hub.Publish(DiaryChange{
		Kind:          ChangeCreated,
		EntryID:       entry.ID,
		AddedPhotoIDs: append([]string(nil), entry.PhotoIDs...),
	})
	return entry.Clone(), nil
}

// UpdateDiaryEntry replaces an existing entry. The id must exist; CreatedAt
// is immutable and UpdatedAt is stamped here. The updated event carries the
// exact photo set differences.
func (d *Diary) UpdateDiaryEntry(ctx context.Context, entry *DiaryEntry) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.ensureIndex(ctx); err != nil {
		return err
	}
	prev, err := d.store.Get(ctx, entry.ID)
	if err != nil {
		return storeFailure(err)
	}
	if prev == nil {
		return diary_errors.ErrEntryNotFound
	}
	next := entry.Clone()
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = d.now()
	if err := d.store.Put(ctx, next); err != nil {
		return storeFailure(err)
	}
	if !prev.Date.Equal(next.Date) {
		d.index.UpdateEntryDate(next)
	}
	d.index.UpdateEntrySearchText(next)
	d.cache.Add(next.ID, next.Clone())
	added, removed := diffPhotoIDs(prev.PhotoIDs, next.PhotoIDs)
	d.hub.Publish(DiaryChange{
		Kind:            ChangeUpdated,
		EntryID:         next.ID,
		AddedPhotoIDs:   added,
		RemovedPhotoIDs: removed,
	})
	return nil
}

// DeleteDiaryEntry removes an entry. Deleting an absent id succeeds and
// publishes nothing.
func (d *Diary) DeleteDiaryEntry(ctx context.Context, id string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	prev, err := d.store.Get(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return storeFailure(err)
	}
	if d.index.Built() {
		d.index.RemoveEntry(id)
	}
	d.cache.Remove(id)
	if prev != nil {
		d.hub.Publish(DiaryChange{
			Kind:            ChangeDeleted,
			EntryID:         id,
			RemovedPhotoIDs: append([]string(nil), prev.PhotoIDs...),
		})
	}
	return nil
}

// scheduleEnrichment spawns the detached tag-generation task. At most one
// task per entry id runs at a time; a second schedule while one is in flight
// is dropped. The task re-reads the current entry before patching so an
// intervening update is not resurrected wholesale, only the tag fields and
// UpdatedAt are overwritten. Failures are logged and swallowed.
func (d *Diary) scheduleEnrichment(id, title, content string, date time.Time, photoCount int) {
	if d.enrich == nil || d.closed.Load() {
		return
	}
	if _, loaded := d.enriching.LoadOrStore(id, struct{}{}); loaded {
		return
	}
	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		defer d.enriching.Delete(id)
		ctx := utils.WithDefaultArgs(context.Background(), "entry", id, "process", "enrichment")
		tags, err := d.enrich.GenerateTags(ctx, title, content, date, photoCount)
		if err != nil {
			d.log.WarnCtx(ctx, "tag enrichment failed", "error", err)
			return
		}
		if len(tags) == 0 {
			d.log.WarnCtx(ctx, "tag enrichment produced no tags")
			return
		}
		d.applyEnrichment(ctx, id, tags)
	}()
}

func (d *Diary) applyEnrichment(ctx context.Context, id string, tags []string) {
	d.lock.Lock()
	defer d.lock.Unlock()
	cur, err := d.store.Get(ctx, id)
	if err != nil {
		d.log.WarnCtx(ctx, "enrichment re-read failed", "error", err)
		return
	}
	if cur == nil {
		// entry deleted while tags were being generated
		return
	}
	now := d.now()
	cur.Tags = tags
	cur.CachedTags = append([]string(nil), tags...)
	cur.CachedTagsAt = now
	cur.UpdatedAt = now
	if err := d.store.Put(ctx, cur); err != nil {
		d.log.WarnCtx(ctx, "enrichment write failed", "error", err)
		return
	}
	if d.index.Built() {
		d.index.UpdateEntrySearchText(cur)
	}
	d.cache.Add(id, cur.Clone())
	d.hub.Publish(DiaryChange{Kind: ChangeUpdated, EntryID: id})
	d.log.DebugCtx(ctx, "entry enriched", "tags", len(tags))
}

func relativeAge(now, then time.Time) string {
	days := int(DayStart(now).Sub(DayStart(then)).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days < 14:
		return fmt.Sprintf("%d days ago", days)
	case days < 60:
		return fmt.Sprintf("%d weeks ago", days/7)
	case days < 365:
		return fmt.Sprintf("%d months ago", days/30)
	case days < 550:
		return "about a year ago"
	default:
		return fmt.Sprintf("%d years ago", (days+182)/365)
	}
}
