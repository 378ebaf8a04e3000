package diary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dai175/smart-photo-diary-sub001/diary_errors"
	"github.com/dai175/smart-photo-diary-sub001/utils"
)

type fakeTagger struct {
	tags    []string
	err     error
	gotText chan string
}

func (f *fakeTagger) GenerateTags(ctx context.Context, title, content string, date time.Time, photoCount int) ([]string, error) {
	if f.gotText != nil {
		f.gotText <- content
	}
	return f.tags, f.err
}

func feedOne(t *testing.T, q *utils.FDQueue[DiaryChange]) DiaryChange {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	changes, err := q.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	return changes[0]
}

func TestCrud_SaveDiaryEntry(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	d := newTestDiary(store, nil)
	q := d.Subscribe("test")

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "Lunch", "ramen again",
		[]string{"p1", "p2"}, "Tokyo", nil)
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	// persisted and immediately visible through the index
	got, err := d.GetFilteredDiaryEntries(ctx, &DiaryFilter{SearchText: "ramen"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)

	change := feedOne(t, q)
	assert.Equal(t, ChangeCreated, change.Kind)
	assert.Equal(t, e.ID, change.EntryID)
	assert.Equal(t, []string{"p1", "p2"}, change.AddedPhotoIDs)
	assert.Empty(t, change.RemovedPhotoIDs)
}

func TestCrud_SaveDiaryEntryWithPhotos(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)

	e, err := d.SaveDiaryEntryWithPhotos(ctx, day(2024, 3, 3), "Walk", "park",
		[]PhotoAsset{{ID: "p1", CaptureDate: day(2024, 3, 3)}, {ID: "p2"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, e.PhotoIDs)
}

func TestCrud_UpdatePhotoDiffs(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "A", "text",
		[]string{"p1", "p2"}, "", nil)
	require.NoError(t, err)

	q := d.Subscribe("test")
	e.PhotoIDs = []string{"p2", "p3"}
	require.NoError(t, d.UpdateDiaryEntry(ctx, e))

	change := feedOne(t, q)
	assert.Equal(t, ChangeUpdated, change.Kind)
	assert.Equal(t, []string{"p3"}, change.AddedPhotoIDs)
	assert.Equal(t, []string{"p1"}, change.RemovedPhotoIDs)
}

func TestCrud_UpdateRepositionsOnDateChange(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(
		entry("a", day(2024, 1, 10)),
		entry("b", day(2024, 1, 5)),
		entry("c", day(2024, 1, 20)),
	), nil)

	b, err := d.GetDiaryEntry(ctx, "b")
	require.NoError(t, err)
	b.Date = day(2024, 1, 25)
	b.Content = "moved and rewritten"
	require.NoError(t, d.UpdateDiaryEntry(ctx, b))

	got, err := d.GetFilteredDiaryEntries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))

	got, err = d.GetFilteredDiaryEntries(ctx, &DiaryFilter{SearchText: "rewritten"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestCrud_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "A", "text", nil, "", nil)
	require.NoError(t, err)

	mangled := e.Clone()
	mangled.CreatedAt = day(1999, 1, 1)
	mangled.Title = "B"
	require.NoError(t, d.UpdateDiaryEntry(ctx, mangled))

	got, err := d.GetDiaryEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	assert.Equal(t, "B", got.Title)
}

func TestCrud_UpdateMissingEntry(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)
	err := d.UpdateDiaryEntry(ctx, entry("ghost", day(2024, 1, 1)))
	assert.ErrorIs(t, err, diary_errors.ErrEntryNotFound)
}

func TestCrud_DeleteDiaryEntry(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "A", "text",
		[]string{"p1", "p2"}, "", nil)
	require.NoError(t, err)

	q := d.Subscribe("test")
	require.NoError(t, d.DeleteDiaryEntry(ctx, e.ID))

	change := feedOne(t, q)
	assert.Equal(t, ChangeDeleted, change.Kind)
	assert.Equal(t, []string{"p1", "p2"}, change.RemovedPhotoIDs)

	got, err := d.GetDiaryEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	all, err := d.GetFilteredDiaryEntries(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCrud_DeleteMissingIsSilent(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)
	q := d.Subscribe("test")

	require.NoError(t, d.DeleteDiaryEntry(ctx, "ghost"))

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := q.Feed(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCrud_StoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.failPut = fmt.Errorf("disk on fire")
	d := newTestDiary(store, nil)

	_, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "A", "text", nil, "", nil)
	assert.ErrorIs(t, err, diary_errors.ErrStoreFailure)
}

func TestCrud_EnrichmentPatchesTags(t *testing.T) {
	ctx := context.Background()
	tagger := &fakeTagger{tags: []string{"ramen", "food"}}
	d := newTestDiary(newMapStore(), tagger)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "Lunch", "ramen", nil, "", nil)
	require.NoError(t, err)
	d.tasks.Wait()

	got, err := d.GetDiaryEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ramen", "food"}, got.Tags)
	assert.Equal(t, []string{"ramen", "food"}, got.CachedTags)
	assert.False(t, got.CachedTagsAt.IsZero())
	assert.True(t, got.UpdatedAt.After(e.UpdatedAt))

	// enriched tags become searchable
	found, err := d.GetFilteredDiaryEntries(ctx, &DiaryFilter{SearchText: "food"})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids(found))
}

func TestCrud_EnrichmentFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	tagger := &fakeTagger{err: diary_errors.ErrEnrichmentFailed}
	d := newTestDiary(newMapStore(), tagger)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "Lunch", "ramen", nil, "", nil)
	require.NoError(t, err)
	d.tasks.Wait()

	got, err := d.GetDiaryEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestCrud_EnrichmentToleratesDeletion(t *testing.T) {
	ctx := context.Background()
	gate := make(chan string, 1)
	tagger := &fakeTagger{tags: []string{"late"}, gotText: gate}
	d := newTestDiary(newMapStore(), tagger)

	e, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "Lunch", "ramen", nil, "", nil)
	require.NoError(t, err)
	<-gate
	require.NoError(t, d.DeleteDiaryEntry(ctx, e.ID))
	d.tasks.Wait()

	got, err := d.GetDiaryEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCrud_PastPhotoContextualizesContent(t *testing.T) {
	ctx := context.Background()
	gate := make(chan string, 1)
	tagger := &fakeTagger{tags: []string{"memory"}, gotText: gate}
	d := newTestDiary(newMapStore(), tagger)

	_, err := d.CreateDiaryForPastPhoto(ctx, day(2024, 5, 20), "Old photo", "a hike",
		[]string{"p1"}, "")
	require.NoError(t, err)

	content := <-gate
	assert.Contains(t, content, "a hike")
	assert.Contains(t, content, "days ago")
	d.tasks.Wait()
}

func TestCrud_PastPhotoDuplicateIsAdvisory(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(entry("a", day(2024, 5, 20))), nil)

	// same capture day already has an entry; creation still succeeds
	e, err := d.CreateDiaryForPastPhoto(ctx, day(2024, 5, 20), "Dup", "text", nil, "")
	require.NoError(t, err)

	all, err := d.GetFilteredDiaryEntries(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, ids(all), e.ID)
}

func TestCrud_CloseStopsEnrichment(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary(newMapStore(), nil)
	_, err := d.SaveDiaryEntry(ctx, day(2024, 3, 3), "A", "text", nil, "", nil)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), diary_errors.ErrClosed)
}

func TestRelativeAge(t *testing.T) {
	now := day(2024, 6, 1)
	cases := []struct {
		then time.Time
		want string
	}{
		{day(2024, 6, 1), "today"},
		{day(2024, 5, 31), "yesterday"},
		{day(2024, 5, 27), "5 days ago"},
		{day(2024, 5, 1), "4 weeks ago"},
		{day(2024, 1, 1), "5 months ago"},
		{day(2023, 5, 1), "about a year ago"},
		{day(2021, 6, 1), "3 years ago"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, relativeAge(now, c.then), c.then.String())
	}
}
