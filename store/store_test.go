package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	diary "github.com/dai175/smart-photo-diary-sub001"
)

func testEntry(id string) *diary.DiaryEntry {
	return &diary.DiaryEntry{
		ID:           id,
		Date:         time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC),
		Title:        "Beach day",
		Content:      "Long walk at sunset, 夕焼け",
		PhotoIDs:     []string{"p1", "p2"},
		Location:     "Okinawa",
		Tags:         []string{"summer", "beach"},
		CachedTags:   []string{"summer"},
		CachedTagsAt: time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2024, 1, 10, 12, 31, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 10, 12, 32, 0, 0, time.UTC),
	}
}

// both implementations must honor the same contract
func testStoreContract(t *testing.T, s diary.Store) {
	ctx := context.Background()

	// absent id is (nil, nil)
	got, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	e := testEntry("e1")
	require.NoError(t, s.Put(ctx, e))
	require.NoError(t, s.Put(ctx, testEntry("e2")))

	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, e.PhotoIDs, got.PhotoIDs)
	assert.Equal(t, e.Tags, got.Tags)
	assert.True(t, e.Date.Equal(got.Date))
	assert.True(t, e.CachedTagsAt.Equal(got.CachedTagsAt))

	// put replaces
	e.Title = "Replaced"
	require.NoError(t, s.Put(ctx, e))
	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Replaced", got.Title)

	seen := map[string]bool{}
	for entry, err := range s.Values(ctx) {
		require.NoError(t, err)
		seen[entry.ID] = true
	}
	assert.Equal(t, map[string]bool{"e1": true, "e2": true}, seen)

	require.NoError(t, s.Delete(ctx, "e1"))
	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, "e1"))
}

func TestMemStore(t *testing.T) {
	testStoreContract(t, NewMem())
}

func TestPebbleStore(t *testing.T) {
	p, err := OpenPebble(t.TempDir(), PebbleOptions{})
	require.NoError(t, err)
	defer p.Close()
	testStoreContract(t, p)
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p, err := OpenPebble(dir, PebbleOptions{Sync: true})
	require.NoError(t, err)
	require.NoError(t, p.Put(ctx, testEntry("e1")))
	require.NoError(t, p.Close())

	p, err = OpenPebble(dir, PebbleOptions{})
	require.NoError(t, err)
	defer p.Close()
	got, err := p.Get(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Beach day", got.Title)
}

func TestCodec_MinimalEntry(t *testing.T) {
	e := &diary.DiaryEntry{ID: "only-id"}
	got, err := decodeEntry(encodeEntry(e))
	require.NoError(t, err)
	assert.Equal(t, "only-id", got.ID)
	assert.True(t, got.Date.IsZero())
	assert.Empty(t, got.PhotoIDs)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := decodeEntry([]byte{0xff, 0x01, 0x02})
	assert.Error(t, err)

	// a record soup without an id is not an entry
	_, err = decodeEntry(encodeEntry(&diary.DiaryEntry{Title: "no id"}))
	assert.Error(t, err)
}
