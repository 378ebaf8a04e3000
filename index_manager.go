package diary

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dai175/smart-photo-diary-sub001/utils"
)

var IndexBuildCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "diary",
	Subsystem: "index_manager",
	Name:      "builds",
})

var IndexBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "diary",
	Subsystem: "index_manager",
	Name:      "build_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

var IndexMutationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "diary",
	Subsystem: "index_manager",
	Name:      "mutations",
}, []string{"op"})

var IndexRangeQueryCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "diary",
	Subsystem: "index_manager",
	Name:      "range_queries",
})

var IndexEntries = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "diary",
	Subsystem: "index_manager",
	Name:      "entries",
})

// RegisterMetrics registers every engine collector on reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(IndexBuildCount, IndexBuildDuration, IndexMutationCount,
		IndexRangeQueryCount, IndexEntries)
}

type indexSlot struct {
	id   string
	date time.Time
	seq  uint64
}

// IndexManager owns two derived structures over the persisted store: a
// date-descending sequence of entry ids and a per-id lowercase search blob.
// Both are rebuilt from the store on first use and maintained incrementally
// afterwards. It does no locking of its own; the engine serializes access.
type IndexManager struct {
	log utils.Logger

	sorted   []indexSlot
	search   map[string]string
	blobHash map[string]uint64

	built bool
	seq   uint64
}

func NewIndexManager(log utils.Logger) *IndexManager {
	return &IndexManager{
		log:      log,
		search:   make(map[string]string),
		blobHash: make(map[string]uint64),
	}
}

// Built reports whether the initial store scan has happened. It flips to
// true exactly once per IndexManager instance.
func (im *IndexManager) Built() bool { return im.built }

func (im *IndexManager) Len() int { return len(im.sorted) }

func (im *IndexManager) IDAt(i int) string { return im.sorted[i].id }

// IDs returns the ids of slots [lo, hi) in index order.
func (im *IndexManager) IDs(lo, hi int) []string {
	ids := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ids = append(ids, im.sorted[i].id)
	}
	return ids
}

// EnsureIndex scans the store once and builds both structures. Idempotent
// and cheap after the first call; callers invoke it before every operation
// that touches the index.
func (im *IndexManager) EnsureIndex(ctx context.Context, store Store) error {
	if im.built {
		return nil
	}
	start := time.Now()
	for entry, err := range store.Values(ctx) {
		if err != nil {
			// a partial scan must not leak into the next build attempt
			im.sorted = nil
			im.search = make(map[string]string)
			im.blobHash = make(map[string]uint64)
			return err
		}
		im.insert(entry)
	}
	im.built = true
	IndexBuildCount.Inc()
	IndexBuildDuration.Observe(time.Since(start).Seconds())
	IndexEntries.Set(float64(len(im.sorted)))
	im.log.DebugCtx(ctx, "index built", "entries", len(im.sorted),
		"took", time.Since(start))
	return nil
}

// insertPos is the position a new slot with this date takes: the first slot
// whose date is not after it. Among equal dates the newcomer therefore lands
// in front of the older slots.
func (im *IndexManager) insertPos(date time.Time) int {
	return sort.Search(len(im.sorted), func(i int) bool {
		return !im.sorted[i].date.After(date)
	})
}

func (im *IndexManager) insert(e *DiaryEntry) {
	pos := im.insertPos(e.Date)
	im.seq++
	slot := indexSlot{id: e.ID, date: e.Date, seq: im.seq}
	im.sorted = append(im.sorted, indexSlot{})
	copy(im.sorted[pos+1:], im.sorted[pos:])
	im.sorted[pos] = slot

	blob := e.SearchText()
	im.search[e.ID] = blob
	im.blobHash[e.ID] = xxhash.Sum64String(blob)
}

// InsertEntry adds a freshly created entry to both structures. The engine
// calls EnsureIndex first, so the index is always built here.
func (im *IndexManager) InsertEntry(e *DiaryEntry) {
	im.insert(e)
	IndexMutationCount.WithLabelValues("insert").Inc()
	IndexEntries.Set(float64(len(im.sorted)))
}

// RemoveEntry drops id from both structures. Unknown ids are a no-op.
func (im *IndexManager) RemoveEntry(id string) {
	for i := range im.sorted {
		if im.sorted[i].id == id {
			im.sorted = append(im.sorted[:i], im.sorted[i+1:]...)
			break
		}
	}
	delete(im.search, id)
	delete(im.blobHash, id)
	IndexMutationCount.WithLabelValues("remove").Inc()
	IndexEntries.Set(float64(len(im.sorted)))
}

// UpdateEntryDate repositions an entry whose date changed. Equivalent to
// remove plus insert with the new date; the entry gets a fresh tie-break
// sequence number.
func (im *IndexManager) UpdateEntryDate(e *DiaryEntry) {
	im.RemoveEntry(e.ID)
	im.insert(e)
	IndexMutationCount.WithLabelValues("update_date").Inc()
	IndexEntries.Set(float64(len(im.sorted)))
}

// UpdateEntrySearchText recomputes the search blob in place. Position is
// untouched, so this is only correct when the date did not change.
func (im *IndexManager) UpdateEntrySearchText(e *DiaryEntry) {
	if _, ok := im.search[e.ID]; !ok {
		return
	}
	blob := e.SearchText()
	hash := xxhash.Sum64String(blob)
	if im.blobHash[e.ID] == hash {
		return
	}
	im.search[e.ID] = blob
	im.blobHash[e.ID] = hash
	IndexMutationCount.WithLabelValues("update_search").Inc()
}

// SearchContains reports whether id's blob contains needle. The needle must
// already be lowercased.
func (im *IndexManager) SearchContains(id, needle string) bool {
	blob, ok := im.search[id]
	return ok && strings.Contains(blob, needle)
}

// FindRangeByDateRange binary searches for the half-open slot range [lo, hi)
// whose dates fall within the inclusive whole days [start, end]. An empty
// corpus or a range nothing falls into yields lo == hi.
func (im *IndexManager) FindRangeByDateRange(start, end time.Time) (lo, hi int) {
	IndexRangeQueryCount.Inc()
	from := DayStart(start)
	till := DayEnd(end)
	// descending order: everything above lo is after the range,
	// everything at hi and below is before it
	lo = sort.Search(len(im.sorted), func(i int) bool {
		return !im.sorted[i].date.After(till)
	})
	hi = sort.Search(len(im.sorted), func(i int) bool {
		return im.sorted[i].date.Before(from)
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
