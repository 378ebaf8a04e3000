package diary

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dai175/smart-photo-diary-sub001/utils"
)

type ChangeKind byte

const (
	ChangeCreated ChangeKind = 'C'
	ChangeUpdated ChangeKind = 'U'
	ChangeDeleted ChangeKind = 'D'
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	}
	return "unknown"
}

// DiaryChange describes one successful mutation. For updates the photo diffs
// are exact set differences between the pre- and post-mutation photo lists;
// for creates AddedPhotoIDs is the full list, for deletes RemovedPhotoIDs is.
type DiaryChange struct {
	Kind            ChangeKind
	EntryID         string
	AddedPhotoIDs   []string
	RemovedPhotoIDs []string
}

// changeHub fans mutations out to named subscribers. Each subscriber owns a
// bounded queue; publishing never waits on a slow consumer, it overflows that
// consumer's queue alone.
type changeHub struct {
	limit int
	subs  *xsync.MapOf[string, *utils.FDQueue[DiaryChange]]
	log   utils.Logger
}

func newChangeHub(limit int, log utils.Logger) *changeHub {
	return &changeHub{
		limit: limit,
		subs:  xsync.NewMapOf[string, *utils.FDQueue[DiaryChange]](),
		log:   log,
	}
}

// Subscribe registers a named consumer and returns its queue. A second
// Subscribe with the same name replaces the previous queue and closes it.
func (h *changeHub) Subscribe(name string) *utils.FDQueue[DiaryChange] {
	q := utils.NewFDQueue[DiaryChange](h.limit)
	prev, ok := h.subs.LoadAndStore(name, q)
	if ok {
		_ = prev.Close()
	}
	return q
}

func (h *changeHub) Unsubscribe(name string) {
	q, ok := h.subs.LoadAndDelete(name)
	if ok {
		_ = q.Close()
	}
}

func (h *changeHub) Publish(change DiaryChange) {
	h.subs.Range(func(name string, q *utils.FDQueue[DiaryChange]) bool {
		err := q.Drain(change)
		if err != nil {
			h.log.Warn("change event dropped", "subscriber", name, "error", err)
		}
		return true
	})
}

func (h *changeHub) Close() {
	h.subs.Range(func(name string, q *utils.FDQueue[DiaryChange]) bool {
		h.subs.Delete(name)
		_ = q.Close()
		return true
	})
}
