package diary

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dai175/smart-photo-diary-sub001/utils"
)

func testLogger() utils.Logger {
	return utils.NewDefaultLogger(slog.LevelError)
}

// tickClock hands out strictly increasing timestamps.
type tickClock struct {
	lock sync.Mutex
	now  time.Time
}

func newTickClock(start time.Time) *tickClock {
	return &tickClock{now: start}
}

func (c *tickClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestDiary(store *mapStore, enrich TagGenerator) *Diary {
	return New(store, Options{
		Logger:     testLogger(),
		Enrichment: enrich,
		Clock:      newTickClock(day(2024, 6, 1)).Now,
	})
}
