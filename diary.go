package diary

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dai175/smart-photo-diary-sub001/diary_errors"
	"github.com/dai175/smart-photo-diary-sub001/utils"
)

// Store is the persisted key-document map the engine runs on top of. Get
// returns (nil, nil) for an absent id. Values iterates every stored entry;
// it must be safe to iterate while no concurrent mutation runs in the same
// process, which the engine's lock guarantees.
type Store interface {
	Get(ctx context.Context, id string) (*DiaryEntry, error)
	Put(ctx context.Context, entry *DiaryEntry) error
	Delete(ctx context.Context, id string) error
	Values(ctx context.Context) iter.Seq2[*DiaryEntry, error]
}

// TagGenerator derives tags for an entry. Implementations report failures as
// errors, never panic; the engine swallows them.
type TagGenerator interface {
	GenerateTags(ctx context.Context, title, content string, date time.Time, photoCount int) ([]string, error)
}

type Options struct {
	Logger     utils.Logger
	Enrichment TagGenerator // nil disables tag enrichment

	EventQueueLimit int
	EntryCacheSize  int

	Clock func() time.Time
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.EventQueueLimit == 0 {
		o.EventQueueLimit = 256
	}
	if o.EntryCacheSize == 0 {
		o.EntryCacheSize = 1024
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Diary is the index-and-query engine: CRUD against the store, an in-memory
// derived index kept consistent with it, and a change-event broadcast. One
// mutex serializes everything that touches the index, so within one call the
// store mutation happens before the index mutation, which happens before the
// change event.
type Diary struct {
	store  Store
	index  *IndexManager
	hub    *changeHub
	enrich TagGenerator
	log    utils.Logger
	now    func() time.Time

	cache *lru.Cache[string, *DiaryEntry]

	lock      sync.Mutex
	enriching utils.CMap[string, struct{}]
	tasks     sync.WaitGroup
	closed    atomic.Bool

	opts Options
}

func New(store Store, opts Options) *Diary {
	opts.SetDefaults()
	cache, _ := lru.New[string, *DiaryEntry](opts.EntryCacheSize)
	return &Diary{
		store:  store,
		index:  NewIndexManager(opts.Logger),
		hub:    newChangeHub(opts.EventQueueLimit, opts.Logger),
		enrich: opts.Enrichment,
		log:    opts.Logger,
		now:    opts.Clock,
		cache:  cache,
		opts:   opts,
	}
}

// Subscribe attaches a named change-event consumer. Reads via Feed on the
// returned queue; a consumer that falls behind overflows only its own queue.
func (d *Diary) Subscribe(name string) *utils.FDQueue[DiaryChange] {
	return d.hub.Subscribe(name)
}

func (d *Diary) Unsubscribe(name string) {
	d.hub.Unsubscribe(name)
}

// Close waits for in-flight enrichment tasks and closes subscriber queues.
// The store is not closed; the caller owns it.
func (d *Diary) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return diary_errors.ErrClosed
	}
	d.tasks.Wait()
	d.hub.Close()
	return nil
}

// ensureIndex must run under d.lock.
func (d *Diary) ensureIndex(ctx context.Context) error {
	err := d.index.EnsureIndex(ctx, d.store)
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

func storeFailure(err error) error {
	return errors.Join(diary_errors.ErrStoreFailure, err)
}
