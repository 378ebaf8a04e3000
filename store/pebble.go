// Package store provides implementations of the diary.Store contract: a
// pebble-backed durable store and an in-memory one.
package store

import (
	"context"
	"iter"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	diary "github.com/dai175/smart-photo-diary-sub001"
)

// Entries live under 'O' + id, one TLV-encoded document per entry.
func entryKey(id string) []byte {
	return append([]byte{'O'}, id...)
}

var entryKeyBounds = pebble.IterOptions{
	LowerBound: []byte{'O'},
	UpperBound: []byte{'P'},
}

type PebbleOptions struct {
	// Sync makes every write wait for the WAL. Off by default; a diary can
	// afford to lose the last instants on power failure.
	Sync bool
}

// Pebble is the durable Store. Single logical writer; the engine's lock
// provides that.
type Pebble struct {
	db *pebble.DB
	wo *pebble.WriteOptions
}

func OpenPebble(path string, opts PebbleOptions) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open diary store")
	}
	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}
	return &Pebble{db: db, wo: wo}, nil
}

func (p *Pebble) Get(ctx context.Context, id string) (*diary.DiaryEntry, error) {
	data, closer, err := p.db.Get(entryKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get entry")
	}
	defer closer.Close()
	return decodeEntry(data)
}

func (p *Pebble) Put(ctx context.Context, entry *diary.DiaryEntry) error {
	err := p.db.Set(entryKey(entry.ID), encodeEntry(entry), p.wo)
	return errors.Wrap(err, "put entry")
}

func (p *Pebble) Delete(ctx context.Context, id string) error {
	err := p.db.Delete(entryKey(id), p.wo)
	return errors.Wrap(err, "delete entry")
}

func (p *Pebble) Values(ctx context.Context) iter.Seq2[*diary.DiaryEntry, error] {
	return func(yield func(*diary.DiaryEntry, error) bool) {
		it, err := p.db.NewIter(&entryKeyBounds)
		if err != nil {
			yield(nil, errors.Wrap(err, "scan entries"))
			return
		}
		defer it.Close()
		for valid := it.First(); valid; valid = it.Next() {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			e, err := decodeEntry(it.Value())
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(nil, errors.Wrap(err, "scan entries"))
		}
	}
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

// DB exposes the underlying pebble handle, for the metrics collector.
func (p *Pebble) DB() *pebble.DB {
	return p.db
}
