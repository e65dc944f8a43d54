// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pebble exposes a cockroachdb/pebble store through the avalanchego
// database interface so it can back the block store on disk.
package pebble

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"

	avautils "github.com/ava-labs/avalanchego/utils"
)

var _ database.Database = (*Database)(nil)

type Database struct {
	db      *pebble.DB
	metrics *metrics

	sync      bool
	closing   chan struct{}
	closeOnce sync.Once
	closed    avautils.Atomic[bool]
}

type Config struct {
	CacheSize                   int  `json:"cacheSize"`
	BytesPerSync                int  `json:"bytesPerSync"`
	WALBytesPerSync             int  `json:"walBytesPerSync"` // 0 means no background syncing
	MemTableStopWritesThreshold int  `json:"memTableStopWritesThreshold"`
	MemTableSize                int  `json:"memTableSize"`
	MaxOpenFiles                int  `json:"maxOpenFiles"`
	MaxConcurrentCompactions    int  `json:"maxConcurrentCompactions"`
	Sync                        bool `json:"sync"`
}

func NewDefaultConfig() Config {
	return Config{
		CacheSize:                   units.GiB,
		BytesPerSync:                units.MiB,
		WALBytesPerSync:             0,
		MemTableStopWritesThreshold: 8,
		MemTableSize:                16 * units.MiB,
		MaxOpenFiles:                4_096,
		MaxConcurrentCompactions:    1,
		Sync:                        false,
	}
}

func New(file string, cfg Config) (database.Database, *prometheus.Registry, error) {
	registry, metrics, err := newMetrics()
	if err != nil {
		return nil, nil, err
	}
	db := &Database{
		metrics: metrics,
		sync:    cfg.Sync,
		closing: make(chan struct{}),
	}

	opts := &pebble.Options{
		Cache:                       pebble.NewCache(int64(cfg.CacheSize)),
		BytesPerSync:                cfg.BytesPerSync,
		WALBytesPerSync:             cfg.WALBytesPerSync,
		MemTableStopWritesThreshold: cfg.MemTableStopWritesThreshold,
		MemTableSize:                uint64(cfg.MemTableSize),
		MaxOpenFiles:                cfg.MaxOpenFiles,
		MaxConcurrentCompactions:    func() int { return cfg.MaxConcurrentCompactions },
		EventListener: &pebble.EventListener{
			CompactionBegin: db.onCompactionBegin,
			CompactionEnd:   db.onCompactionEnd,
			WriteStallBegin: db.onWriteStallBegin,
			WriteStallEnd:   db.onWriteStallEnd,
		},
	}
	pdb, err := pebble.Open(file, opts)
	if err != nil {
		return nil, nil, err
	}
	db.db = pdb

	go db.collectMetrics()
	return db, registry, nil
}

func (db *Database) Has(key []byte) (bool, error) {
	if db.closed.Get() {
		return false, database.ErrClosed
	}
	_, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, updateError(err)
	}
	return true, closer.Close()
}

func (db *Database) Get(key []byte) ([]byte, error) {
	if db.closed.Get() {
		return nil, database.ErrClosed
	}
	start := time.Now()
	data, closer, err := db.db.Get(key)
	if err != nil {
		return nil, updateError(err)
	}
	db.metrics.getLatency.Observe(float64(time.Since(start)))

	// [data] is only valid until [closer] is released.
	value := slices.Clone(data)
	return value, closer.Close()
}

func (db *Database) Put(key []byte, value []byte) error {
	if db.closed.Get() {
		return database.ErrClosed
	}
	return updateError(db.db.Set(key, value, db.writeOptions()))
}

func (db *Database) Delete(key []byte) error {
	if db.closed.Get() {
		return database.ErrClosed
	}
	return updateError(db.db.Delete(key, db.writeOptions()))
}

func (db *Database) Compact(start []byte, end []byte) error {
	if db.closed.Get() {
		return database.ErrClosed
	}
	if end == nil {
		// A nil limit means "after all keys" here but "before all keys" to
		// pebble, so resolve it to the last key in the database.
		it, err := db.db.NewIter(&pebble.IterOptions{})
		if err != nil {
			return updateError(err)
		}
		if it.Last() {
			end = slices.Clone(it.Key())
		}
		if err := it.Close(); err != nil {
			return updateError(err)
		}
		if end == nil {
			return nil
		}
	}
	return updateError(db.db.Compact(start, end, true))
}

func (db *Database) HealthCheck(context.Context) (interface{}, error) {
	if db.closed.Get() {
		return nil, database.ErrClosed
	}
	return nil, nil
}

func (db *Database) Close() error {
	if db.closed.Get() {
		return database.ErrClosed
	}
	db.closed.Set(true)
	db.closeOnce.Do(func() {
		close(db.closing)
	})
	return updateError(db.db.Close())
}

func (db *Database) writeOptions() *pebble.WriteOptions {
	if db.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

type batch struct {
	database.BatchOps

	db *Database
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

// Write replays the recorded ops into a fresh pebble batch on every call, so
// the batch stays reusable after a commit.
func (b *batch) Write() error {
	if b.db.closed.Get() {
		return database.ErrClosed
	}
	wb := b.db.db.NewBatch()
	for _, op := range b.Ops {
		if op.Delete {
			if err := wb.Delete(op.Key, nil); err != nil {
				return updateError(err)
			}
		} else if err := wb.Set(op.Key, op.Value, nil); err != nil {
			return updateError(err)
		}
	}
	return updateError(wb.Commit(b.db.writeOptions()))
}

func (b *batch) Inner() database.Batch {
	return b
}

func (db *Database) NewIterator() database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, nil)
}

func (db *Database) NewIteratorWithStart(start []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(start, nil)
}

func (db *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (db *Database) NewIteratorWithStartAndPrefix(start []byte, prefix []byte) database.Iterator {
	if db.closed.Get() {
		return &iterator{db: db, err: database.ErrClosed}
	}
	lower := start
	if bytes.Compare(prefix, start) > 0 {
		lower = prefix
	}
	iter, err := db.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return &iterator{db: db, err: updateError(err)}
	}
	return &iterator{
		db:   db,
		iter: iter,
	}
}

// prefixUpperBound returns the smallest key greater than every key with
// [prefix], or nil if no such key exists.
func prefixUpperBound(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			upper := slices.Clone(prefix[:i+1])
			upper[i]++
			return upper
		}
	}
	return nil
}

type iterator struct {
	db   *Database
	iter *pebble.Iterator

	initialized bool
	closed      bool
	valid       bool
	err         error
}

func (it *iterator) Next() bool {
	if it.err != nil || it.closed {
		it.valid = false
		return false
	}
	if it.db.closed.Get() {
		it.valid = false
		it.err = database.ErrClosed
		return false
	}
	if !it.initialized {
		it.valid = it.iter.First()
		it.initialized = true
	} else {
		it.valid = it.iter.Next()
	}
	return it.valid
}

func (it *iterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if it.iter == nil {
		return nil
	}
	return updateError(it.iter.Error())
}

func (it *iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return slices.Clone(it.iter.Key())
}

func (it *iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return slices.Clone(it.iter.Value())
}

func (it *iterator) Release() {
	if it.closed || it.iter == nil {
		return
	}
	it.closed = true
	it.valid = false
	_ = it.iter.Close()
}

func updateError(err error) error {
	switch err {
	case pebble.ErrNotFound:
		return database.ErrNotFound
	case pebble.ErrClosed:
		return database.ErrClosed
	default:
		return err
	}
}
