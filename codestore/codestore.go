/*
Package codestore defines where the codes computed for a dataset
are written, and provides a store backed by the process memory.
Other backends live in its subpackages.
*/
package codestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Record is what the model computes for a sample: its code and
// the dense representation it is decoded from
type Record struct {
	ID   int
	Code int
	Repr []float32
}

func (r *Record) String() string {
	return fmt.Sprintf("{Record %d code %d}", r.ID, r.Code)
}

/*
Store is an interface to manage a store where records can be
written and retrieved by sample id.

All its methods take a context that may allow cancelling the
operation (thus forcing the return of an error) if the
implementation allows it.
*/
type Store interface {
	// Put takes records and writes them on the store, replacing
	// any record with the same id. It returns an error if the
	// records cannot be written.
	Put(ctx context.Context, records ...*Record) error
	// Get takes an id and returns the record in the store with
	// that id (or nil if it cannot be found) or an error if the
	// store cannot be queried
	Get(ctx context.Context, id int) (*Record, error)
	// List returns every record in the store sorted by id, or
	// an error if the store cannot be queried
	List(ctx context.Context) ([]*Record, error)
	// Close closes the store, implementations should free any
	// resources in use as well as ensure any pending changes
	// are applied before returning (unless the context expires).
	Close(ctx context.Context) error
}

type memoryStore struct {
	records map[int]*Record
	lock    *sync.RWMutex
}

// NewMemoryStore returns an implementation of Store with the
// process memory space as underlying backend
func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[int]*Record),
		lock:    &sync.RWMutex{},
	}
}

func (ms *memoryStore) Put(ctx context.Context, records ...*Record) error {
	return ms.withLock(ctx, func(ctx context.Context) error {
		for _, r := range records {
			ms.records[r.ID] = r
		}
		return nil
	})
}

func (ms *memoryStore) Get(ctx context.Context, id int) (*Record, error) {
	var r *Record
	err := ms.withRLock(ctx, func(ctx context.Context) error {
		r = ms.records[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (ms *memoryStore) List(ctx context.Context) ([]*Record, error) {
	var records []*Record
	err := ms.withRLock(ctx, func(ctx context.Context) error {
		records = make([]*Record, 0, len(ms.records))
		for _, r := range ms.records {
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortByID(records)
	return records, nil
}

func (ms *memoryStore) Close(ctx context.Context) error {
	return nil
}

// SortByID sorts records by increasing id
func SortByID(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}

func (ms *memoryStore) withLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		ms.lock.Lock()
		select {
		case <-ctx.Done():
			ms.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer ms.lock.Unlock()
	}
	return f(ctx)
}

func (ms *memoryStore) withRLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		ms.lock.RLock()
		select {
		case <-ctx.Done():
			ms.lock.RUnlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer ms.lock.RUnlock()
	}
	return f(ctx)
}
