// Package snapshot freezes references to mutable master data into document
// rows at the moment a document binds to them. Snapshot fields are
// write-once-if-null: once populated they are never overwritten by a later
// read of the live master record, so renaming a worker never rewrites an
// already-issued legal document.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/sigeso/sst-registry/pkg/cache"
	"github.com/sigeso/sst-registry/pkg/masterdata"
)

// WorkerSnapshot is the frozen display data of a worker reference.
type WorkerSnapshot struct {
	FullName       string
	DocumentNumber string
	JobTitle       string
}

// PPESnapshot is the frozen display data of a PPE catalog reference.
type PPESnapshot struct {
	Name         string
	Category     string
	ValidityDays int
}

// Resolver resolves current master-data display fields. It is the only way
// the document services read master data.
type Resolver interface {
	ResolveWorker(ctx context.Context, workerID string) (WorkerSnapshot, error)
	ResolvePPEItem(ctx context.Context, itemID string) (PPESnapshot, error)
}

// FreezeIfAbsent copies src into *dst only when *dst is empty. It is the
// single place the write-once contract lives; call sites never overwrite
// snapshot fields directly.
func FreezeIfAbsent(dst *string, src string) bool {
	if dst == nil || *dst != "" {
		return false
	}
	*dst = src
	return true
}

// FreezeIntIfAbsent is FreezeIfAbsent for integer snapshot fields, where
// zero means unset.
func FreezeIntIfAbsent(dst *int, src int) bool {
	if dst == nil || *dst != 0 {
		return false
	}
	*dst = src
	return true
}

// StoreResolver resolves display fields from the master-data store, with an
// LRU in front so bursts of document writes do not hammer the workers table.
type StoreResolver struct {
	store *masterdata.Store
	lru   *cache.LRUCache
}

// NewStoreResolver creates a StoreResolver. ttl bounds how stale a resolved
// name may be; documents created after a rename must see the new name.
func NewStoreResolver(store *masterdata.Store, ttl time.Duration) *StoreResolver {
	return &StoreResolver{
		store: store,
		lru:   cache.NewLRUCache(4096, ttl),
	}
}

// ResolveWorker returns the worker's current display fields.
func (r *StoreResolver) ResolveWorker(ctx context.Context, workerID string) (WorkerSnapshot, error) {
	key := "worker:" + workerID
	if v, ok := r.lru.Get(key); ok {
		return v.(WorkerSnapshot), nil
	}
	w, err := r.store.GetWorker(workerID)
	if err != nil {
		return WorkerSnapshot{}, fmt.Errorf("resolve worker: %w", err)
	}
	snap := WorkerSnapshot{
		FullName:       w.FullName,
		DocumentNumber: w.DocumentNumber,
		JobTitle:       w.JobTitle,
	}
	r.lru.Set(key, snap)
	return snap, nil
}

// ResolvePPEItem returns the catalog entry's current display fields.
func (r *StoreResolver) ResolvePPEItem(ctx context.Context, itemID string) (PPESnapshot, error) {
	key := "ppe:" + itemID
	if v, ok := r.lru.Get(key); ok {
		return v.(PPESnapshot), nil
	}
	p, err := r.store.GetPPEItem(itemID)
	if err != nil {
		return PPESnapshot{}, fmt.Errorf("resolve ppe item: %w", err)
	}
	snap := PPESnapshot{
		Name:         p.Name,
		Category:     p.Category,
		ValidityDays: p.ValidityDays,
	}
	r.lru.Set(key, snap)
	return snap, nil
}

// Invalidate drops the cached entry for a master record after it changed.
func (r *StoreResolver) Invalidate(kind, id string) {
	r.lru.Invalidate(kind + ":" + id)
}
