package service

import (
	"context"
	"sync"

	"github.com/hanamilabs/pretender-bot/internal/domain"
	"github.com/hanamilabs/pretender-bot/internal/ports"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

// Directory is the in-memory view of the relay mapping. Every mutation is
// saved to the store before it becomes visible; a failed save leaves the
// directory untouched.
type Directory struct {
	store ports.RelayStore

	// writeMu serializes copy, save and swap so the store has one writer.
	writeMu sync.Mutex
	mu      sync.RWMutex
	relays  domain.Mapping
}

func NewDirectory(ctx context.Context, store ports.RelayStore) (*Directory, error) {
	relays, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if relays == nil {
		relays = domain.Mapping{}
	}
	telemetry.SetMappings(len(relays))
	return &Directory{store: store, relays: relays}, nil
}

func (d *Directory) Get(ownerID int64) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	destID, ok := d.relays[ownerID]
	return destID, ok
}

func (d *Directory) Put(ctx context.Context, ownerID int64, destID int64) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	next := d.Snapshot()
	next[ownerID] = destID
	return d.commit(ctx, next)
}

// Remove deletes the owner's binding. Removing an absent owner is a no-op
// and does not touch the store.
func (d *Directory) Remove(ctx context.Context, ownerID int64) (int64, bool, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	next := d.Snapshot()
	destID, ok := next[ownerID]
	if !ok {
		return 0, false, nil
	}
	delete(next, ownerID)
	if err := d.commit(ctx, next); err != nil {
		return 0, false, err
	}
	return destID, true, nil
}

func (d *Directory) Snapshot() domain.Mapping {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.relays.Clone()
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.relays)
}

func (d *Directory) commit(ctx context.Context, next domain.Mapping) error {
	err := telemetry.TimeFunc(telemetry.StoreSaveDuration, func() error {
		return d.store.Save(ctx, next.Clone())
	})
	if err != nil {
		telemetry.RecordStoreFailure()
		return err
	}

	d.mu.Lock()
	d.relays = next
	d.mu.Unlock()
	telemetry.SetMappings(len(next))
	return nil
}
