package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

func TestDirectoryRemoveAbsentOwnerSkipsStore(t *testing.T) {
	store := newMemStore(domain.Mapping{1: -10})
	directory, err := NewDirectory(context.Background(), store)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}

	destID, removed, err := directory.Remove(context.Background(), 2)
	if err != nil || removed || destID != 0 {
		t.Fatalf("unexpected result dest=%d removed=%v err=%v", destID, removed, err)
	}
	if _, saves := store.snapshot(); saves != 0 {
		t.Fatalf("expected no save, got %d", saves)
	}
}

func TestDirectorySnapshotIsACopy(t *testing.T) {
	directory, err := NewDirectory(context.Background(), newMemStore(domain.Mapping{1: -10}))
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	snapshot := directory.Snapshot()
	snapshot[1] = -99
	snapshot[2] = -20

	if dest, _ := directory.Get(1); dest != -10 {
		t.Fatalf("snapshot mutation leaked into directory: %d", dest)
	}
	if directory.Len() != 1 {
		t.Fatalf("expected len 1, got %d", directory.Len())
	}
}

func TestDirectoryFailedPutIsInvisible(t *testing.T) {
	store := newMemStore(domain.Mapping{1: -10})
	directory, err := NewDirectory(context.Background(), store)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	store.failSave = errors.New("boom")

	if err := directory.Put(context.Background(), 1, -20); err == nil {
		t.Fatal("expected error")
	}
	if err := directory.Put(context.Background(), 2, -30); err == nil {
		t.Fatal("expected error")
	}
	if dest, _ := directory.Get(1); dest != -10 {
		t.Fatalf("expected old binding, got %d", dest)
	}
	if _, ok := directory.Get(2); ok {
		t.Fatal("failed insert is visible")
	}
}

func TestDirectoryConcurrentPutsAllPersisted(t *testing.T) {
	store := newMemStore(nil)
	directory, err := NewDirectory(context.Background(), store)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(owner int64) {
			defer wg.Done()
			if err := directory.Put(context.Background(), owner, -owner); err != nil {
				t.Errorf("put %d: %v", owner, err)
			}
		}(i)
	}
	wg.Wait()

	persisted, saves := store.snapshot()
	if saves != 50 {
		t.Fatalf("expected 50 saves, got %d", saves)
	}
	if len(persisted) != 50 || directory.Len() != 50 {
		t.Fatalf("expected 50 bindings, store=%d directory=%d", len(persisted), directory.Len())
	}
	for owner, dest := range persisted {
		if dest != -owner {
			t.Fatalf("owner %d bound to %d", owner, dest)
		}
	}
}
