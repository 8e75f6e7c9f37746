package subscribers

import (
	"errors"
	"sync"
	"testing"
)

type memStore struct {
	added   []int64
	removed []int64
	initial []int64
	failAdd bool
}

func (s *memStore) AddSubscriber(chatID int64) error {
	if s.failAdd {
		return errors.New("disk full")
	}
	s.added = append(s.added, chatID)
	return nil
}

func (s *memStore) RemoveSubscriber(chatID int64) error {
	s.removed = append(s.removed, chatID)
	return nil
}

func (s *memStore) LoadSubscribers() ([]int64, error) {
	return s.initial, nil
}

func TestRegistry_AddRemoveContains(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}

	added, err := r.Add(100)
	if err != nil || !added {
		t.Fatalf("Add(100) = (%v, %v), want (true, nil)", added, err)
	}
	added, err = r.Add(100)
	if err != nil || added {
		t.Fatalf("Duplicate Add(100) = (%v, %v), want (false, nil)", added, err)
	}
	if !r.Contains(100) {
		t.Error("Contains(100) = false after add")
	}

	removed, err := r.Remove(100)
	if err != nil || !removed {
		t.Fatalf("Remove(100) = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = r.Remove(100)
	if err != nil || removed {
		t.Fatalf("Remove of absent id = (%v, %v), want (false, nil)", removed, err)
	}
	if r.Contains(100) {
		t.Error("Contains(100) = true after remove")
	}
}

func TestRegistry_InvalidChatID(t *testing.T) {
	r, _ := New(nil)
	if _, err := r.Add(0); err == nil {
		t.Error("Expected error for chat id 0")
	}
	if _, err := r.Add(-5); err == nil {
		t.Error("Expected error for negative chat id")
	}
	if _, err := r.Remove(0); err == nil {
		t.Error("Expected error for chat id 0 on remove")
	}
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	r, _ := New(nil)
	for _, id := range []int64{30, 10, 20} {
		if _, err := r.Add(id); err != nil {
			t.Fatal(err)
		}
	}

	snap := r.Snapshot()
	want := []int64{10, 20, 30}
	if len(snap) != len(want) {
		t.Fatalf("Snapshot length = %d, want %d", len(snap), len(want))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("Snapshot[%d] = %d, want %d", i, snap[i], want[i])
		}
	}

	// The snapshot is a copy; mutating the registry afterwards must not
	// change it.
	if _, err := r.Remove(10); err != nil {
		t.Fatal(err)
	}
	if snap[0] != 10 {
		t.Error("Snapshot mutated by later registry change")
	}
}

func TestRegistry_PersistenceWriteThrough(t *testing.T) {
	store := &memStore{initial: []int64{5, 6}}
	r, err := New(store)
	if err != nil {
		t.Fatal(err)
	}

	if r.Count() != 2 {
		t.Fatalf("Count after load = %d, want 2", r.Count())
	}
	if !r.Contains(5) || !r.Contains(6) {
		t.Error("Persisted members not loaded")
	}

	if _, err := r.Add(7); err != nil {
		t.Fatal(err)
	}
	if len(store.added) != 1 || store.added[0] != 7 {
		t.Errorf("Store.added = %v, want [7]", store.added)
	}

	if _, err := r.Remove(5); err != nil {
		t.Fatal(err)
	}
	if len(store.removed) != 1 || store.removed[0] != 5 {
		t.Errorf("Store.removed = %v, want [5]", store.removed)
	}
}

func TestRegistry_StoreFailureDoesNotMutate(t *testing.T) {
	store := &memStore{failAdd: true}
	r, err := New(store)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Add(9); err == nil {
		t.Fatal("Expected store failure to propagate")
	}
	if r.Contains(9) {
		t.Error("Membership changed despite persistence failure")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, _ := New(nil)
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = r.Add(id)
			r.Contains(id)
			r.Snapshot()
		}(i)
	}
	wg.Wait()

	if r.Count() != 50 {
		t.Errorf("Count = %d, want 50", r.Count())
	}
}
