package dialogue

import (
	"sync"
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(func(key string) *Session {
		return newSession(key, DefaultFields(), time.Now())
	})

	s1, created := reg.GetOrCreate("a")
	if !created || s1 == nil {
		t.Fatalf("expected session created")
	}
	s2, created := reg.GetOrCreate("a")
	if created || s2 != s1 {
		t.Fatalf("expected same session on second contact")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}
	if !reg.Remove("a") || reg.Remove("a") {
		t.Fatalf("expected single successful removal")
	}
	if _, ok := reg.Get("a"); ok {
		t.Fatalf("session must be gone")
	}
	if reg.Count() != 0 {
		t.Fatalf("expected count 0, got %d", reg.Count())
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry(func(key string) *Session {
		return newSession(key, DefaultFields(), time.Now())
	})
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, created := reg.GetOrCreate("same"); created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if createdCount != 1 || reg.Count() != 1 {
		t.Fatalf("expected exactly one creation, got %d (count %d)", createdCount, reg.Count())
	}
}
