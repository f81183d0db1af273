package ids

import (
	"sync"
	"testing"
)

func TestGeneratorUniqueUnderConcurrency(t *testing.T) {
	g := NewGenerator(7)
	const workers, per = 8, 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("duplicate ids: got %d unique of %d", len(seen), workers*per)
	}
}

func TestNodeIDIsEncoded(t *testing.T) {
	g := NewGenerator(513)
	if n := NodeOf(g.Next()); n != 513 {
		t.Fatalf("node = %d", n)
	}
	if n := NodeOf(NewGenerator(5000).Next()); n != 1 {
		t.Fatalf("out of range node should fall back to 1, got %d", n)
	}
}
