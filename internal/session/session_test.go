package session

import (
	"fmt"
	"sync"
	"testing"
)

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := NewStore(2)

	s.Append("a", Exchange{User: "q1", Assistant: "a1"})
	s.Append("a", Exchange{User: "q2", Assistant: "a2"})

	got := s.Recent("a")
	if len(got) != 2 {
		t.Fatalf("want 2 exchanges, got %d", len(got))
	}
	if got[0].User != "q1" || got[1].Assistant != "a2" {
		t.Errorf("wrong ordering: %+v", got)
	}
}

func Test_Store_BoundEvictsOldest(t *testing.T) {
	t.Parallel()
	s := NewStore(2)

	for i := 1; i <= 5; i++ {
		s.Append("a", Exchange{
			User:      fmt.Sprintf("q%d", i),
			Assistant: fmt.Sprintf("a%d", i),
		})
	}

	got := s.Recent("a")
	if len(got) != 2 {
		t.Fatalf("want 2 exchanges after eviction, got %d", len(got))
	}
	if got[0].User != "q4" || got[1].User != "q5" {
		t.Errorf("want two most recent exchanges, got %+v", got)
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := NewStore(2)

	s.Append("a", Exchange{User: "from a"})
	s.Append("b", Exchange{User: "from b"})

	if got := s.Recent("a"); len(got) != 1 || got[0].User != "from a" {
		t.Errorf("session a: %+v", got)
	}
	if got := s.Recent("b"); len(got) != 1 || got[0].User != "from b" {
		t.Errorf("session b: %+v", got)
	}
}

func Test_Store_UnknownSessionIsEmpty(t *testing.T) {
	t.Parallel()
	s := NewStore(0)

	if got := s.Recent("never-seen"); got != nil {
		t.Errorf("want nil for unknown session, got %+v", got)
	}
}

func Test_Store_RecentReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewStore(2)
	s.Append("a", Exchange{User: "original"})

	got := s.Recent("a")
	got[0].User = "mutated"

	if again := s.Recent("a"); again[0].User != "original" {
		t.Errorf("caller mutation leaked into the store: %+v", again)
	}
}

func Test_Store_Clear(t *testing.T) {
	t.Parallel()
	s := NewStore(2)
	s.Append("a", Exchange{User: "q"})

	s.Clear("a")
	if got := s.Recent("a"); got != nil {
		t.Errorf("want nil after clear, got %+v", got)
	}
}

func Test_Store_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := NewStore(2)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%4)
			s.Append(id, Exchange{User: fmt.Sprintf("q%d", n)})
		}(i)
	}
	wg.Wait()

	for i := range 4 {
		id := fmt.Sprintf("s%d", i)
		if got := s.Recent(id); len(got) != 2 {
			t.Errorf("session %s: want 2 exchanges, got %d", id, len(got))
		}
	}
}

func Test_NewSessionID_UniqueAndHex(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 50 {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID: %v", err)
		}
		if len(id) != 32 {
			t.Fatalf("id %q: want 32 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
