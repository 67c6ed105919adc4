package symcache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type mockLister struct {
	lines []string
	err   error
	calls int
}

func (m *mockLister) List() ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.lines, nil
}

func TestParseNM(t *testing.T) {
	lines := []string{
		"0000000000401000 T main",
		"0000000000402000 t helper",
		"  U printf", // undefined: leading whitespace
		"0000000000403000 W weak symbol with spaces",
		"badaddr T broken",
		"0000000000404000", // too few fields
		"",
		"0000000000405000 B bss_var",
	}
	records := ParseNM(lines)
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(records), records)
	}
	if records[0].Name != "main" || records[0].Kind != 'T' || records[0].Addr != 0x401000 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[2].Name != "weak symbol with spaces" {
		t.Fatalf("name should keep embedded spaces, got %q", records[2].Name)
	}
}

func TestTable_Lookup(t *testing.T) {
	// note: input is unordered; duplicates preserve parse order
	table := NewTable([]Record{
		{Addr: 0x2000, Kind: 'T', Name: "beta"},
		{Addr: 0x1000, Kind: 'T', Name: "alpha"},
		{Addr: 0x2000, Kind: 'W', Name: "beta_alias"},
		{Addr: 0x3000, Kind: 't', Name: "gamma"},
	})

	tests := []struct {
		addr     uint64
		wantName string
		wantHit  bool
	}{
		{addr: 0x0fff, wantHit: false},
		{addr: 0x1000, wantName: "alpha", wantHit: true},
		{addr: 0x1fff, wantName: "alpha", wantHit: true},
		{addr: 0x2000, wantName: "beta", wantHit: true}, // first-wins on duplicates
		{addr: 0x2500, wantName: "beta", wantHit: true},
		{addr: 0x9999, wantName: "gamma", wantHit: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("addr=0x%x", tt.addr), func(t *testing.T) {
			rec, ok := table.Lookup(tt.addr)
			if ok != tt.wantHit {
				t.Fatalf("hit=%v, want %v", ok, tt.wantHit)
			}
			if ok && rec.Name != tt.wantName {
				t.Fatalf("name=%q, want %q", rec.Name, tt.wantName)
			}
		})
	}

	t.Run("empty_table_misses", func(t *testing.T) {
		if _, ok := NewTable(nil).Lookup(0x1000); ok {
			t.Fatalf("expected miss on empty table")
		}
	})

	t.Run("lookup_is_monotone", func(t *testing.T) {
		var prev uint64
		for _, addr := range []uint64{0x1000, 0x1800, 0x2000, 0x2fff, 0x3001} {
			rec, ok := table.Lookup(addr)
			if !ok {
				t.Fatalf("expected hit for 0x%x", addr)
			}
			if rec.Addr < prev {
				t.Fatalf("lookup not monotone: 0x%x after 0x%x", rec.Addr, prev)
			}
			prev = rec.Addr
		}
	})
}

func TestCache(t *testing.T) {
	t.Run("load_is_idempotent", func(t *testing.T) {
		lister := &mockLister{lines: []string{"0000000000001000 T f"}}
		cache := NewCache(lister)
		t1, err := cache.Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		t2, err := cache.Load()
		if err != nil {
			t.Fatalf("second Load returned error: %v", err)
		}
		if t1 != t2 {
			t.Fatalf("expected the same table from repeated loads")
		}
		if lister.calls != 1 {
			t.Fatalf("lister invoked %d times, want 1", lister.calls)
		}
	})

	t.Run("failed_load_is_cached_until_clear", func(t *testing.T) {
		lister := &mockLister{err: errors.New("nm not found")}
		cache := NewCache(lister)
		_, err1 := cache.Load()
		_, err2 := cache.Load()
		if err1 == nil || err2 == nil {
			t.Fatalf("expected cached errors, got %v / %v", err1, err2)
		}
		if !errors.Is(err1, ErrCacheLoad) {
			t.Fatalf("expected ErrCacheLoad, got %v", err1)
		}
		if lister.calls != 1 {
			t.Fatalf("lister invoked %d times, want 1", lister.calls)
		}

		lister.err = nil
		lister.lines = []string{"0000000000001000 T f"}
		cache.Clear()
		table, err := cache.Load()
		if err != nil {
			t.Fatalf("Load after Clear returned error: %v", err)
		}
		if table.Len() != 1 {
			t.Fatalf("expected 1 symbol after reload, got %d", table.Len())
		}
	})

	t.Run("concurrent_lookups_race_free", func(t *testing.T) {
		cache := NewCache(&mockLister{lines: []string{"0000000000001000 T f"}})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					cache.Lookup(0x1234)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cache.Clear()
			}
		}()
		wg.Wait()
	})
}
