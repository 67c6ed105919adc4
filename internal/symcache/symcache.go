// Package symcache maintains a sorted table of the current executable's
// symbols, obtained from the system nm tool. The dynamic loader only resolves
// names for exported symbols; the table answers "which function owns this
// address" for everything nm can see.
package symcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrCacheLoad is returned (and cached) when the symbol listing could not be
// obtained or parsed. Subsequent Load calls return the same error until Clear.
var ErrCacheLoad = errors.New("symbol cache load failed")

// Record is one symbol table entry. Kind is the single-character linkage type
// reported by nm (T, t, B, D, W, ...) and is carried opaquely.
type Record struct {
	Addr uint64
	Kind byte
	Name string
}

// Table is an immutable symbol table sorted ascending by address. Duplicate
// addresses are permitted and preserve parse order.
type Table struct {
	records []Record
}

func NewTable(records []Record) *Table {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Addr < sorted[j].Addr })
	return &Table{records: sorted}
}

func (t *Table) Records() []Record { return t.records }

func (t *Table) Len() int { return len(t.records) }

// Lookup returns the record whose body contains addr: the nearest record at or
// below addr. Among duplicates at the same address the earliest-parsed record
// wins. ok is false when addr precedes the first record or the table is empty.
func (t *Table) Lookup(addr uint64) (Record, bool) {
	if len(t.records) == 0 {
		return Record{}, false
	}
	i := sort.Search(len(t.records), func(i int) bool { return t.records[i].Addr > addr })
	if i == 0 {
		return Record{}, false
	}
	i--
	for i > 0 && t.records[i-1].Addr == t.records[i].Addr {
		i--
	}
	return t.records[i], true
}

// Lister produces the raw nm output lines for the executable.
type Lister interface {
	List() ([]string, error)
}

// Cache lazily builds a Table from a Lister. The first Load populates the
// table; a failed first Load caches the error. Readers after a successful
// load take no lock.
type Cache struct {
	mu     sync.Mutex
	table  atomic.Pointer[Table]
	err    error
	loaded bool
	lister Lister
}

func NewCache(lister Lister) *Cache {
	return &Cache{lister: lister}
}

func (c *Cache) Load() (*Table, error) {
	if t := c.table.Load(); t != nil {
		return t, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		if c.err != nil {
			return nil, c.err
		}
		return c.table.Load(), nil
	}
	c.loaded = true
	lines, err := c.lister.List()
	if err != nil {
		c.err = fmt.Errorf("%w: %v", ErrCacheLoad, err)
		return nil, c.err
	}
	table := NewTable(ParseNM(lines))
	slog.Debug("Loaded executable symbol table", "symbols", table.Len())
	c.table.Store(table)
	return table, nil
}

// Lookup is a convenience wrapper over Load + Table.Lookup. A load failure is
// reported as a miss; the cached error stays available through Load.
func (c *Cache) Lookup(addr uint64) (Record, bool) {
	table, err := c.Load()
	if err != nil {
		return Record{}, false
	}
	return table.Lookup(addr)
}

// Clear resets to the pre-load state. Concurrent readers observe either the
// old table or a miss, never a torn table.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.err = nil
	c.table.Store(nil)
}

// ParseNM parses `nm -n` output. Accepted lines have the form
// "<hex-address> <kind-char> <name...>"; the name keeps embedded spaces.
// Lines starting with whitespace are undefined symbols and are rejected;
// lines with fewer than three fields are skipped without error.
func ParseNM(lines []string) []Record {
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
			continue
		}
		addr, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		records = append(records, Record{Addr: addr, Kind: parts[1][0], Name: strings.TrimRight(parts[2], "\n")})
	}
	return records
}
