package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// MapRegion is one /proc/<pid>/maps entry.
type MapRegion struct {
	Start, End uint64
	Offset     uint64
	Perms      string
	Path       string
}

// MapRegions holds the parsed memory map of a process, sorted by start
// address for binary search.
type MapRegions struct {
	regions []MapRegion
}

func NewMapRegions(lines []string) *MapRegions {
	var regions []MapRegion
	for _, line := range lines {
		if line == "" {
			continue
		}
		entry, err := parseMapEntry(line)
		if err != nil {
			slog.Warn("Failed to parse map entry", "line", line, "error", err)
			continue
		}
		regions = append(regions, entry)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	return &MapRegions{regions: regions}
}

func (m *MapRegions) FindRegion(pc uint64) *MapRegion {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End > pc })
	if i == len(m.regions) || pc < m.regions[i].Start {
		return nil
	}
	return &m.regions[i]
}

// BaseOf returns the lowest mapping start for the given path, the module's
// load base. Mappings split a module into several regions; the base is the
// first.
func (m *MapRegions) BaseOf(path string) (uint64, bool) {
	for _, r := range m.regions {
		if r.Path == path {
			return r.Start, true
		}
	}
	return 0, false
}

// Example format:
//
//	55d4b2000000-55d4b2021000 r--p 00000000 08:01 131073 /usr/bin/myprog
func parseMapEntry(line string) (MapRegion, error) {
	parts := strings.Fields(line)
	if len(parts) < 5 {
		return MapRegion{}, fmt.Errorf("not enough fields: %d in line %q", len(parts), line)
	}
	addr := parts[0]
	perms := parts[1]
	off := parts[2]
	// pathname is optional and may be in parts[5:] - may contain spaces, mind you!
	var path string
	if len(parts) >= 6 {
		path = strings.Join(parts[5:], " ")
	}
	se := strings.SplitN(addr, "-", 2)
	if len(se) != 2 {
		return MapRegion{}, fmt.Errorf("invalid address range format in line %q", line)
	}
	start, err1 := strconv.ParseUint(se[0], 16, 64)
	end, err2 := strconv.ParseUint(se[1], 16, 64)
	offv, err3 := strconv.ParseUint(off, 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return MapRegion{}, fmt.Errorf("failed to parse numeric addresses in line %q", line)
	}
	return MapRegion{Start: start, End: end, Offset: offv, Perms: perms, Path: path}, nil
}
