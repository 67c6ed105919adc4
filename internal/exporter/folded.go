package exporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// BuildFoldedStacks aggregates samples into the folded format flamegraph
// tooling reads: one line per distinct stack, frames root->leaf joined by
// semicolons, followed by the count.
func BuildFoldedStacks(samples []Sample) map[string]uint64 {
	agg := make(map[string]uint64)
	for _, s := range samples {
		if len(s.Stack) == 0 {
			continue
		}
		names := make([]string, 0, len(s.Stack))
		for i := len(s.Stack) - 1; i >= 0; i-- { // reverse: flamegraphs expect root->leaf order
			names = append(names, escapeFoldedName(s.Stack[i].Function))
		}
		agg[strings.Join(names, ";")] += uint64(s.Count)
	}
	return agg
}

func escapeFoldedName(name string) string {
	// semicolons separate frames and newlines separate lines
	name = strings.ReplaceAll(name, ";", "_")
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

// WriteFoldedStacks writes the aggregate deterministically: descending
// count, ties by stack text.
func WriteFoldedStacks(agg map[string]uint64, w io.Writer) error {
	type kv struct {
		k string
		v uint64
	}
	items := make([]kv, 0, len(agg))
	for k, v := range agg {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v == items[j].v {
			return items[i].k < items[j].k
		}
		return items[i].v > items[j].v
	})
	for _, it := range items {
		if _, err := fmt.Fprintf(w, "%s %d\n", it.k, it.v); err != nil {
			return err
		}
	}
	return nil
}
