package exporter

import (
	"compress/gzip"
	"io"

	"github.com/google/pprof/profile"

	stacktrace "github.com/berrill/StackTrace"
)

// BuildPprofProfile renders samples as a pprof profile. Stacks are emitted
// leaf-to-root, the order pprof expects.
func BuildPprofProfile(samples []Sample, sampleTypeName, sampleTypeUnit string) (*profile.Profile, error) {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: sampleTypeName, Unit: sampleTypeUnit}},
	}
	if len(samples) == 0 {
		return p, nil
	}

	funcs := map[string]*profile.Function{}
	locMap := map[uint64]*profile.Location{}
	nextFuncID := uint64(1)
	nextLocID := uint64(1)

	addFunction := func(frame stacktrace.StackFrame) *profile.Function {
		name := frame.Function
		if name == "" {
			name = "<unknown>"
		}
		if f, ok := funcs[name]; ok {
			return f
		}
		fn := &profile.Function{
			ID:       nextFuncID,
			Name:     name,
			Filename: frame.Filename,
		}
		nextFuncID++
		funcs[name] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	addLocationFor := func(frame stacktrace.StackFrame) *profile.Location {
		if loc, ok := locMap[frame.Address]; ok {
			return loc
		}
		fn := addFunction(frame)
		loc := &profile.Location{
			ID:      nextLocID,
			Address: frame.Address,
			Line:    []profile.Line{{Function: fn, Line: int64(frame.Line)}},
		}
		nextLocID++
		locMap[frame.Address] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, s := range samples {
		if len(s.Stack) == 0 {
			continue
		}
		locs := make([]*profile.Location, 0, len(s.Stack))
		for _, frame := range s.Stack {
			locs = append(locs, addLocationFor(frame))
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Value:    []int64{int64(s.Count)},
			Location: locs,
		})
	}
	return p, nil
}

// WriteProfileGzip writes the profile in the gzipped wire format.
func WriteProfileGzip(p *profile.Profile, w io.Writer) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	return p.Write(gw)
}
