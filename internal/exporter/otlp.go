package exporter

import (
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
)

// NowFunc produces unix nsec; injected so payloads are reproducible in tests.
type NowFunc func() uint64

// BuildOtlpProfile renders samples as an OTLP profiles payload. The payload
// carries string/function/location/stack tables with index 0 reserved as the
// empty entry. Strings are interned; functions and locations get one entry
// per frame and stacks one entry per sample, without deduplication.
func BuildOtlpProfile(samples []Sample, now NowFunc) *profilespb.ProfilesData {
	nowNsec := now()
	stringTable := []string{""}
	mappingTable := []*profilespb.Mapping{{}}
	locationTable := []*profilespb.Location{{}}
	functionTable := []*profilespb.Function{{}}
	stackTable := []*profilespb.Stack{{}}

	defaultMappingIdx := 0
	profileSamples := make([]*profilespb.Sample, 0, len(samples))

	sampleType := &profilespb.ValueType{
		TypeStrindex: strIndex(&stringTable, "threads"),
		UnitStrindex: strIndex(&stringTable, "count"),
	}

	buildStack := func(s Sample) int32 {
		locIndices := make([]int32, 0, len(s.Stack))
		for _, frame := range s.Stack {
			name := frame.Function
			if name == "" {
				name = "<unknown>"
			}
			funcNameIdx := strIndex(&stringTable, name)
			fn := &profilespb.Function{
				NameStrindex:       funcNameIdx,
				SystemNameStrindex: funcNameIdx,
				FilenameStrindex:   strIndex(&stringTable, frame.Filename),
			}
			functionTable = append(functionTable, fn)
			fnIdx := int32(len(functionTable) - 1)

			loc := &profilespb.Location{
				Address:      frame.Address,
				MappingIndex: int32(defaultMappingIdx),
				Lines: []*profilespb.Line{
					{
						FunctionIndex: fnIdx,
						Line:          int64(frame.Line),
					},
				},
			}
			locationTable = append(locationTable, loc)
			locIndices = append(locIndices, int32(len(locationTable)-1))
		}
		stack := &profilespb.Stack{LocationIndices: locIndices}
		stackTable = append(stackTable, stack)
		return int32(len(stackTable) - 1)
	}

	for _, s := range samples {
		if len(s.Stack) == 0 {
			continue
		}
		profileSamples = append(profileSamples, &profilespb.Sample{
			StackIndex:         buildStack(s),
			Values:             []int64{int64(s.Count)},
			AttributeIndices:   []int32{},
			LinkIndex:          0,
			TimestampsUnixNano: []uint64{nowNsec},
		})
	}

	profile := &profilespb.Profile{
		TimeUnixNano: nowNsec,
		DurationNano: uint64(0),
		SampleType:   sampleType,
		Samples:      profileSamples,
	}

	resourceProfiles := &profilespb.ResourceProfiles{
		Resource: &resourceV1.Resource{},
		ScopeProfiles: []*profilespb.ScopeProfiles{
			{
				Scope: &v1.InstrumentationScope{
					Name:    "stacktrace",
					Version: "v1",
				},
				Profiles: []*profilespb.Profile{profile},
			},
		},
	}

	dictionary := &profilespb.ProfilesDictionary{
		MappingTable:  mappingTable,
		LocationTable: locationTable,
		FunctionTable: functionTable,
		StackTable:    stackTable,
		StringTable:   stringTable,
	}

	return &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{resourceProfiles},
		Dictionary:       dictionary,
	}
}

func strIndex(table *[]string, s string) int32 {
	for i, v := range *table {
		if v == s {
			return int32(i)
		}
	}
	*table = append(*table, s)
	return int32(len(*table) - 1)
}
