package stacktrace

import (
	"encoding/binary"
	"math"
	"reflect"
	"testing"
)

func TestPackUnpack_Identity(t *testing.T) {
	tests := []struct {
		name  string
		frame StackFrame
	}{
		{
			name: "full_frame",
			frame: StackFrame{
				Address:  0x7f1234567890,
				Address2: 0x1890,
				Object:   "/usr/lib/libwidget.so",
				Function: "compute_widget",
				Filename: "/src/widget.c",
				Line:     42,
			},
		},
		{name: "bare_frame", frame: StackFrame{Address: 0x400000}},
		{
			name:  "line_beyond_one_byte",
			frame: StackFrame{Address: 0x1, Filename: "big.go", Line: 70000},
		},
		{
			name:  "unicode_names",
			frame: StackFrame{Address: 0x1, Function: "opérateur()"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.frame.Pack(nil)
			if len(buf) != tt.frame.PackedSize() {
				t.Fatalf("PackedSize %d != packed length %d", tt.frame.PackedSize(), len(buf))
			}
			var got StackFrame
			rest, err := got.Unpack(buf)
			if err != nil {
				t.Fatalf("Unpack returned error: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("expected all bytes consumed, %d left", len(rest))
			}
			if !reflect.DeepEqual(got, tt.frame) {
				t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, tt.frame)
			}
		})
	}
}

func TestPack_ClampsLine(t *testing.T) {
	f := StackFrame{Address: 1, Filename: "f", Line: -5}
	var got StackFrame
	if _, err := got.Unpack(f.Pack(nil)); err != nil {
		t.Fatalf("Unpack returned error: %v", err)
	}
	if got.Line != 0 {
		t.Fatalf("negative line must clamp to 0, got %d", got.Line)
	}
}

func TestPack_Layout(t *testing.T) {
	f := StackFrame{Address: 0x11, Address2: 0x22, Object: "o", Filename: "f", Function: "fn", Line: 7}
	buf := f.Pack(nil)
	if binary.LittleEndian.Uint64(buf) != 0x11 {
		t.Fatalf("address not at offset 0")
	}
	if binary.LittleEndian.Uint64(buf[8:]) != 0x22 {
		t.Fatalf("address2 not at offset 8")
	}
	if binary.LittleEndian.Uint32(buf[16:]) != 7 {
		t.Fatalf("line not at offset 16")
	}
	if binary.LittleEndian.Uint32(buf[20:]) != 1 || buf[24] != 'o' {
		t.Fatalf("object not length-prefixed at offset 20")
	}
}

func TestPackArray_Roundtrip(t *testing.T) {
	frames := []StackFrame{
		{Address: 1, Function: "a"},
		{Address: 2, Function: "b", Filename: "b.go", Line: math.MaxUint16},
		{Address: 3},
	}
	data := PackArray(frames)
	if binary.LittleEndian.Uint32(data) != 3 {
		t.Fatalf("count prefix wrong")
	}
	got, err := UnpackArray(data)
	if err != nil {
		t.Fatalf("UnpackArray returned error: %v", err)
	}
	if !reflect.DeepEqual(got, frames) {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, frames)
	}
}

func TestUnpack_Truncated(t *testing.T) {
	f := StackFrame{Address: 1, Object: "obj", Function: "fn"}
	buf := f.Pack(nil)
	for _, cut := range []int{0, 4, 19, len(buf) - 1} {
		var got StackFrame
		if _, err := got.Unpack(buf[:cut]); err == nil {
			t.Fatalf("expected error for %d-byte input", cut)
		}
	}
	if _, err := UnpackArray([]byte{1, 0}); err == nil {
		t.Fatalf("expected error for truncated array header")
	}
	if _, err := UnpackArray([]byte{1, 0, 0, 0}); err == nil {
		t.Fatalf("expected error for missing frames")
	}
}
