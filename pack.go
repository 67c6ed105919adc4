package stacktrace

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire layout of a frame: address (8 bytes LE), address2 (8 bytes LE),
// line (4 bytes LE), then object, filename and function as 4-byte
// length-prefixed byte strings. PackArray prefixes the sequence with a
// 4-byte count.

// PackedSize returns the number of bytes Pack will append for this frame.
func (f *StackFrame) PackedSize() int {
	return 8 + 8 + 4 + 4 + len(f.Object) + 4 + len(f.Filename) + 4 + len(f.Function)
}

// Pack appends the compact byte representation of the frame to buf.
func (f *StackFrame) Pack(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, f.Address)
	buf = binary.LittleEndian.AppendUint64(buf, f.Address2)
	line := int64(f.Line)
	if line < 0 {
		line = 0
	}
	if line > math.MaxUint32 {
		line = math.MaxUint32
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(line))
	buf = appendBytes(buf, f.Object)
	buf = appendBytes(buf, f.Filename)
	buf = appendBytes(buf, f.Function)
	return buf
}

// Unpack decodes one frame from data, returning the remaining bytes.
func (f *StackFrame) Unpack(data []byte) ([]byte, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("packed frame truncated: %d bytes", len(data))
	}
	f.Address = binary.LittleEndian.Uint64(data)
	f.Address2 = binary.LittleEndian.Uint64(data[8:])
	f.Line = int(binary.LittleEndian.Uint32(data[16:]))
	data = data[20:]
	var err error
	if f.Object, data, err = consumeBytes(data); err != nil {
		return nil, err
	}
	if f.Filename, data, err = consumeBytes(data); err != nil {
		return nil, err
	}
	if f.Function, data, err = consumeBytes(data); err != nil {
		return nil, err
	}
	if f.Filename == "" {
		f.Line = 0
	}
	return data, nil
}

// PackArray packs a frame sequence, prefixed with a 4-byte count.
func PackArray(frames []StackFrame) []byte {
	size := 4
	for i := range frames {
		size += frames[i].PackedSize()
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frames)))
	for i := range frames {
		buf = frames[i].Pack(buf)
	}
	return buf
}

// UnpackArray decodes a sequence produced by PackArray.
func UnpackArray(data []byte) ([]StackFrame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("packed array truncated: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data)
	data = data[4:]
	frames := make([]StackFrame, 0, count)
	for i := uint32(0); i < count; i++ {
		var f StackFrame
		var err error
		data, err = f.Unpack(data)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func appendBytes(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func consumeBytes(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("packed string truncated: %d bytes", len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("packed string truncated: need %d, have %d", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}
