// Package guest implements the guest execution & host-call boundary: loading
// an immutable Module, instantiating it with a fresh GuestState, and
// servicing host calls with strict bounds checking and determinism
// guarantees.
package guest

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOutOfBounds is returned by every bounds-checked memory accessor when the
// requested ptr/len pair falls outside the guest's linear memory.
var ErrOutOfBounds = errors.New("guest: memory access out of bounds")

// Memory is the guest's single contiguous linear byte array. All host calls
// that touch guest memory go through these bounds-checked helpers; there is
// no unchecked access path.
type Memory struct {
	buf   []byte
	limit int // configured growth ceiling; 0 means "fixed size, no growth"
}

// NewMemory allocates a linear memory region of size bytes with no growth
// allowed beyond limit (limit <= 0 means fixed at size).
func NewMemory(size, limit int) *Memory {
	if limit > 0 && limit < size {
		limit = size
	}
	return &Memory{buf: make([]byte, size), limit: limit}
}

// Len returns the current memory size in bytes.
func (m *Memory) Len() int { return len(m.buf) }

// Bytes returns the whole backing array. Used only by the snapshotter and by
// save_state/load_state fallbacks — never handed to guest code directly.
func (m *Memory) Bytes() []byte { return m.buf }

// SetBytes replaces the backing array wholesale (used by Restore). The
// length must match what was captured; growth limits are not re-validated
// since this path only ever restores a previously valid state.
func (m *Memory) SetBytes(b []byte) {
	m.buf = make([]byte, len(b))
	copy(m.buf, b)
}

// Grow extends memory to newSize bytes, zero-filling the new tail. It fails
// if newSize exceeds the configured limit.
func (m *Memory) Grow(newSize int) error {
	if newSize < len(m.buf) {
		return nil
	}
	limit := m.limit
	if limit <= 0 {
		limit = len(m.buf)
	}
	if newSize > limit {
		return ErrOutOfBounds
	}
	grown := make([]byte, newSize)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func (m *Memory) bounds(ptr, length uint32) (int, int, bool) {
	start := int(ptr)
	end := start + int(length)
	if length == 0 {
		if start < 0 || start > len(m.buf) {
			return 0, 0, false
		}
		return start, start, true
	}
	if start < 0 || end < start || end > len(m.buf) {
		return 0, 0, false
	}
	return start, end, true
}

// Read returns a copy of length bytes starting at ptr, or ErrOutOfBounds.
func (m *Memory) Read(ptr, length uint32) ([]byte, error) {
	start, end, ok := m.bounds(ptr, length)
	if !ok {
		return nil, ErrOutOfBounds
	}
	out := make([]byte, length)
	copy(out, m.buf[start:end])
	return out, nil
}

// ReadString reads a UTF-8 string of the given byte length. Invalid UTF-8 is
// the caller's concern (logging silently drops it; asset ids that are not
// valid UTF-8 are treated as unknown ids).
func (m *Memory) ReadString(ptr, length uint32) (string, error) {
	b, err := m.Read(ptr, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write copies data into guest memory at ptr, failing without partial writes
// if it would run out of bounds.
func (m *Memory) Write(ptr uint32, data []byte) error {
	start, end, ok := m.bounds(ptr, uint32(len(data)))
	if !ok {
		return ErrOutOfBounds
	}
	copy(m.buf[start:end], data)
	return nil
}

func (m *Memory) ReadU32(ptr uint32) (uint32, error) {
	start, end, ok := m.bounds(ptr, 4)
	if !ok {
		return 0, ErrOutOfBounds
	}
	return binary.LittleEndian.Uint32(m.buf[start:end]), nil
}

func (m *Memory) WriteU32(ptr uint32, v uint32) error {
	start, end, ok := m.bounds(ptr, 4)
	if !ok {
		return ErrOutOfBounds
	}
	binary.LittleEndian.PutUint32(m.buf[start:end], v)
	return nil
}

func (m *Memory) ReadU64(ptr uint32) (uint64, error) {
	start, end, ok := m.bounds(ptr, 8)
	if !ok {
		return 0, ErrOutOfBounds
	}
	return binary.LittleEndian.Uint64(m.buf[start:end]), nil
}

func (m *Memory) WriteU64(ptr uint32, v uint64) error {
	start, end, ok := m.bounds(ptr, 8)
	if !ok {
		return ErrOutOfBounds
	}
	binary.LittleEndian.PutUint64(m.buf[start:end], v)
	return nil
}

// ReadMatrix4 reads 16 little-endian float32 values (a column-major 4x4
// matrix) starting at ptr, used by transform_set.
func (m *Memory) ReadMatrix4(ptr uint32) ([16]float32, error) {
	var out [16]float32
	b, err := m.Read(ptr, 16*4)
	if err != nil {
		return out, err
	}
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
