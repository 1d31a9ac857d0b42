package tracker

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// Snapshot framing uses a magic + version prefix ahead of the payload.
// gob is used for the payload codec because EngineState is map-free (slices
// and scalars only), which keeps gob's encoding deterministic, and no
// third-party binary-serialization library fits better for a field-by-field
// encoder of this shape.
const (
	snapshotMagic   = "NCTK"
	snapshotVersion = uint32(1)
)

// Snapshot serializes the engine's complete working state to an opaque blob.
func (s *EngineState) Snapshot() ([]byte, error) {
	var body bytes.Buffer
	enc := gob.NewEncoder(&body)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("tracker: snapshot encode: %w", err)
	}
	// gob skips unexported fields, so the two private cursors follow as
	// separate values.
	if err := enc.Encode(s.sampleCursor); err != nil {
		return nil, fmt.Errorf("tracker: snapshot encode: %w", err)
	}
	if err := enc.Encode(s.rngState); err != nil {
		return nil, fmt.Errorf("tracker: snapshot encode: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(snapshotMagic)
	binary.Write(&out, binary.LittleEndian, snapshotVersion)
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Restore replaces s's contents with a previously captured snapshot. The
// result must be behaviorally identical to the state that produced the
// blob given identical future commands.
func (s *EngineState) Restore(blob []byte) error {
	if len(blob) < len(snapshotMagic)+8 || string(blob[:len(snapshotMagic)]) != snapshotMagic {
		return fmt.Errorf("tracker: bad snapshot magic")
	}
	r := bytes.NewReader(blob[len(snapshotMagic):])
	var version, bodyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("tracker: unsupported snapshot version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return err
	}
	body := make([]byte, bodyLen)
	if _, err := r.Read(body); err != nil {
		return err
	}

	var decoded EngineState
	dec := gob.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("tracker: snapshot decode: %w", err)
	}
	if err := dec.Decode(&decoded.sampleCursor); err != nil {
		return fmt.Errorf("tracker: snapshot decode: %w", err)
	}
	if err := dec.Decode(&decoded.rngState); err != nil {
		return fmt.Errorf("tracker: snapshot decode: %w", err)
	}
	*s = decoded
	return nil
}

// Clone deep-copies the state without a serialization round trip, used by
// GuestState.Clone for a cheap independent copy.
func (s *EngineState) Clone() *EngineState {
	out := *s
	out.Channels = append([]Channel(nil), s.Channels...)
	out.Background = append([]Channel(nil), s.Background...)
	return &out
}
