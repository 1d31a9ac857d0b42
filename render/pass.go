package render

// VertexFormat distinguishes the CPU-side vertex layouts the pass
// accumulates per tick, one byte array per format.
type VertexFormat int

const (
	VertexFormatPos3Norm3UV2 VertexFormat = iota
	VertexFormatPos2UV2Color
	VertexFormatCount
)

// Pass is the per-frame container: the ordered command list plus the
// CPU-side vertex/index byte arrays it references. Reset at the start of
// every tick, sorted once before handoff to the backend.
type Pass struct {
	Commands []Command
	Vertices [VertexFormatCount][]byte
	Indices  [VertexFormatCount][]byte
	sorted   bool
}

// NewPass allocates an empty pass with its command list pre-sized; the
// vertex/index arrays start empty and keep their capacity across Reset.
func NewPass() *Pass {
	return &Pass{Commands: make([]Command, 0, 256)}
}

// Reset clears the pass for a new tick without freeing the backing arrays.
func (p *Pass) Reset() {
	p.Commands = p.Commands[:0]
	for i := range p.Vertices {
		p.Vertices[i] = p.Vertices[i][:0]
		p.Indices[i] = p.Indices[i][:0]
	}
	p.sorted = false
}

// Submit appends one command to the pass.
func (p *Pass) Submit(c Command) {
	p.Commands = append(p.Commands, c)
	p.sorted = false
}

// AppendVertices appends raw vertex bytes for the given format, returning
// the byte offset they were written at (for use in a Command's Geometry).
func (p *Pass) AppendVertices(format VertexFormat, data []byte) uint32 {
	off := uint32(len(p.Vertices[format]))
	p.Vertices[format] = append(p.Vertices[format], data...)
	return off
}

func (p *Pass) AppendIndices(format VertexFormat, data []byte) uint32 {
	off := uint32(len(p.Indices[format]))
	p.Indices[format] = append(p.Indices[format], data...)
	return off
}

// Sort stably orders Commands by the composite sort key. Idempotent:
// calling it twice without an intervening Submit is a no-op.
func (p *Pass) Sort() {
	if p.sorted {
		return
	}
	sortCommands(p.Commands)
	p.sorted = true
}

// ByteLength returns the total size of the command list plus CPU-side
// geometry buffers, used by cross-run determinism checks.
func (p *Pass) ByteLength() int {
	n := len(p.Commands) * int(commandSize)
	for i := range p.Vertices {
		n += len(p.Vertices[i]) + len(p.Indices[i])
	}
	return n
}

// commandSize is a fixed logical size used only for the ByteLength
// determinism check; it does not reflect any wire encoding.
const commandSize = 64

// SortKeySequence returns the ordered sort keys of the (already-sorted)
// command list, for tests asserting stable sort ordering.
func (p *Pass) SortKeySequence() []SortKey {
	p.Sort()
	keys := make([]SortKey, len(p.Commands))
	for i, c := range p.Commands {
		keys[i] = keyOf(c)
	}
	return keys
}
