// Package render implements the virtual render pass: a
// resolution- and GPU-API-independent list of draw-intent commands,
// produced each frame and consumed by an external backend.
package render

// Kind is the render command's type tag; its numeric value is part of the
// sort key.
type Kind uint8

const (
	KindQuad Kind = iota // 0 — sorts before Mesh
	KindMesh             // 1
	KindSky              // 2
)

// StencilMode and CullMode are small enums carried on every command so the
// sort key can group by them without touching backend-specific types.
type StencilMode uint8

const (
	StencilNone StencilMode = iota
	StencilWrite
	StencilTest
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// Rect is an integer viewport/scissor rectangle; used to group split-screen
// regions in the sort key.
type Rect struct {
	X, Y, W, H int32
}

// TextureSlots is the four texture-unit bindings a command may reference;
// slot value 0 means "unbound".
type TextureSlots [4]uint32

// Geometry references a range within the pass's per-vertex-format CPU-side
// buffers: the command carries offsets/counts, not
// GPU handles.
type Geometry struct {
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32 // 0 for non-indexed draws
}

// Command is one render-command value. Commands own no
// GPU state; they are plain data consumed by the external backend.
type Command struct {
	Kind        Kind
	Viewport    Rect
	Layer       int32 // quads only; higher layer renders on top
	Stencil     StencilMode
	DepthTest   bool
	Cull        CullMode
	Textures    TextureSlots
	Geometry    Geometry
	Transform   [16]float32 // column-major 4x4, snapshot of the transform stack top at submission time
}
