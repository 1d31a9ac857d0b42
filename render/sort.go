package render

import (
	"math"
	"sort"
)

// SortKey returns the composite ordering key for cmd as a comparable tuple,
// following the six-level viewport/layer/stencil/kind/depth-cull/texture
// priority list. Exposed mainly for tests that want to assert the exact key
// sequence.
type SortKey struct {
	ViewportX, ViewportY, ViewportW, ViewportH int32
	Layer                                      int32
	Stencil                                    StencilMode
	Kind                                       Kind
	DepthTest                                  bool
	Cull                                       CullMode
	Tex0, Tex1, Tex2, Tex3                     uint32
}

func keyOf(c Command) SortKey {
	// Only quads carry a layer; every other kind sorts after all quad layers.
	layer := int32(math.MaxInt32)
	if c.Kind == KindQuad {
		layer = c.Layer
	}
	return SortKey{
		ViewportX: c.Viewport.X, ViewportY: c.Viewport.Y,
		ViewportW: c.Viewport.W, ViewportH: c.Viewport.H,
		Layer:      layer,
		Stencil:    c.Stencil,
		Kind:       c.Kind,
		DepthTest:  c.DepthTest,
		Cull:       c.Cull,
		Tex0:       c.Textures[0], Tex1: c.Textures[1],
		Tex2: c.Textures[2], Tex3: c.Textures[3],
	}
}

// less implements the priority order: viewport, layer, stencil, kind,
// depth test + cull, then texture slots (to minimize bind calls).
func less(a, b SortKey) bool {
	if a.ViewportX != b.ViewportX {
		return a.ViewportX < b.ViewportX
	}
	if a.ViewportY != b.ViewportY {
		return a.ViewportY < b.ViewportY
	}
	if a.ViewportW != b.ViewportW {
		return a.ViewportW < b.ViewportW
	}
	if a.ViewportH != b.ViewportH {
		return a.ViewportH < b.ViewportH
	}
	if a.Layer != b.Layer {
		return a.Layer < b.Layer
	}
	if a.Stencil != b.Stencil {
		return a.Stencil < b.Stencil
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.DepthTest != b.DepthTest {
		return !a.DepthTest && b.DepthTest
	}
	if a.Cull != b.Cull {
		return a.Cull < b.Cull
	}
	if a.Tex0 != b.Tex0 {
		return a.Tex0 < b.Tex0
	}
	if a.Tex1 != b.Tex1 {
		return a.Tex1 < b.Tex1
	}
	if a.Tex2 != b.Tex2 {
		return a.Tex2 < b.Tex2
	}
	return a.Tex3 < b.Tex3
}

// sortCommands stably sorts cmds in place by the composite key.
func sortCommands(cmds []Command) {
	sort.SliceStable(cmds, func(i, j int) bool {
		return less(keyOf(cmds[i]), keyOf(cmds[j]))
	})
}
