package driver

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/nethercore-systems/nethercore/render"
)

// layerPalette assigns a deterministic debug color per render layer so a
// human watching the window can tell draw order apart; it carries no
// simulation meaning.
func layerPalette(layer int32) color.RGBA {
	h := uint32(layer) * 2654435761
	return color.RGBA{R: byte(h >> 24), G: byte(h >> 16), B: byte(h >> 8), A: 255}
}

// Window is the ebiten.Game implementation backing the demo driver: it
// polls local input and drives the simulation exactly one tick per Update
// call, then draws a debug visualization of the resulting Pass — following
// a fixed logical size and frame counter, without a CPU-framebuffer push
// model, since this driver has no raster framebuffer to copy.
type Window struct {
	Width, Height int

	// Advance runs exactly one simulation tick and returns the render pass
	// to draw plus the camera state (unused by the debug visualizer but
	// kept for a future perspective-correct renderer).
	Advance func() (*render.Pass, render.Camera, error)
	Quit    func() bool

	lastPass   *render.Pass
	lastErr    error
	frameCount uint64
}

// NewWindow constructs a Window sized for logicalW x logicalH.
func NewWindow(logicalW, logicalH int, advance func() (*render.Pass, render.Camera, error), quit func() bool) *Window {
	return &Window{Width: logicalW, Height: logicalH, Advance: advance, Quit: quit}
}

func (w *Window) Update() error {
	if w.lastErr != nil {
		return w.lastErr
	}
	if w.Quit != nil && w.Quit() {
		return ebiten.Termination
	}
	pass, _, err := w.Advance()
	if err != nil {
		w.lastErr = err
		return err
	}
	w.lastPass = pass
	w.frameCount++
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 16, G: 16, B: 24, A: 255})
	if w.lastPass == nil {
		return
	}
	for _, c := range w.lastPass.Commands {
		if c.Kind != render.KindQuad {
			continue
		}
		x0, y0 := float32(c.Viewport.X), float32(c.Viewport.Y)
		width, height := float32(c.Viewport.W), float32(c.Viewport.H)
		if width <= 0 {
			width = 1
		}
		if height <= 0 {
			height = 1
		}
		col := layerPalette(c.Layer)
		vector.StrokeRect(screen, x0, y0, width, height, 1, col, false)
	}
}

func (w *Window) Layout(_, _ int) (int, int) {
	return w.Width, w.Height
}
