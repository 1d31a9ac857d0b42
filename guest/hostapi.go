package guest

import (
	"unicode/utf8"

	"github.com/gazed/vu/math/lin"

	"github.com/nethercore-systems/nethercore/render"
)

// HostAPI is the bounds-checked, validation-enforcing surface a Guest calls
// into during Init/Update/Render. One HostAPI
// wraps exactly one GuestInstance's Memory, GuestState and Module; it carries
// no state of its own beyond what a single tick needs.
type HostAPI struct {
	mem    *Memory
	state  *GuestState
	module *Module

	handles    *handleArena
	transforms *render.TransformStack
	camera     render.Camera

	initOnly bool // true only during the Init call

	draw   drawState
	sounds []OneShotSound

	trapped error
}

// OneShotSound is one audio-submission entry:
// appended to a per-tick list the audio generator consumes and then
// discards; never replayed on rollback re-advance.
type OneShotSound struct {
	Handle Handle
	Volume float32
	Loop   bool
}

func newHostAPI(mem *Memory, state *GuestState, module *Module, handles *handleArena) *HostAPI {
	return &HostAPI{
		mem:        mem,
		state:      state,
		module:     module,
		handles:    handles,
		transforms: render.NewTransformStack(),
		camera:     *render.NewCamera(),
	}
}

// beginInit/endInit bracket the one call during which init-only host
// operations are permitted.
func (a *HostAPI) beginInit() { a.initOnly = true }
func (a *HostAPI) endInit()   { a.initOnly = false }

// beginTick resets the per-tick transform stack, draw state and sound list;
// the render Pass itself is reset by GuestState.BeginTick.
func (a *HostAPI) beginTick() {
	a.transforms = render.NewTransformStack()
	a.draw = drawState{}
	a.sounds = a.sounds[:0]
}

func (a *HostAPI) trap(call string, reason TrapReason) error {
	err := newTrap(call, reason)
	a.trapped = err
	return err
}

// Trapped reports the most recent trap raised by a host call, if any. It is
// never cleared, so once a trap is raised every later check reports it. The
// driver checks this after every Update/Render call.
func (a *HostAPI) Trapped() error { return a.trapped }

// ---- Timing group ----

func (a *HostAPI) DeltaTime() float64 { return 1.0 / 60.0 }
func (a *HostAPI) ElapsedTime() float64 { return a.state.Elapsed }
func (a *HostAPI) TickCount() uint64 { return a.state.Tick }

// ---- Logging group ----

// LogSink receives guest log lines; nil drops them. Set by the driver, not
// by guest code.
var LogSink func(module string, line string)

// Log copies a UTF-8 slice of guest memory out and forwards it to LogSink.
// Invalid UTF-8 is silently dropped, not turned into a trap.
func (a *HostAPI) Log(ptr, length uint32) {
	b, err := a.mem.Read(ptr, length)
	if err != nil || !utf8.Valid(b) {
		return
	}
	if LogSink != nil {
		LogSink(a.module.Name, string(b))
	}
}

// ---- Lifecycle group ----

// Quit sets the quit flag; the session ends after the current tick.
func (a *HostAPI) Quit() { a.state.Quit = true }

// ---- Input group ----

func (a *HostAPI) PlayerCount() int { return MaxPlayers }

// LocalPlayerMask is supplied by the driver and not guest-controllable; it
// reports which of MaxPlayers slots are bound to a local input source.
var LocalPlayerMask uint8

func (a *HostAPI) LocalPlayerMask() uint8 { return LocalPlayerMask }

func (a *HostAPI) frame(player int) InputFrame {
	if player < 0 || player >= MaxPlayers {
		return neutralInput
	}
	return a.state.CurInput[player]
}

func (a *HostAPI) ButtonHeld(player int, button uint16) bool {
	return a.frame(player).Held(button)
}

// ButtonPressed reports a 0->1 transition since the previous tick (edge
// detection the guest would otherwise have to track itself).
func (a *HostAPI) ButtonPressed(player int, button uint16) bool {
	if player < 0 || player >= MaxPlayers {
		return false
	}
	return a.state.CurInput[player].Held(button) && !a.state.PrevInput[player].Held(button)
}

func (a *HostAPI) StickLeft(player int) (x, y int8) {
	f := a.frame(player)
	return f.StickLX, f.StickLY
}

func (a *HostAPI) StickRight(player int) (x, y int8) {
	f := a.frame(player)
	return f.StickRX, f.StickRY
}

func (a *HostAPI) Trigger(player int, right bool) uint8 {
	f := a.frame(player)
	if right {
		return f.TriggerR
	}
	return f.TriggerL
}

// ---- Random group ----

// Random advances the session's shared PCG32 and returns the next word
//. This is the guest's only source of randomness.
func (a *HostAPI) Random() uint32 { return a.state.RNG.Next() }

// ---- Persistence group ----

func (a *HostAPI) Save(slot int, ptr, length uint32) int {
	data, err := a.mem.Read(ptr, length)
	if err != nil {
		return PersistInvalidRange
	}
	return a.state.Persistence.Save(slot, data)
}

func (a *HostAPI) Load(slot int, destPtr, maxLen uint32) int {
	data, n := a.state.Persistence.Load(slot, int(maxLen))
	if n == 0 {
		return 0
	}
	if err := a.mem.Write(destPtr, data); err != nil {
		return 0
	}
	return n
}

func (a *HostAPI) DeletePersist(slot int) int {
	return a.state.Persistence.Delete(slot)
}

// ---- Asset fetch group (init-only) ----

func (a *HostAPI) resolveAssetID(call string, idPtr, idLen uint32) (string, error) {
	if !a.initOnly {
		return "", a.trap(call, TrapInitOnlyAfterInit)
	}
	if a.module.Assets == nil {
		return "", a.trap(call, TrapMissingAssetPack)
	}
	id, err := a.mem.ReadString(idPtr, idLen)
	if err != nil {
		return "", a.trap(call, TrapUnreadableID)
	}
	return id, nil
}

func (a *HostAPI) romAsset(call string, kind AssetKind, idPtr, idLen uint32) (Handle, error) {
	id, err := a.resolveAssetID(call, idPtr, idLen)
	if err != nil {
		return 0, err
	}
	if _, ok := a.module.Assets.lookup(kind, id); !ok {
		return 0, a.trap(call, TrapUnknownAsset)
	}
	return a.handles.resolve(id), nil
}

func (a *HostAPI) RomTexture(idPtr, idLen uint32) (Handle, error) {
	return a.romAsset("rom_texture", AssetTexture, idPtr, idLen)
}

func (a *HostAPI) RomMesh(idPtr, idLen uint32) (Handle, error) {
	return a.romAsset("rom_mesh", AssetMesh, idPtr, idLen)
}

func (a *HostAPI) RomSkeleton(idPtr, idLen uint32) (Handle, error) {
	return a.romAsset("rom_skeleton", AssetSkeleton, idPtr, idLen)
}

func (a *HostAPI) RomSound(idPtr, idLen uint32) (Handle, error) {
	return a.romAsset("rom_sound", AssetSound, idPtr, idLen)
}

func (a *HostAPI) RomFont(idPtr, idLen uint32) (Handle, error) {
	return a.romAsset("rom_font", AssetFont, idPtr, idLen)
}

// RomDataLen returns the byte length of a raw data asset, for the guest to
// size its destination buffer before calling RomData.
func (a *HostAPI) RomDataLen(idPtr, idLen uint32) (uint32, error) {
	id, err := a.resolveAssetID("rom_data_len", idPtr, idLen)
	if err != nil {
		return 0, err
	}
	data, ok := a.module.Assets.data[id]
	if !ok {
		return 0, a.trap("rom_data_len", TrapUnknownAsset)
	}
	return uint32(len(data)), nil
}

// RomData copies a raw data asset into guest memory at destPtr, trapping if
// the destination buffer is too small.
func (a *HostAPI) RomData(idPtr, idLen, destPtr, destLen uint32) error {
	id, err := a.resolveAssetID("rom_data", idPtr, idLen)
	if err != nil {
		return err
	}
	data, ok := a.module.Assets.data[id]
	if !ok {
		return a.trap("rom_data", TrapUnknownAsset)
	}
	if uint32(len(data)) > destLen {
		return a.trap("rom_data", TrapBadDestination)
	}
	if err := a.mem.Write(destPtr, data); err != nil {
		return a.trap("rom_data", TrapBadDestination)
	}
	return nil
}

// ---- Graphics submission group: appends to the per-frame render-command
// buffer; no GPU work happens here. ----

// drawState accumulates the setters (color/depth/cull/texture/viewport/
// stencil) that apply to the next Append* draw call; it is not itself part
// of GuestState since it resets every tick alongside the Pass.
type drawState struct {
	viewport  render.Rect
	stencil   render.StencilMode
	depthTest bool
	cull      render.CullMode
	textures  render.TextureSlots
	layer     int32
}

func (a *HostAPI) SetViewport(x, y, w, h int32) {
	a.draw.viewport = render.Rect{X: x, Y: y, W: w, H: h}
}

func (a *HostAPI) SetDepthTest(on bool) { a.draw.depthTest = on }
func (a *HostAPI) SetCull(mode render.CullMode) { a.draw.cull = mode }
func (a *HostAPI) SetStencil(mode render.StencilMode) { a.draw.stencil = mode }
func (a *HostAPI) SetLayer(layer int32) { a.draw.layer = layer }

func (a *HostAPI) BindTexture(slot int, h Handle) {
	if slot >= 0 && slot < len(a.draw.textures) {
		a.draw.textures[slot] = uint32(h)
	}
}

func (a *HostAPI) PushIdentity() error { return a.transforms.PushIdentity() }
func (a *HostAPI) PushTranslate(x, y, z float64) error { return a.transforms.PushTranslate(x, y, z) }
func (a *HostAPI) PushScale(x, y, z float64) error { return a.transforms.PushScale(x, y, z) }
func (a *HostAPI) PushRotateX(angleRad float64) error { return a.transforms.PushRotate(render.AxisX, angleRad) }
func (a *HostAPI) PushRotateY(angleRad float64) error { return a.transforms.PushRotate(render.AxisY, angleRad) }
func (a *HostAPI) PushRotateZ(angleRad float64) error { return a.transforms.PushRotate(render.AxisZ, angleRad) }
func (a *HostAPI) Pop() error { return a.transforms.Pop() }

// TransformSet reads a column-major 4x4 matrix from guest memory and
// replaces the current transform stack top.
func (a *HostAPI) TransformSet(ptr uint32) error {
	m, err := a.mem.ReadMatrix4(ptr)
	if err != nil {
		return a.trap("transform_set", TrapBadDestination)
	}
	a.transforms.Set(m)
	return nil
}

func (a *HostAPI) SetCameraPosition(x, y, z float64) {
	a.camera.Position = lin.V3{X: x, Y: y, Z: z}
}

func (a *HostAPI) SetCameraTarget(x, y, z float64) {
	a.camera.Target = lin.V3{X: x, Y: y, Z: z}
}

func (a *HostAPI) SetCameraFov(fovRad, aspect, near, far float64) {
	a.camera.FovRad, a.camera.Aspect, a.camera.Near, a.camera.Far = fovRad, aspect, near, far
}

// submit appends a draw of kind to the pass using the accumulated drawState
// and current transform stack top.
func (a *HostAPI) submit(kind render.Kind, geom render.Geometry) {
	a.state.Pass.Submit(render.Command{
		Kind:      kind,
		Viewport:  a.draw.viewport,
		Layer:     a.draw.layer,
		Stencil:   a.draw.stencil,
		DepthTest: a.draw.depthTest,
		Cull:      a.draw.cull,
		Textures:  a.draw.textures,
		Geometry:  geom,
		Transform: a.transforms.TopAsFloat32(),
	})
}

// DrawTriangles appends raw vertex data (non-indexed) to the pass.
func (a *HostAPI) DrawTriangles(format render.VertexFormat, vertices []byte, vertexCount uint32) {
	off := a.state.Pass.AppendVertices(format, vertices)
	a.submit(render.KindMesh, render.Geometry{VertexOffset: off, VertexCount: vertexCount})
}

// DrawTrianglesIndexed appends vertex and index data to the pass.
func (a *HostAPI) DrawTrianglesIndexed(format render.VertexFormat, vertices, indices []byte, indexCount uint32) {
	vOff := a.state.Pass.AppendVertices(format, vertices)
	iOff := a.state.Pass.AppendIndices(format, indices)
	a.submit(render.KindMesh, render.Geometry{VertexOffset: vOff, IndexOffset: iOff, IndexCount: indexCount})
}

// DrawMesh submits a mesh asset reference (already-resolved handle and
// instance transform); mesh geometry lives in the asset pack, not the pass.
func (a *HostAPI) DrawMesh(mesh Handle) {
	a.draw.textures[0] = uint32(mesh)
	a.submit(render.KindMesh, render.Geometry{})
}

// DrawBillboard submits a camera-facing quad.
func (a *HostAPI) DrawBillboard(width, height float32) {
	_ = width
	_ = height
	a.submit(render.KindQuad, render.Geometry{})
}

// DrawRect submits a 2D screen-space quad.
func (a *HostAPI) DrawRect(x, y, w, h float32) {
	_ = x
	_ = y
	_ = w
	_ = h
	a.submit(render.KindQuad, render.Geometry{})
}

// DrawText submits a text run using a bound font handle; glyph layout is a
// backend concern, not the pass's.
func (a *HostAPI) DrawText(textPtr, textLen uint32, x, y float32) error {
	if _, err := a.mem.ReadString(textPtr, textLen); err != nil {
		return a.trap("draw_text", TrapBadDestination)
	}
	_ = x
	_ = y
	a.submit(render.KindQuad, render.Geometry{})
	return nil
}

// Camera returns the accumulated camera state for the backend to use when
// computing View()/Projection() outside the guest boundary.
func (a *HostAPI) Camera() render.Camera { return a.camera }

// ---- Audio submission group: appended to a per-frame sound list consumed
// by the audio generator. ----

// PlaySound enqueues a one-shot sound; it is discarded, not replayed, on a
// rollback re-advance of this tick.
func (a *HostAPI) PlaySound(sound Handle, volume float32, loop bool) {
	a.sounds = append(a.sounds, OneShotSound{Handle: sound, Volume: volume, Loop: loop})
}

// Sounds returns this tick's enqueued one-shot sounds for the audio
// generator to consume.
func (a *HostAPI) Sounds() []OneShotSound { return a.sounds }

// SoundData resolves a handle previously returned by RomSound back to its
// raw PCM asset bytes, for the audio generator to mix. It never traps:
// handles from a stale or rolled-back tick that no longer resolve are the
// audio generator's concern, not the guest's.
func (a *HostAPI) SoundData(h Handle) ([]byte, bool) {
	id, ok := a.handles.idFor(h)
	if !ok {
		return nil, false
	}
	return a.module.Assets.lookup(AssetSound, id)
}

// ---- Tracker control group: forwarded to the tracker engine, whose state
// is snapshotted. ----

func (a *HostAPI) TrackerPlay() { a.state.Tracker.Playing = true }
func (a *HostAPI) TrackerStop() { a.state.Tracker.Playing = false }

func (a *HostAPI) TrackerSetOrder(order int) {
	a.state.Tracker.Order = order
	a.state.Tracker.Row = 0
	a.state.Tracker.Tick = 0
}

func (a *HostAPI) TrackerSetTempo(bpm int) {
	if bpm > 0 {
		a.state.Tracker.Tempo = bpm
	}
}

func (a *HostAPI) TrackerSetSpeed(ticksPerRow int) {
	if ticksPerRow > 0 {
		a.state.Tracker.Speed = ticksPerRow
	}
}

func (a *HostAPI) TrackerMuteChannel(channel int, mute bool) {
	if channel >= 0 && channel < len(a.state.Tracker.Channels) {
		a.state.Tracker.Channels[channel].Muted = mute
	}
}
