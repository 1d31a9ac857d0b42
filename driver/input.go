// Package driver hosts the demo host application's window, raw-input, and
// audio-output glue around the core runtime. Nothing in this package is
// part of the deterministic simulation; it exists only to give a human a
// way to run a session and hear/see it.
package driver

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/nethercore-systems/nethercore/guest"
)

// stickAxis maps ebiten's [-1,1] float axis to the signed-byte range the
// wire format carries.
func stickAxis(v float64) int8 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int8(v * 127)
}

// PollLocalInput reads the local keyboard/gamepad state into a guest
// InputFrame for one local player, polling level state via ebiten.IsKeyPressed /
// standard-gamepad axis reads rather than an event queue, since InputFrame
// is a per-tick level snapshot.
func PollLocalInput(padID ebiten.GamepadID, hasPad bool) guest.InputFrame {
	var f guest.InputFrame

	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		f.Buttons |= guest.ButtonUp
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		f.Buttons |= guest.ButtonDown
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		f.Buttons |= guest.ButtonLeft
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		f.Buttons |= guest.ButtonRight
	}
	if ebiten.IsKeyPressed(ebiten.KeyJ) {
		f.Buttons |= guest.ButtonA
	}
	if ebiten.IsKeyPressed(ebiten.KeyK) {
		f.Buttons |= guest.ButtonB
	}
	if ebiten.IsKeyPressed(ebiten.KeyU) {
		f.Buttons |= guest.ButtonX
	}
	if ebiten.IsKeyPressed(ebiten.KeyI) {
		f.Buttons |= guest.ButtonY
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		f.Buttons |= guest.ButtonStart
	}
	if ebiten.IsKeyPressed(ebiten.KeyBackspace) {
		f.Buttons |= guest.ButtonSelect
	}

	if !hasPad {
		return f
	}

	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonRightBottom) {
		f.Buttons |= guest.ButtonA
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonRightRight) {
		f.Buttons |= guest.ButtonB
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonRightLeft) {
		f.Buttons |= guest.ButtonX
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonRightTop) {
		f.Buttons |= guest.ButtonY
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonFrontTopLeft) {
		f.Buttons |= guest.ButtonL
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonFrontTopRight) {
		f.Buttons |= guest.ButtonR
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonLeftStick) {
		f.Buttons |= guest.ButtonL3
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonRightStick) {
		f.Buttons |= guest.ButtonR3
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonCenterRight) {
		f.Buttons |= guest.ButtonStart
	}
	if ebiten.IsStandardGamepadButtonPressed(padID, ebiten.StandardGamepadButtonCenterLeft) {
		f.Buttons |= guest.ButtonSelect
	}

	f.StickLX = stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisLeftStickHorizontal))
	f.StickLY = stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisLeftStickVertical))
	f.StickRX = stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisRightStickHorizontal))
	f.StickRY = stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisRightStickVertical))
	f.TriggerL = uint8(127 + stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisLeftTrigger)))
	f.TriggerR = uint8(127 + stickAxis(ebiten.StandardGamepadAxisValue(padID, ebiten.StandardGamepadAxisRightTrigger)))

	return f
}
