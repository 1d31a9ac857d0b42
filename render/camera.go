package render

import "github.com/gazed/vu/math/lin"

// Camera holds position/target/FOV state.
type Camera struct {
	Position lin.V3
	Target   lin.V3
	Up       lin.V3
	FovRad   float64
	Aspect   float64
	Near     float64
	Far      float64
}

// NewCamera returns a camera looking down -Z with a +Y up vector and a
// reasonable default projection.
func NewCamera() *Camera {
	return &Camera{
		Target: lin.V3{X: 0, Y: 0, Z: -1},
		Up:     lin.V3{X: 0, Y: 1, Z: 0},
		FovRad: 60 * lin.DegRad,
		Aspect: 16.0 / 9.0,
		Near:   0.1,
		Far:    1000,
	}
}

// View returns the right-handed look-at view matrix:
// look_at_rh(position, target, +Y).
func (c *Camera) View() *lin.M4 {
	eye, target, up := c.Position, c.Target, c.Up

	forward := lin.V3{}
	forward.Sub(&target, &eye)
	normalize(&forward)

	right := lin.V3{}
	right.Cross(&forward, &up)
	normalize(&right)

	trueUp := lin.V3{}
	trueUp.Cross(&right, &forward)

	m := lin.NewM4I()
	// Right-handed: camera looks down -forward.
	m.Xx, m.Yx, m.Zx = right.X, right.Y, right.Z
	m.Xy, m.Yy, m.Zy = trueUp.X, trueUp.Y, trueUp.Z
	m.Xz, m.Yz, m.Zz = -forward.X, -forward.Y, -forward.Z
	m.Wx = -right.Dot(&eye)
	m.Wy = -trueUp.Dot(&eye)
	m.Wz = forward.Dot(&eye)
	return m
}

// Projection returns the right-handed perspective projection matrix:
// perspective_rh(fov_rad, aspect, near, far).
func (c *Camera) Projection() *lin.M4 {
	return lin.NewM4().Persp(c.FovRad*lin.RadDeg, c.Aspect, c.Near, c.Far)
}

func normalize(v *lin.V3) {
	l := v.Len()
	if l > 1e-9 {
		v.Scale(v, 1/l)
	}
}
