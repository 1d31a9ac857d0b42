package driver

import "testing"

func TestStickAxis_ClampsAndScales(t *testing.T) {
	cases := []struct {
		in   float64
		want int8
	}{
		{0, 0},
		{1, 127},
		{-1, -127},
		{2, 127},
		{-2, -127},
		{0.5, 63},
	}
	for _, c := range cases {
		if got := stickAxis(c.in); got != c.want {
			t.Errorf("stickAxis(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
