package driver

import "testing"

func TestLayerPalette_DeterministicAndDistinct(t *testing.T) {
	a := layerPalette(0)
	b := layerPalette(0)
	if a != b {
		t.Fatalf("layerPalette(0) not deterministic: %v != %v", a, b)
	}
	if layerPalette(1) == layerPalette(2) {
		t.Fatal("layerPalette(1) and layerPalette(2) collided")
	}
}
