package rng

import "testing"

func TestPCG32_KnownAnswer(t *testing.T) {
	// Fixed by the PCG-XSH-RR formula; any conformant host must reproduce
	// this exact sequence for seed 42.
	want := []uint32{0, 1971522493, 242089394, 3457789919, 3637502659}

	g := New(42)
	for i, w := range want {
		got := g.Next()
		if got != w {
			t.Fatalf("word %d: got %d, want %d", i, got, w)
		}
	}
}

func TestPCG32_Deterministic(t *testing.T) {
	for _, seed := range []uint64{0, 1, 0xCAFEBABECAFEBABE, ^uint64(0)} {
		a := New(seed)
		b := New(seed)
		for i := 0; i < 1000; i++ {
			if a.Next() != b.Next() {
				t.Fatalf("seed %d: sequences diverged at step %d", seed, i)
			}
		}
	}
}

func TestPCG32_SeedOnlyResetsOnExplicitCall(t *testing.T) {
	g := New(7)
	first := g.Next()
	g.Seed(7)
	second := g.Next()
	if first != second {
		t.Fatalf("reseeding with the same value should reproduce the first word: %d != %d", first, second)
	}
}

func TestPCG32_StateRoundTrip(t *testing.T) {
	g := New(99)
	g.Next()
	g.Next()
	saved := g.State

	restored := &PCG32{State: saved}
	for i := 0; i < 10; i++ {
		if g.Next() != restored.Next() {
			t.Fatalf("restored generator diverged at step %d", i)
		}
	}
}
