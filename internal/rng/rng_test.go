package rng

import "testing"

func TestFloat32Deterministic(t *testing.T) {
	a := New(12345)
	b := New(12345)
	for i := 0; i < 1000; i++ {
		if av, bv := a.Float32(), b.Float32(); av != bv {
			t.Fatalf("sequences diverge at step %d: %v != %v", i, av, bv)
		}
	}
}

func TestFloat32Range(t *testing.T) {
	s := New(DefaultSeed)
	for i := 0; i < 10000; i++ {
		v := s.Float32()
		if v <= 0 || v > 1 {
			t.Fatalf("value %v at step %d outside (0, 1]", v, i)
		}
	}
}

func TestSeedNormalization(t *testing.T) {
	// Non-positive seeds fall back to the default seed.
	a := New(0)
	b := New(DefaultSeed)
	for i := 0; i < 100; i++ {
		if a.Float32() != b.Float32() {
			t.Fatal("New(0) does not match New(DefaultSeed)")
		}
	}
}

func TestDistinctSeedsDistinctSequences(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Float32() == b.Float32() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical sequences")
	}
}

func TestUniform(t *testing.T) {
	s := New(DefaultSeed)
	for i := 0; i < 10000; i++ {
		v := s.Uniform(-2, 3)
		if v < -2 || v > 3 {
			t.Fatalf("Uniform(-2, 3) = %v at step %d", v, i)
		}
	}
}

func TestNormalMoments(t *testing.T) {
	s := New(DefaultSeed)
	const n = 20000
	var sum, sumsq float64
	for i := 0; i < n; i++ {
		v := float64(s.Normal(1.0, 2.0))
		sum += v
		sumsq += v * v
	}
	mean := sum / n
	sdev := sumsq/n - mean*mean
	if mean < 0.9 || mean > 1.1 {
		t.Errorf("sample mean %v, want about 1.0", mean)
	}
	if sdev < 3.5 || sdev > 4.5 {
		t.Errorf("sample variance %v, want about 4.0", sdev)
	}
}

func TestIntn(t *testing.T) {
	s := New(DefaultSeed)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := s.Intn(7)
		if v < 0 || v >= 7 {
			t.Fatalf("Intn(7) = %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Errorf("Intn(7) produced %d distinct values over 1000 draws", len(seen))
	}
}
