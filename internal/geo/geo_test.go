package geo

import (
	"math"
	"testing"
)

func mustTransform(t *testing.T, cfg TransformConfig) *Transform {
	t.Helper()
	tr, err := NewTransform(cfg)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}
	return tr
}

func TestNewTransform_Config(t *testing.T) {
	if _, err := NewTransform(TransformConfig{Scale: 0, GroundY: 100, YMin: 10, YMax: 130}); err == nil {
		t.Fatalf("expected error for zero scale")
	}
	if _, err := NewTransform(TransformConfig{Scale: 1, GroundY: 100, YMin: 130, YMax: 10}); err == nil {
		t.Fatalf("expected error for inverted band")
	}
	if _, err := NewTransform(TransformConfig{Scale: 1, GroundY: 5, YMin: 10, YMax: 130}); err == nil {
		t.Fatalf("expected error for ground outside band")
	}
}

func TestToVoxel_Deterministic(t *testing.T) {
	tr := mustTransform(t, DefaultTransformConfig())
	p := WorldPoint{X: 123.4, Y: -56.7, Z: -89.1}
	a, ca := tr.ToVoxel(p)
	b, cb := tr.ToVoxel(p)
	if a != b || ca != cb {
		t.Fatalf("non-deterministic: %v/%v vs %v/%v", a, ca, b, cb)
	}
}

func TestToVoxel_DepthMapsDown(t *testing.T) {
	tr := mustTransform(t, DefaultTransformConfig())
	surface, _ := tr.ToVoxel(WorldPoint{Z: 0})
	deep, _ := tr.ToVoxel(WorldPoint{Z: -20})
	if surface.Y != 100 {
		t.Fatalf("surface y = %d, want ground 100", surface.Y)
	}
	if deep.Y >= surface.Y {
		t.Fatalf("deeper point not lower: %d >= %d", deep.Y, surface.Y)
	}
}

func TestToVoxel_ClampReported(t *testing.T) {
	tr := mustTransform(t, DefaultTransformConfig())
	v, clamped := tr.ToVoxel(WorldPoint{Z: -500})
	if !clamped {
		t.Fatalf("expected clamp flag")
	}
	if v.Y != 10 {
		t.Fatalf("clamped y = %d, want 10", v.Y)
	}
	v, clamped = tr.ToVoxel(WorldPoint{Z: 500})
	if !clamped || v.Y != 130 {
		t.Fatalf("upper clamp: y=%d clamped=%v", v.Y, clamped)
	}
}

func TestRoundTrip_NonClamped(t *testing.T) {
	cfg := DefaultTransformConfig()
	cfg.Scale = 2.5
	cfg.OriginX, cfg.OriginY = 3000, 3000
	tr := mustTransform(t, cfg)

	p := WorldPoint{X: 3010, Y: 2990, Z: -25}
	v, clamped := tr.ToVoxel(p)
	if clamped {
		t.Fatalf("unexpected clamp for %v", p)
	}
	back := tr.ToWorld(v)
	half := cfg.Scale / 2
	if math.Abs(back.X-p.X) > half || math.Abs(back.Y-p.Y) > half || math.Abs(back.Z-p.Z) > half {
		t.Fatalf("round trip drifted: %v -> %v -> %v", p, v, back)
	}
}

func TestDedup_IdempotentFirstSeen(t *testing.T) {
	in := []VoxelPoint{
		{1, 2, 3}, {4, 5, 6}, {1, 2, 3}, {7, 8, 9}, {4, 5, 6},
	}
	once := Dedup(in)
	want := []VoxelPoint{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	if len(once) != len(want) {
		t.Fatalf("len = %d, want %d", len(once), len(want))
	}
	for i := range want {
		if once[i] != want[i] {
			t.Fatalf("order broken at %d: got %v want %v", i, once[i], want[i])
		}
	}
	twice := Dedup(once)
	if len(twice) != len(once) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i] != once[i] {
			t.Fatalf("idempotence broken at %d", i)
		}
	}
}
