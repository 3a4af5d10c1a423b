package geo

import "geovoxel.dev/internal/protocol"

// WorldPoint is a position in engineering units: X easting, Y northing,
// Z elevation. Negative Z is below surface.
type WorldPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VoxelPoint is an integer block position in the target world. Y is the
// vertical axis.
type VoxelPoint struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	Z int64 `json:"z"`
}

// TransformConfig maps engineering units onto voxel space.
type TransformConfig struct {
	// World-space origin subtracted before scaling.
	OriginX float64
	OriginY float64
	OriginZ float64

	// Real-world units per voxel. Must be > 0.
	Scale float64

	// GroundY is the voxel height that elevation OriginZ maps to.
	GroundY int64

	// Safe band for voxel Y. Results outside it are clamped.
	YMin int64
	YMax int64
}

func DefaultTransformConfig() TransformConfig {
	return TransformConfig{
		Scale:   1,
		GroundY: 100,
		YMin:    10,
		YMax:    130,
	}
}

// Transform converts between world and voxel coordinates. It is a pure
// value: ToVoxel has no side effects, callers aggregate clamp flags.
type Transform struct {
	cfg TransformConfig
}

func NewTransform(cfg TransformConfig) (*Transform, error) {
	if cfg.Scale <= 0 {
		return nil, protocol.Faultf(protocol.KindConfig, "scale must be > 0, got %v", cfg.Scale)
	}
	if cfg.YMin > cfg.YMax {
		return nil, protocol.Faultf(protocol.KindConfig, "inverted safe band [%d, %d]", cfg.YMin, cfg.YMax)
	}
	if cfg.GroundY < cfg.YMin || cfg.GroundY > cfg.YMax {
		return nil, protocol.Faultf(protocol.KindConfig, "ground level %d outside safe band [%d, %d]", cfg.GroundY, cfg.YMin, cfg.YMax)
	}
	return &Transform{cfg: cfg}, nil
}

func (t *Transform) Config() TransformConfig { return t.cfg }

// ToVoxel maps a world point into voxel space. Easting maps to voxel X,
// northing to voxel Z, and elevation to voxel Y relative to the ground
// plane, so deeper points land at lower Y. The second return reports
// whether Y had to be clamped into the safe band.
func (t *Transform) ToVoxel(p WorldPoint) (VoxelPoint, bool) {
	v := VoxelPoint{
		X: roundToInt((p.X - t.cfg.OriginX) / t.cfg.Scale),
		Z: roundToInt((p.Y - t.cfg.OriginY) / t.cfg.Scale),
		Y: t.cfg.GroundY + roundToInt((p.Z-t.cfg.OriginZ)/t.cfg.Scale),
	}
	clamped := false
	if v.Y < t.cfg.YMin {
		v.Y = t.cfg.YMin
		clamped = true
	} else if v.Y > t.cfg.YMax {
		v.Y = t.cfg.YMax
		clamped = true
	}
	return v, clamped
}

// ToWorld inverts the linear portion of ToVoxel. Clamped points do not
// round-trip; everything else round-trips within half a voxel.
func (t *Transform) ToWorld(v VoxelPoint) WorldPoint {
	return WorldPoint{
		X: float64(v.X)*t.cfg.Scale + t.cfg.OriginX,
		Y: float64(v.Z)*t.cfg.Scale + t.cfg.OriginY,
		Z: float64(v.Y-t.cfg.GroundY)*t.cfg.Scale + t.cfg.OriginZ,
	}
}

func roundToInt(f float64) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return int64(f - 0.5)
}

// Dedup removes duplicate voxels keeping the first occurrence. The result
// order follows the input; applying Dedup twice changes nothing.
func Dedup(points []VoxelPoint) []VoxelPoint {
	seen := make(map[VoxelPoint]struct{}, len(points))
	out := make([]VoxelPoint, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
