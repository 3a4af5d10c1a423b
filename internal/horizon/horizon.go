package horizon

import (
	"encoding/json"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/schemas"
)

// Corner is one quad-mode input point in the environment's native axes:
// x and z horizontal, y elevation.
type Corner struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LineRecord is one multi-line-mode input point in engineering axes.
type LineRecord struct {
	PointID    json.RawMessage `json:"point_id,omitempty"`
	LineNumber int             `json:"line_number"`
	Easting    float64         `json:"easting"`
	Northing   float64         `json:"northing"`
	Elevation  float64         `json:"elevation"`
}

// Surface owns the interpolated world grid and its voxelized form.
// Immutable once built.
type Surface struct {
	Mode     string
	RawCount int
	World    []geo.WorldPoint
	Voxels   []geo.VoxelPoint
	Clamped  int

	// Warning is set when densification came out thinner than expected.
	// Callers decide whether to proceed.
	Warning string
}

// ParseCorners decodes a quad-mode input: exactly 4 corner points.
func ParseCorners(b []byte) ([]Corner, error) {
	var anyVal any
	if err := json.Unmarshal(b, &anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "corners: %v", err)
	}
	if err := schemas.HorizonCorners.Validate(anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "corners: %v", err)
	}
	var corners []Corner
	if err := json.Unmarshal(b, &corners); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "corners: %v", err)
	}
	if len(corners) != 4 {
		return nil, protocol.Faultf(protocol.KindValidation, "corners: want exactly 4, got %d", len(corners))
	}
	return corners, nil
}

// ParseLines decodes a multi-line input. At least two distinct lines are
// required for cross-line interpolation.
func ParseLines(b []byte) ([]LineRecord, error) {
	var anyVal any
	if err := json.Unmarshal(b, &anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: %v", err)
	}
	if err := schemas.HorizonLines.Validate(anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: %v", err)
	}
	var recs []LineRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: %v", err)
	}
	if len(recs) == 0 {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: empty point set")
	}
	lines := map[int]struct{}{}
	for _, r := range recs {
		lines[r.LineNumber] = struct{}{}
	}
	if len(lines) < 2 {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: need at least 2 distinct lines, got %d", len(lines))
	}
	return recs, nil
}

func (s *Surface) voxelize(tr *geo.Transform) {
	voxels := make([]geo.VoxelPoint, 0, len(s.World))
	for _, p := range s.World {
		v, c := tr.ToVoxel(p)
		if c {
			s.Clamped++
		}
		voxels = append(voxels, v)
	}
	s.Voxels = geo.Dedup(voxels)
}

// checkDensity flags surfaces whose interpolation produced too few points:
// under 3x the raw input, or spanning 3 or fewer distinct positions on a
// horizontal voxel axis.
func (s *Surface) checkDensity() {
	xs := map[int64]struct{}{}
	zs := map[int64]struct{}{}
	for _, v := range s.Voxels {
		xs[v.X] = struct{}{}
		zs[v.Z] = struct{}{}
	}
	if len(s.World) < 3*s.RawCount || len(xs) <= 3 || len(zs) <= 3 {
		s.Warning = "sparse interpolation: surface may have visual gaps"
	}
}
