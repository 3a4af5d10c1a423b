package horizon

import (
	"math"
	"sort"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
)

// InterpolateQuad runs bilinear interpolation over a 4-corner horizon.
// Corners are classified by sorting on (z, x) into bottom-left/right and
// top-left/right. Every integer (x, z) cell inside the bounding box gets
// the standard bilinear blend of the corner elevations.
//
// A degenerate box (zero span on either horizontal axis) yields the
// unweighted mean of all 4 corner elevations for every cell. That drops
// directional information along the surviving axis; kept as-is from the
// source data pipeline this replaces.
//
// maxPoints > 0 caps the generated grid size.
func InterpolateQuad(corners []Corner, tr *geo.Transform, maxPoints int) (*Surface, error) {
	if len(corners) != 4 {
		return nil, protocol.Faultf(protocol.KindValidation, "quad: want exactly 4 corners, got %d", len(corners))
	}

	c := make([]Corner, 4)
	copy(c, corners)
	sort.Slice(c, func(i, j int) bool {
		if c[i].Z != c[j].Z {
			return c[i].Z < c[j].Z
		}
		return c[i].X < c[j].X
	})
	bl, br, tl, tr4 := c[0], c[1], c[2], c[3]

	minX := math.Min(math.Min(c[0].X, c[1].X), math.Min(c[2].X, c[3].X))
	maxX := math.Max(math.Max(c[0].X, c[1].X), math.Max(c[2].X, c[3].X))
	minZ, maxZ := c[0].Z, c[3].Z

	spanX := maxX - minX
	spanZ := maxZ - minZ
	degenerate := spanX == 0 || spanZ == 0
	mean := (bl.Y + br.Y + tl.Y + tr4.Y) / 4

	x0, x1 := int64(math.Ceil(minX)), int64(math.Floor(maxX))
	z0, z1 := int64(math.Ceil(minZ)), int64(math.Floor(maxZ))
	cells := (x1 - x0 + 1) * (z1 - z0 + 1)
	if cells <= 0 {
		return nil, protocol.Faultf(protocol.KindValidation, "quad: empty integer grid for bounding box [%v,%v]x[%v,%v]", minX, maxX, minZ, maxZ)
	}
	if maxPoints > 0 && cells > int64(maxPoints) {
		return nil, protocol.Faultf(protocol.KindValidation, "quad: %d cells exceeds point ceiling %d", cells, maxPoints)
	}

	s := &Surface{Mode: "quad", RawCount: 4, World: make([]geo.WorldPoint, 0, cells)}
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			var elev float64
			if degenerate {
				elev = mean
			} else {
				u := (float64(x) - minX) / spanX
				v := (float64(z) - minZ) / spanZ
				elev = bl.Y*(1-u)*(1-v) + br.Y*u*(1-v) + tl.Y*(1-u)*v + tr4.Y*u*v
			}
			// Native x maps to easting, native z to northing.
			s.World = append(s.World, geo.WorldPoint{X: float64(x), Y: float64(z), Z: elev})
		}
	}

	s.voxelize(tr)
	s.checkDensity()
	return s, nil
}
