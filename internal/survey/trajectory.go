package survey

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
)

// Stats summarizes the world-space polyline.
type Stats struct {
	MaxDepth               float64 `json:"max_depth"`
	HorizontalDisplacement float64 `json:"horizontal_displacement"`
	PathLength             float64 `json:"path_length"`
	MinX, MaxX             float64 `json:"-"`
	MinY, MaxY             float64 `json:"-"`
	MinZ, MaxZ             float64 `json:"-"`
}

// Trajectory owns the dense world polyline derived from the stations and
// the deduplicated voxel path. Immutable once computed.
type Trajectory struct {
	Stations []Station
	World    []geo.WorldPoint
	Voxels   []geo.VoxelPoint
	Clamped  int
	Stats    Stats
}

// Compute walks consecutive station pairs, projecting each TVD interval
// through the station's inclination and azimuth, then densifies segments
// so that no step exceeds one voxel's real-world scale, transforms every
// sample and deduplicates the voxel path in first-seen order.
//
// step <= 0 means one sample per voxel scale unit. maxPoints > 0 rejects
// surveys that would densify into absurdly many samples.
func Compute(stations []Station, start geo.WorldPoint, tr *geo.Transform, step float64, maxPoints int) (*Trajectory, error) {
	if err := ValidateStations(stations); err != nil {
		return nil, err
	}
	if step <= 0 {
		step = tr.Config().Scale
	}
	if maxPoints > 0 {
		span := stations[len(stations)-1].TVD - stations[0].TVD
		if est := span / step; est > float64(maxPoints) {
			return nil, protocol.Faultf(protocol.KindValidation,
				"survey would densify to ~%.0f samples, over the %d ceiling", est, maxPoints)
		}
	}

	world := make([]geo.WorldPoint, 0, len(stations)*4)
	world = append(world, start)
	cur := start
	for i := 1; i < len(stations); i++ {
		dtvd := stations[i].TVD - stations[i-1].TVD
		if dtvd == 0 {
			continue
		}
		inc := stations[i].InclinationDeg * math.Pi / 180
		az := stations[i].AzimuthDeg * math.Pi / 180

		dz := -dtvd * math.Cos(inc)
		dh := dtvd * math.Sin(inc)
		next := geo.WorldPoint{
			X: cur.X + dh*math.Sin(az),
			Y: cur.Y + dh*math.Cos(az),
			Z: cur.Z + dz,
		}

		// Densify long intervals so voxelization leaves no gaps.
		n := 1
		if dtvd > step {
			n = int(math.Ceil(dtvd / step))
		}
		for k := 1; k <= n; k++ {
			f := float64(k) / float64(n)
			world = append(world, geo.WorldPoint{
				X: cur.X + (next.X-cur.X)*f,
				Y: cur.Y + (next.Y-cur.Y)*f,
				Z: cur.Z + (next.Z-cur.Z)*f,
			})
		}
		cur = next
	}

	voxels := make([]geo.VoxelPoint, 0, len(world))
	clamped := 0
	for _, p := range world {
		v, c := tr.ToVoxel(p)
		if c {
			clamped++
		}
		voxels = append(voxels, v)
	}

	t := &Trajectory{
		Stations: stations,
		World:    world,
		Voxels:   geo.Dedup(voxels),
		Clamped:  clamped,
		Stats:    computeStats(world),
	}
	return t, nil
}

func computeStats(world []geo.WorldPoint) Stats {
	xs := make([]float64, len(world))
	ys := make([]float64, len(world))
	zs := make([]float64, len(world))
	for i, p := range world {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	var s Stats
	s.MinX, s.MaxX = floats.Min(xs), floats.Max(xs)
	s.MinY, s.MaxY = floats.Min(ys), floats.Max(ys)
	s.MinZ, s.MaxZ = floats.Min(zs), floats.Max(zs)

	for _, z := range zs {
		if d := math.Abs(z); d > s.MaxDepth {
			s.MaxDepth = d
		}
	}

	first, last := world[0], world[len(world)-1]
	s.HorizontalDisplacement = math.Hypot(last.X-first.X, last.Y-first.Y)

	for i := 1; i < len(world); i++ {
		dx := world[i].X - world[i-1].X
		dy := world[i].Y - world[i-1].Y
		dz := world[i].Z - world[i-1].Z
		s.PathLength += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return s
}
