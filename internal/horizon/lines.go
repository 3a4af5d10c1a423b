package horizon

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
)

type lineSample struct {
	dom   float64 // position along the dominant axis
	cross float64 // position on the other horizontal axis
	elev  float64
}

type line struct {
	number    int
	samples   []lineSample // densified, one per integer dominant position
	meanCross float64
	byDom     map[int64]lineSample
}

// InterpolateLines builds a dense surface from scattered boundary-line
// points. Each line is first densified along the dominant horizontal axis
// (piecewise-linear in both the cross coordinate and the elevation), then
// the plane between adjacent lines is filled by interpolating between the
// two lines' samples at matching dominant positions.
func InterpolateLines(records []LineRecord, tr *geo.Transform, maxPoints int) (*Surface, error) {
	if len(records) == 0 {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: empty point set")
	}

	// Dominant axis = the horizontal axis with the larger overall span.
	var minE, maxE, minN, maxN float64
	for i, r := range records {
		if i == 0 {
			minE, maxE, minN, maxN = r.Easting, r.Easting, r.Northing, r.Northing
			continue
		}
		minE = math.Min(minE, r.Easting)
		maxE = math.Max(maxE, r.Easting)
		minN = math.Min(minN, r.Northing)
		maxN = math.Max(maxN, r.Northing)
	}
	domIsEasting := maxE-minE >= maxN-minN

	grouped := map[int][]lineSample{}
	for _, r := range records {
		s := lineSample{dom: r.Easting, cross: r.Northing, elev: r.Elevation}
		if !domIsEasting {
			s.dom, s.cross = r.Northing, r.Easting
		}
		grouped[r.LineNumber] = append(grouped[r.LineNumber], s)
	}
	if len(grouped) < 2 {
		return nil, protocol.Faultf(protocol.KindValidation, "lines: need at least 2 distinct lines, got %d", len(grouped))
	}

	lines := make([]*line, 0, len(grouped))
	for num, pts := range grouped {
		l, err := densifyLine(num, pts)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].meanCross < lines[j].meanCross })

	surf := &Surface{Mode: "lines", RawCount: len(records)}
	emit := func(s lineSample) error {
		if maxPoints > 0 && len(surf.World) >= maxPoints {
			return protocol.Faultf(protocol.KindValidation, "lines: interpolation exceeds point ceiling %d", maxPoints)
		}
		p := geo.WorldPoint{X: s.dom, Y: s.cross, Z: s.elev}
		if !domIsEasting {
			p.X, p.Y = s.cross, s.dom
		}
		surf.World = append(surf.World, p)
		return nil
	}

	for _, l := range lines {
		for _, s := range l.samples {
			if err := emit(s); err != nil {
				return nil, err
			}
		}
	}

	// Fill the plane between each pair of adjacent lines.
	for i := 1; i < len(lines); i++ {
		a, b := lines[i-1], lines[i]
		for dom, sa := range a.byDom {
			sb, ok := b.byDom[dom]
			if !ok {
				continue
			}
			lo, hi := sa.cross, sb.cross
			if lo > hi {
				lo, hi = hi, lo
			}
			for c := int64(math.Ceil(lo)); float64(c) <= hi; c++ {
				span := sb.cross - sa.cross
				w := 0.0
				if span != 0 {
					w = (float64(c) - sa.cross) / span
				}
				s := lineSample{
					dom:   sa.dom,
					cross: float64(c),
					elev:  sa.elev + (sb.elev-sa.elev)*w,
				}
				if err := emit(s); err != nil {
					return nil, err
				}
			}
		}
	}

	surf.voxelize(tr)
	surf.checkDensity()
	return surf, nil
}

// densifyLine sorts one line along the dominant axis and resamples it at
// every integer dominant position.
func densifyLine(num int, pts []lineSample) (*line, error) {
	sort.Slice(pts, func(i, j int) bool { return pts[i].dom < pts[j].dom })

	// Strictly increasing abscissas for the interpolators; first wins on ties.
	doms := make([]float64, 0, len(pts))
	crosses := make([]float64, 0, len(pts))
	elevs := make([]float64, 0, len(pts))
	for _, p := range pts {
		if len(doms) > 0 && p.dom == doms[len(doms)-1] {
			continue
		}
		doms = append(doms, p.dom)
		crosses = append(crosses, p.cross)
		elevs = append(elevs, p.elev)
	}

	l := &line{number: num, byDom: map[int64]lineSample{}}
	var sum float64
	for _, c := range crosses {
		sum += c
	}
	if len(crosses) > 0 {
		l.meanCross = sum / float64(len(crosses))
	}

	if len(doms) < 2 {
		// A single usable point: keep it as-is, nothing to densify.
		for i := range doms {
			s := lineSample{dom: doms[i], cross: crosses[i], elev: elevs[i]}
			l.samples = append(l.samples, s)
			l.byDom[int64(math.Round(s.dom))] = s
		}
		return l, nil
	}

	var crossPL, elevPL interp.PiecewiseLinear
	if err := crossPL.Fit(doms, crosses); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "line %d: %v", num, err)
	}
	if err := elevPL.Fit(doms, elevs); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "line %d: %v", num, err)
	}

	for d := int64(math.Ceil(doms[0])); float64(d) <= doms[len(doms)-1]; d++ {
		s := lineSample{
			dom:   float64(d),
			cross: crossPL.Predict(float64(d)),
			elev:  elevPL.Predict(float64(d)),
		}
		l.samples = append(l.samples, s)
		l.byDom[d] = s
	}
	return l, nil
}
