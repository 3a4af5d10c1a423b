package script

import (
	"fmt"
	"sort"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
)

// Placement is one voxel cell together with its block type.
type Placement struct {
	Pos   geo.VoxelPoint
	Block string
}

// Uniform assigns one block type to every voxel.
func Uniform(voxels []geo.VoxelPoint, block string) []Placement {
	out := make([]Placement, len(voxels))
	for i, v := range voxels {
		out[i] = Placement{Pos: v, Block: block}
	}
	return out
}

type BatchOptions struct {
	// ClearBlock fills the overall bounding box before building.
	// Empty means "air". Set NoClear to skip the clearing pass.
	ClearBlock string
	NoClear    bool

	// Marker is the completion message appended as a say command.
	// Empty means no marker.
	Marker string
}

type cellKey struct {
	Y     int64
	Block string
}

// Batch turns a deduplicated placement set into a minimal ordered script.
// Per (y, block) group it emits a single fill when the group's points cover
// their whole bounding rectangle, and per-cell setblocks otherwise, so a
// fill never touches a cell that was not asked for. Groups are emitted in
// ascending y. A clearing fill over the used bounding box is prepended and
// an optional completion marker appended.
func Batch(placements []Placement, opts BatchOptions) (Script, error) {
	if len(placements) == 0 {
		return nil, protocol.Faultf(protocol.KindValidation, "empty placement set")
	}

	groups := make(map[cellKey][]geo.VoxelPoint)
	seen := make(map[geo.VoxelPoint]struct{}, len(placements))
	for _, p := range placements {
		if p.Block == "" {
			return nil, protocol.Faultf(protocol.KindValidation, "placement at %v has empty block type", p.Pos)
		}
		if _, dup := seen[p.Pos]; dup {
			return nil, protocol.Faultf(protocol.KindValidation, "duplicate voxel %v in placement set", p.Pos)
		}
		seen[p.Pos] = struct{}{}
		key := cellKey{Y: p.Pos.Y, Block: p.Block}
		groups[key] = append(groups[key], p.Pos)
	}

	keys := make([]cellKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].Block < keys[j].Block
	})

	var out Script

	if !opts.NoClear {
		clearBlock := opts.ClearBlock
		if clearBlock == "" {
			clearBlock = "air"
		}
		min, max := bounds(placements)
		clear := NewFill(min, max, clearBlock)
		clear.Critical = true
		out = append(out, clear)
	}

	for _, k := range keys {
		pts := groups[k]
		minX, maxX := pts[0].X, pts[0].X
		minZ, maxZ := pts[0].Z, pts[0].Z
		for _, p := range pts[1:] {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Z < minZ {
				minZ = p.Z
			}
			if p.Z > maxZ {
				maxZ = p.Z
			}
		}
		area := (maxX - minX + 1) * (maxZ - minZ + 1)
		if area == int64(len(pts)) {
			out = append(out, NewFill(
				geo.VoxelPoint{X: minX, Y: k.Y, Z: minZ},
				geo.VoxelPoint{X: maxX, Y: k.Y, Z: maxZ},
				k.Block))
			continue
		}
		for _, p := range pts {
			out = append(out, NewSetBlock(p, k.Block))
		}
	}

	if opts.Marker != "" {
		out = append(out, NewRaw(fmt.Sprintf("say %s", opts.Marker)))
	}
	return out, nil
}

func bounds(placements []Placement) (geo.VoxelPoint, geo.VoxelPoint) {
	min := placements[0].Pos
	max := placements[0].Pos
	for _, p := range placements[1:] {
		v := p.Pos
		if v.X < min.X {
			min.X = v.X
		}
		if v.Y < min.Y {
			min.Y = v.Y
		}
		if v.Z < min.Z {
			min.Z = v.Z
		}
		if v.X > max.X {
			max.X = v.X
		}
		if v.Y > max.Y {
			max.Y = v.Y
		}
		if v.Z > max.Z {
			max.Z = v.Z
		}
	}
	return min, max
}
