package pathfind

import (
	"container/heap"
	"math"

	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

// FlowCell holds the flow toward the field's target from one cell.
type FlowCell struct {
	// Direction is a unit ground vector toward the next cell nearer the target,
	// or zero at the target and in unreachable cells.
	Direction geom.Vec3
	// Distance is the cumulative world distance to the target; +Inf when unreachable.
	Distance float64
}

// FlowField maps every cell to its direction and distance toward one target.
type FlowField struct {
	grid   *Grid
	target geom.Vec3
	cells  []FlowCell
}

type flowItem struct {
	x, z int
	dist float64
}

type flowQueue []flowItem

func (q flowQueue) Len() int           { return len(q) }
func (q flowQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q flowQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *flowQueue) Push(x any)        { *q = append(*q, x.(flowItem)) }
func (q *flowQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// buildFlowField runs single-source Dijkstra outward from target.
func buildFlowField(g *Grid, target geom.Vec3, diagonal bool) *FlowField {
	ff := &FlowField{grid: g, target: target, cells: make([]FlowCell, g.Width*g.Height)}
	for i := range ff.cells {
		ff.cells[i].Distance = math.Inf(1)
	}
	tx, tz := g.WorldToCell(target)
	if !g.InBounds(tx, tz) {
		return ff
	}
	ff.cells[g.index(tx, tz)].Distance = 0

	q := &flowQueue{{x: tx, z: tz}}
	visited := make([]bool, len(ff.cells))
	offsets := neighbourOffsets(diagonal)
	for q.Len() > 0 {
		cur := heap.Pop(q).(flowItem)
		ci := g.index(cur.x, cur.z)
		if visited[ci] {
			continue
		}
		visited[ci] = true
		for _, off := range offsets {
			nx, nz := cur.x+off[0], cur.z+off[1]
			if !g.Walkable(nx, nz) {
				continue
			}
			d := cur.dist + cellDistance(cur.x, cur.z, nx, nz, diagonal)*g.CellSize
			ni := g.index(nx, nz)
			if d >= ff.cells[ni].Distance {
				continue
			}
			ff.cells[ni].Distance = d
			ff.cells[ni].Direction = geom.Ground(float64(cur.x-nx), float64(cur.z-nz)).Normalize()
			heap.Push(q, flowItem{x: nx, z: nz, dist: d})
		}
	}
	return ff
}

// Target returns the world position the field flows toward.
func (f *FlowField) Target() geom.Vec3 { return f.target }

// At returns the flow cell containing world position p; out-of-grid positions
// return a zero direction and infinite distance.
func (f *FlowField) At(p geom.Vec3) FlowCell {
	x, z := f.grid.WorldToCell(p)
	if !f.grid.InBounds(x, z) {
		return FlowCell{Distance: math.Inf(1)}
	}
	return f.cells[f.grid.index(x, z)]
}

// Direction returns the unit direction toward the target from p.
func (f *FlowField) Direction(p geom.Vec3) geom.Vec3 { return f.At(p).Direction }

// Distance returns the cumulative distance to the target from p.
func (f *FlowField) Distance(p geom.Vec3) float64 { return f.At(p).Distance }

// Reachable reports whether p can reach the target.
func (f *FlowField) Reachable(p geom.Vec3) bool { return !math.IsInf(f.Distance(p), 1) }
