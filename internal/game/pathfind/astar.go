package pathfind

import (
	"container/heap"
	"math"
	"time"
)

// node is the per-search A* state for one cell. Nodes are allocated fresh
// for every search and never shared between searches.
type node struct {
	x, z   int
	g, h   float64
	parent *node
	index  int
	closed bool
}

func (n *node) f() float64 { return n.g + n.h }

// openSet is a min-heap ordered by f, breaking ties on lower h.
type openSet []*node

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	fi, fj := o[i].f(), o[j].f()
	if fi != fj {
		return fi < fj
	}
	return o[i].h < o[j].h
}
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*o = old[:n-1]
	return item
}

// searchLimits bounds one A* search.
type searchLimits struct {
	maxNodes int
	deadline time.Time
	now      func() time.Time
}

// cellDistance is both the edge cost and the heuristic: Euclidean when
// diagonal moves are allowed, Manhattan otherwise.
func cellDistance(ax, az, bx, bz int, diagonal bool) float64 {
	dx := math.Abs(float64(ax - bx))
	dz := math.Abs(float64(az - bz))
	if diagonal {
		return math.Hypot(dx, dz)
	}
	return dx + dz
}

// neighbourOffsets returns the 8- or 4-directional expansion offsets.
func neighbourOffsets(diagonal bool) [][2]int {
	if diagonal {
		return [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	}
	return [][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
}

// astar searches g from (sx,sz) to (ex,ez). It returns the cell path
// including both endpoints, and false when no path exists or a limit is hit.
func astar(g *Grid, sx, sz, ex, ez int, diagonal bool, weight float64, lim searchLimits) ([][2]int, int, bool) {
	if !g.Walkable(sx, sz) || !g.Walkable(ex, ez) {
		return nil, 0, false
	}
	nodes := make(map[int]*node)
	get := func(x, z int) *node {
		k := g.index(x, z)
		n, ok := nodes[k]
		if !ok {
			n = &node{x: x, z: z, g: math.Inf(1), index: -1}
			nodes[k] = n
		}
		return n
	}

	start := get(sx, sz)
	start.g = 0
	start.h = cellDistance(sx, sz, ex, ez, diagonal) * weight
	open := &openSet{}
	heap.Push(open, start)

	offsets := neighbourOffsets(diagonal)
	searched := 0
	for open.Len() > 0 {
		if lim.now().After(lim.deadline) {
			return nil, searched, false
		}
		cur := heap.Pop(open).(*node)
		cur.closed = true
		if cur.x == ex && cur.z == ez {
			return retrace(cur), searched, true
		}
		for _, off := range offsets {
			nx, nz := cur.x+off[0], cur.z+off[1]
			if !g.Walkable(nx, nz) {
				continue
			}
			nb := get(nx, nz)
			if nb.closed {
				continue
			}
			tentative := cur.g + cellDistance(cur.x, cur.z, nx, nz, diagonal)
			if tentative >= nb.g {
				continue
			}
			nb.g = tentative
			nb.h = cellDistance(nx, nz, ex, ez, diagonal) * weight
			nb.parent = cur
			if nb.index >= 0 {
				heap.Fix(open, nb.index)
			} else {
				heap.Push(open, nb)
			}
		}
		searched++
		if searched > lim.maxNodes {
			return nil, searched, false
		}
	}
	return nil, searched, false
}

func retrace(end *node) [][2]int {
	var out [][2]int
	for n := end; n != nil; n = n.parent {
		out = append(out, [2]int{n.x, n.z})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
