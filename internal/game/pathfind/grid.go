// Package pathfind computes enemy routes over a walkability grid: A* with
// line-of-sight smoothing for individual paths, and a Dijkstra flow field for
// many entities sharing one destination.
package pathfind

import (
	"math"

	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

// Obstacle is a map element that may block movement.
type Obstacle struct {
	Position geom.Vec3 `yaml:"position" msgpack:"position"`
	Width    float64   `yaml:"width" msgpack:"width"`
	Depth    float64   `yaml:"depth" msgpack:"depth"`
	Blocking bool      `yaml:"blocking" msgpack:"blocking"`
}

// Radius returns the obstacle's bounding radius on the ground plane.
func (o Obstacle) Radius() float64 {
	return math.Max(o.Width, o.Depth) / 2
}

// Cell is one grid square.
type Cell struct {
	X, Z     int
	World    geom.Vec3
	Walkable bool
	Cost     float64
}

// Grid is the walkability grid for one map layout. Cell (0,0) sits at the
// map's negative corner; a cell's world position is
// ((x - width/2) * cellSize, (z - height/2) * cellSize).
type Grid struct {
	Width, Height int
	CellSize      float64
	MapWidth      float64
	MapHeight     float64
	cells         []Cell
	walkable      int
}

// NewGrid builds a grid for a mapWidth x mapHeight field. A cell is walkable
// iff its centre is within map bounds and at least radius+clearance away from
// every blocking obstacle.
//
// Precondition: mapWidth, mapHeight, and cellSize must be > 0.
// Postcondition: Returns a grid of ceil(mapWidth/cellSize) x ceil(mapHeight/cellSize) cells.
func NewGrid(mapWidth, mapHeight, cellSize, clearance float64, obstacles []Obstacle) *Grid {
	w := int(math.Ceil(mapWidth / cellSize))
	h := int(math.Ceil(mapHeight / cellSize))
	g := &Grid{
		Width:     w,
		Height:    h,
		CellSize:  cellSize,
		MapWidth:  mapWidth,
		MapHeight: mapHeight,
		cells:     make([]Cell, w*h),
	}
	for x := 0; x < w; x++ {
		for z := 0; z < h; z++ {
			world := g.CellToWorld(x, z)
			walkable := g.walkableAt(world, clearance, obstacles)
			g.cells[g.index(x, z)] = Cell{X: x, Z: z, World: world, Walkable: walkable, Cost: 1}
			if walkable {
				g.walkable++
			}
		}
	}
	return g
}

func (g *Grid) walkableAt(world geom.Vec3, clearance float64, obstacles []Obstacle) bool {
	if math.Abs(world.X) > g.MapWidth/2 || math.Abs(world.Z) > g.MapHeight/2 {
		return false
	}
	for _, o := range obstacles {
		if !o.Blocking {
			continue
		}
		if world.GroundDist(o.Position) < o.Radius()+clearance {
			return false
		}
	}
	return true
}

func (g *Grid) index(x, z int) int { return x*g.Height + z }

// InBounds reports whether (x, z) addresses a grid cell.
func (g *Grid) InBounds(x, z int) bool {
	return x >= 0 && x < g.Width && z >= 0 && z < g.Height
}

// Cell returns the cell at (x, z).
//
// Precondition: InBounds(x, z).
func (g *Grid) Cell(x, z int) Cell {
	return g.cells[g.index(x, z)]
}

// Walkable reports whether (x, z) is an in-bounds walkable cell.
func (g *Grid) Walkable(x, z int) bool {
	return g.InBounds(x, z) && g.cells[g.index(x, z)].Walkable
}

// WalkableAt reports whether the cell containing world position p is walkable.
func (g *Grid) WalkableAt(p geom.Vec3) bool {
	x, z := g.WorldToCell(p)
	return g.Walkable(x, z)
}

// WalkableCount returns the number of walkable cells.
func (g *Grid) WalkableCount() int { return g.walkable }

// WorldToCell returns the grid coordinates containing world position p.
// The result may be out of bounds.
func (g *Grid) WorldToCell(p geom.Vec3) (int, int) {
	x := int(math.Floor((p.X + g.MapWidth/2) / g.CellSize))
	z := int(math.Floor((p.Z + g.MapHeight/2) / g.CellSize))
	return x, z
}

// CellToWorld returns the world position of cell (x, z).
func (g *Grid) CellToWorld(x, z int) geom.Vec3 {
	return geom.Ground(
		(float64(x)-float64(g.Width)/2)*g.CellSize,
		(float64(z)-float64(g.Height)/2)*g.CellSize,
	)
}

// LineOfSight reports whether the straight segment from a to b stays inside
// walkable cells, sampled once per cell length along the dominant axis.
func (g *Grid) LineOfSight(a, b geom.Vec3) bool {
	steps := math.Max(math.Abs(b.X-a.X), math.Abs(b.Z-a.Z)) / g.CellSize
	n := int(math.Ceil(steps))
	if n == 0 {
		return g.WalkableAt(a)
	}
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		if !g.WalkableAt(a.Lerp(b, t)) {
			return false
		}
	}
	return true
}

// NearestWalkable searches rings of increasing radius (in cells, up to
// maxRadius) around p and returns the first walkable cell's world position.
func (g *Grid) NearestWalkable(p geom.Vec3, maxRadius int) (geom.Vec3, bool) {
	cx, cz := g.WorldToCell(p)
	for r := 0; r <= maxRadius; r++ {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if abs(dx) != r && abs(dz) != r {
					continue
				}
				if g.Walkable(cx+dx, cz+dz) {
					return g.CellToWorld(cx+dx, cz+dz), true
				}
			}
		}
	}
	return geom.Vec3{}, false
}

// Cells returns a copy of every cell, row-major by x.
func (g *Grid) Cells() []Cell {
	return append([]Cell(nil), g.cells...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
