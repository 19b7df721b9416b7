package pathfind

import (
	"fmt"
	"math"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

const (
	minCellSize        = 0.5
	minHeuristicWeight = 0.1
	nearestSearchCells = 5
)

// Config holds pathfinder tuning.
type Config struct {
	MapWidth        float64
	MapHeight       float64
	CellSize        float64
	Clearance       float64
	AllowDiagonal   bool
	HeuristicWeight float64
	MaxSearchNodes  int
	MaxSearchTime   time.Duration
	CacheSize       int
	// FallbackSteps is the number of segments in a straight-line fallback path.
	FallbackSteps int
}

// DefaultConfig returns the standard 40x30 map configuration.
func DefaultConfig() Config {
	return Config{
		MapWidth:        40,
		MapHeight:       30,
		CellSize:        1,
		Clearance:       0.5,
		AllowDiagonal:   true,
		HeuristicWeight: 1,
		MaxSearchNodes:  1000,
		MaxSearchTime:   50 * time.Millisecond,
		CacheSize:       100,
		FallbackSteps:   10,
	}
}

// Stats summarises pathfinder state for telemetry.
type Stats struct {
	GridWidth       int
	GridHeight      int
	WalkableCells   int
	CellSize        float64
	AllowDiagonal   bool
	HeuristicWeight float64
	CacheSize       int
	MaxCacheSize    int
	Searches        int
	CacheHits       int
	Fallbacks       int
}

// Pathfinder owns the walkability grid and the path cache.
// It is not safe for concurrent use; the caller must serialise access.
//
// Invariant: the cache only holds paths computed against the current grid.
type Pathfinder struct {
	cfg       Config
	grid      *Grid
	obstacles []Obstacle
	cache     *lru.Cache[string, []geom.Vec3]
	logger    *zap.Logger
	now       func() time.Time

	searches  int
	cacheHits int
	fallbacks int
}

// New creates a Pathfinder and builds an obstacle-free grid for cfg's map size.
//
// Precondition: cfg.CacheSize >= 1.
// Postcondition: Returns a ready Pathfinder or a non-nil error.
func New(cfg Config, logger *zap.Logger) (*Pathfinder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.CellSize = math.Max(minCellSize, cfg.CellSize)
	cfg.HeuristicWeight = math.Max(minHeuristicWeight, cfg.HeuristicWeight)
	if cfg.FallbackSteps < 1 {
		cfg.FallbackSteps = 10
	}
	cache, err := lru.New[string, []geom.Vec3](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating path cache: %w", err)
	}
	p := &Pathfinder{
		cfg:    cfg,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
	p.rebuild()
	return p, nil
}

// SetClock replaces the wall clock used for the search time budget.
func (p *Pathfinder) SetClock(now func() time.Time) { p.now = now }

// BuildGrid rebuilds the walkability grid for a new map layout and clears the cache.
//
// Precondition: width and height must be > 0.
// Postcondition: Grid() reflects the new layout; the cache is empty.
func (p *Pathfinder) BuildGrid(width, height, cellSize float64, obstacles []Obstacle) *Grid {
	p.cfg.MapWidth = width
	p.cfg.MapHeight = height
	p.cfg.CellSize = math.Max(minCellSize, cellSize)
	p.obstacles = append([]Obstacle(nil), obstacles...)
	p.rebuild()
	return p.grid
}

// SetObstacles rebuilds the grid with a new obstacle set on the current map.
func (p *Pathfinder) SetObstacles(obstacles []Obstacle) {
	p.obstacles = append([]Obstacle(nil), obstacles...)
	p.rebuild()
}

func (p *Pathfinder) rebuild() {
	p.grid = NewGrid(p.cfg.MapWidth, p.cfg.MapHeight, p.cfg.CellSize, p.cfg.Clearance, p.obstacles)
	p.cache.Purge()
	p.logger.Info("pathfinding grid built",
		zap.Int("width", p.grid.Width),
		zap.Int("height", p.grid.Height),
		zap.Int("walkable", p.grid.WalkableCount()),
		zap.Int("obstacles", len(p.obstacles)),
	)
}

// Grid returns the current walkability grid.
func (p *Pathfinder) Grid() *Grid { return p.grid }

// FindPath returns world waypoints from start to end. The first and last
// waypoints are exactly start and end. When no grid route exists, or the
// search exceeds its node or time budget, a straight-line fallback of
// FallbackSteps+1 evenly spaced points is returned instead.
//
// Postcondition: the result has at least two points.
func (p *Pathfinder) FindPath(start, end geom.Vec3) []geom.Vec3 {
	p.searches++
	sx, sz := p.grid.WorldToCell(start)
	ex, ez := p.grid.WorldToCell(end)
	key := fmt.Sprintf("%d,%d-%d,%d", sx, sz, ex, ez)

	if cached, ok := p.cache.Get(key); ok {
		p.cacheHits++
		return withEndpoints(cached, start, end)
	}

	if !p.grid.InBounds(sx, sz) || !p.grid.InBounds(ex, ez) {
		return p.fallback(start, end, "endpoint out of grid")
	}

	lim := searchLimits{
		maxNodes: p.cfg.MaxSearchNodes,
		deadline: p.now().Add(p.cfg.MaxSearchTime),
		now:      p.now,
	}
	cells, searched, ok := astar(p.grid, sx, sz, ex, ez, p.cfg.AllowDiagonal, p.cfg.HeuristicWeight, lim)
	if !ok {
		p.logger.Debug("a* search failed",
			zap.String("key", key),
			zap.Int("searched", searched),
		)
		return p.fallback(start, end, "no route within budget")
	}

	world := make([]geom.Vec3, len(cells))
	for i, c := range cells {
		world[i] = p.grid.CellToWorld(c[0], c[1])
	}
	smoothed := p.smooth(world)
	p.cache.Add(key, smoothed)
	return withEndpoints(smoothed, start, end)
}

func withEndpoints(path []geom.Vec3, start, end geom.Vec3) []geom.Vec3 {
	out := slices.Clone(path)
	if len(out) == 1 {
		return []geom.Vec3{start, end}
	}
	out[0] = start
	out[len(out)-1] = end
	return out
}

// smooth drops every waypoint that the previous kept waypoint can see past.
func (p *Pathfinder) smooth(path []geom.Vec3) []geom.Vec3 {
	if len(path) <= 2 {
		return path
	}
	out := []geom.Vec3{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prev := out[len(out)-1]
		if !p.grid.LineOfSight(prev, path[i+1]) {
			out = append(out, path[i])
		}
	}
	return append(out, path[len(path)-1])
}

func (p *Pathfinder) fallback(start, end geom.Vec3, reason string) []geom.Vec3 {
	p.fallbacks++
	p.logger.Debug("using fallback path",
		zap.String("reason", reason),
		zap.Float64("start_x", start.X),
		zap.Float64("start_z", start.Z),
		zap.Float64("end_x", end.X),
		zap.Float64("end_z", end.Z),
	)
	return FallbackPath(start, end, p.cfg.FallbackSteps)
}

// FallbackPath returns steps+1 points evenly spaced from start to end.
func FallbackPath(start, end geom.Vec3, steps int) []geom.Vec3 {
	out := make([]geom.Vec3, 0, steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, start.Lerp(end, float64(i)/float64(steps)))
	}
	return out
}

// BuildFlowField computes a flow field toward target over the current grid.
func (p *Pathfinder) BuildFlowField(target geom.Vec3) *FlowField {
	return buildFlowField(p.grid, target, p.cfg.AllowDiagonal)
}

// UpdatePath re-plans the remainder of path from index when any remaining
// segment has lost line of sight. The already-walked prefix is preserved.
func (p *Pathfinder) UpdatePath(path []geom.Vec3, index int) []geom.Vec3 {
	if len(path) == 0 || index >= len(path)-1 {
		return path
	}
	if index < 0 {
		index = 0
	}
	rest := path[index:]
	for i := 0; i < len(rest)-1; i++ {
		if !p.grid.LineOfSight(rest[i], rest[i+1]) {
			replanned := p.FindPath(rest[0], rest[len(rest)-1])
			return append(slices.Clone(path[:index]), replanned...)
		}
	}
	return path
}

// ValidatePath reports whether path has at least two points and every
// segment keeps line of sight.
func (p *Pathfinder) ValidatePath(path []geom.Vec3) bool {
	if len(path) < 2 {
		return false
	}
	for i := 0; i < len(path)-1; i++ {
		if !p.grid.LineOfSight(path[i], path[i+1]) {
			return false
		}
	}
	return true
}

// RepairPath inserts a walkable detour point before every waypoint that the
// previous waypoint cannot see.
func (p *Pathfinder) RepairPath(path []geom.Vec3) []geom.Vec3 {
	if len(path) < 2 {
		return path
	}
	out := []geom.Vec3{path[0]}
	for i := 1; i < len(path); i++ {
		last := out[len(out)-1]
		if !p.grid.LineOfSight(last, path[i]) {
			if detour, ok := p.grid.NearestWalkable(last.Lerp(path[i], 0.5), nearestSearchCells); ok {
				out = append(out, detour)
			}
		}
		out = append(out, path[i])
	}
	return out
}

// FindNearestWalkable returns the closest walkable cell centre to pos within
// five cells.
func (p *Pathfinder) FindNearestWalkable(pos geom.Vec3) (geom.Vec3, bool) {
	return p.grid.NearestWalkable(pos, nearestSearchCells)
}

// IsWalkable reports whether world position pos lies in a walkable cell.
func (p *Pathfinder) IsWalkable(pos geom.Vec3) bool { return p.grid.WalkableAt(pos) }

// SetAllowDiagonal toggles 8-directional movement and clears the cache.
func (p *Pathfinder) SetAllowDiagonal(allow bool) {
	p.cfg.AllowDiagonal = allow
	p.cache.Purge()
}

// SetHeuristicWeight sets the A* heuristic weight (minimum 0.1) and clears the cache.
func (p *Pathfinder) SetHeuristicWeight(w float64) {
	p.cfg.HeuristicWeight = math.Max(minHeuristicWeight, w)
	p.cache.Purge()
}

// SetCellSize sets the cell size (minimum 0.5), rebuilds the grid, and clears the cache.
func (p *Pathfinder) SetCellSize(size float64) {
	p.cfg.CellSize = math.Max(minCellSize, size)
	p.rebuild()
}

// ClearCache drops every cached path.
func (p *Pathfinder) ClearCache() { p.cache.Purge() }

// Config returns the current configuration.
func (p *Pathfinder) Config() Config { return p.cfg }

// Stats returns pathfinder telemetry.
func (p *Pathfinder) Stats() Stats {
	return Stats{
		GridWidth:       p.grid.Width,
		GridHeight:      p.grid.Height,
		WalkableCells:   p.grid.WalkableCount(),
		CellSize:        p.cfg.CellSize,
		AllowDiagonal:   p.cfg.AllowDiagonal,
		HeuristicWeight: p.cfg.HeuristicWeight,
		CacheSize:       p.cache.Len(),
		MaxCacheSize:    p.cfg.CacheSize,
		Searches:        p.searches,
		CacheHits:       p.cacheHits,
		Fallbacks:       p.fallbacks,
	}
}

// PathLength returns the summed segment length of path.
func PathLength(path []geom.Vec3) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Dist(path[i])
	}
	return total
}
