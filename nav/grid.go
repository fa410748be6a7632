// Package nav answers path queries over a walkability grid laid on the
// ground plane. Blocked cells are sampled once from whatever owns the
// obstacles, usually the physics world.
package nav

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/steering"
)

const (
	DefaultCellSize  = 0.5
	DefaultClearance = 0.5
)

// DefaultExtent is the half-size of the box searched for a walkable cell
// when a query point lands on a blocked one.
var DefaultExtent = mgl64.Vec3{3, 4, 3}

var (
	ErrEmptyGrid       = errors.New("nav: empty grid")
	ErrInvalidCellSize = errors.New("nav: cell size must be positive")
)

// Blocker reports whether a circle at p overlaps anything in mask.
type Blocker interface {
	Blocked(p mgl64.Vec3, clearance float64, mask steering.CollisionMask) bool
}

type Config struct {
	CellSize      float64                `yaml:"cell_size" json:"cell_size,omitempty"`
	Min           mgl64.Vec3             `yaml:"min" json:"min"`
	Max           mgl64.Vec3             `yaml:"max" json:"max"`
	Clearance     float64                `yaml:"clearance" json:"clearance,omitempty"`
	Mask          steering.CollisionMask `yaml:"mask" json:"mask,omitempty"`
	Extent        mgl64.Vec3             `yaml:"extent" json:"extent,omitempty"`
	MaxPathPoints int                    `yaml:"max_path_points" json:"max_path_points,omitempty" jsonschema:"minimum=0"`
}

func (c Config) WithDefaults() Config {
	if c.CellSize == 0 {
		c.CellSize = DefaultCellSize
	}
	if c.Clearance <= 0 {
		c.Clearance = DefaultClearance
	}
	if c.Mask == 0 {
		c.Mask = steering.StaticFilter
	}
	if c.Extent == (mgl64.Vec3{}) {
		c.Extent = DefaultExtent
	}
	return c
}

// Grid is an A* navigator over square cells on the XZ plane.
type Grid struct {
	cfg     Config
	w, h    int
	blocked []bool
	logger  *log.Logger
}

func NewGrid(cfg Config, blocker Blocker, logger *log.Logger) (*Grid, error) {
	cfg = cfg.WithDefaults()
	if cfg.CellSize <= 0 || math.IsNaN(cfg.CellSize) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCellSize, cfg.CellSize)
	}
	w := int(math.Ceil((cfg.Max.X() - cfg.Min.X()) / cfg.CellSize))
	h := int(math.Ceil((cfg.Max.Z() - cfg.Min.Z()) / cfg.CellSize))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: bounds %v..%v", ErrEmptyGrid, cfg.Min, cfg.Max)
	}
	if logger == nil {
		logger = log.Default()
	}

	g := &Grid{
		cfg:     cfg,
		w:       w,
		h:       h,
		blocked: make([]bool, w*h),
		logger:  logger.WithPrefix("nav"),
	}
	g.Rebuild(blocker)
	return g, nil
}

// Rebuild resamples every cell against blocker. A nil blocker clears the grid.
func (g *Grid) Rebuild(blocker Blocker) {
	count := 0
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			idx := y*g.w + x
			g.blocked[idx] = blocker != nil && blocker.Blocked(g.cellCenter(gridPos{x: x, y: y}, g.cfg.Min.Y()), g.cfg.Clearance, g.cfg.Mask)
			if g.blocked[idx] {
				count++
			}
		}
	}
	g.logger.Debug("grid sampled", "width", g.w, "height", g.h, "blocked", count)
}

func (g *Grid) Config() Config {
	return g.cfg
}

// Dims returns the cell counts along X and Z.
func (g *Grid) Dims() (int, int) {
	return g.w, g.h
}

func (g *Grid) CellBlocked(x, z int) bool {
	if x < 0 || z < 0 || x >= g.w || z >= g.h {
		return true
	}
	return g.blocked[z*g.w+x]
}

func (g *Grid) CellCenter(x, z int) mgl64.Vec3 {
	return g.cellCenter(gridPos{x: x, y: z}, g.cfg.Min.Y())
}

// Walkable reports whether p lies on an open cell.
func (g *Grid) Walkable(p mgl64.Vec3) bool {
	c, ok := g.cellOf(p)
	return ok && !g.blocked[c.y*g.w+c.x]
}

// Nearest returns p itself when walkable, otherwise the closest open cell
// centre inside the configured extent.
func (g *Grid) Nearest(p mgl64.Vec3) (mgl64.Vec3, bool) {
	if g.Walkable(p) {
		return p, true
	}
	ext := g.cfg.Extent
	minX := int(math.Floor((p.X() - ext.X() - g.cfg.Min.X()) / g.cfg.CellSize))
	maxX := int(math.Floor((p.X() + ext.X() - g.cfg.Min.X()) / g.cfg.CellSize))
	minZ := int(math.Floor((p.Z() - ext.Z() - g.cfg.Min.Z()) / g.cfg.CellSize))
	maxZ := int(math.Floor((p.Z() + ext.Z() - g.cfg.Min.Z()) / g.cfg.CellSize))
	minX, maxX = max(minX, 0), min(maxX, g.w-1)
	minZ, maxZ = max(minZ, 0), min(maxZ, g.h-1)

	best := math.Inf(1)
	var out mgl64.Vec3
	found := false
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			if g.blocked[z*g.w+x] {
				continue
			}
			c := g.cellCenter(gridPos{x: x, y: z}, p.Y())
			if math.Abs(c.X()-p.X()) > ext.X() || math.Abs(c.Z()-p.Z()) > ext.Z() {
				continue
			}
			d := c.Sub(p)
			if dist := d.Dot(d); dist < best {
				best = dist
				out = c
				found = true
			}
		}
	}
	return out, found
}

// FindPath implements steering.PathFinder using the configured point limit.
func (g *Grid) FindPath(from, to mgl64.Vec3) ([]mgl64.Vec3, bool) {
	return g.FindPathLimit(from, to, g.cfg.MaxPathPoints)
}

// FindPathLimit returns a path whose first point is the start and whose
// last is the goal, both snapped onto open ground when needed. A positive
// maxPoints keeps only that many leading corners (at least two).
func (g *Grid) FindPathLimit(from, to mgl64.Vec3, maxPoints int) ([]mgl64.Vec3, bool) {
	if g == nil {
		return nil, false
	}
	start, ok := g.Nearest(from)
	if !ok {
		g.logger.Debug("start off grid", "from", from)
		return nil, false
	}
	goal, ok := g.Nearest(to)
	if !ok {
		g.logger.Debug("goal off grid", "to", to)
		return nil, false
	}

	startCell, _ := g.cellOf(start)
	goalCell, _ := g.cellOf(goal)
	cells := astarPath(startCell, goalCell, g.blocked, g.w, g.h)
	if len(cells) == 0 {
		g.logger.Debug("no path", "from", from, "to", to)
		return nil, false
	}

	path := make([]mgl64.Vec3, 0, len(cells)+1)
	path = append(path, start)
	for _, c := range cells[1 : len(cells)-1] {
		path = append(path, g.cellCenter(c, start.Y()))
	}
	path = append(path, goal)
	path = g.shortcut(pruneCollinear(path))

	if maxPoints > 0 && len(path) > max(maxPoints, 2) {
		path = path[:max(maxPoints, 2)]
	}
	return path, true
}

// shortcut drops every corner the previous kept point can see past.
func (g *Grid) shortcut(path []mgl64.Vec3) []mgl64.Vec3 {
	if len(path) <= 2 {
		return path
	}
	out := []mgl64.Vec3{path[0]}
	anchor := 0
	for i := 2; i < len(path); i++ {
		if !g.lineOfSight(path[anchor], path[i]) {
			anchor = i - 1
			out = append(out, path[anchor])
		}
	}
	return append(out, path[len(path)-1])
}

// lineOfSight walks every cell the segment crosses.
func (g *Grid) lineOfSight(a, b mgl64.Vec3) bool {
	ca, ok := g.cellOf(a)
	if !ok {
		return false
	}
	cb, ok := g.cellOf(b)
	if !ok {
		return false
	}

	ax := (a.X() - g.cfg.Min.X()) / g.cfg.CellSize
	az := (a.Z() - g.cfg.Min.Z()) / g.cfg.CellSize
	dx := (b.X() - a.X()) / g.cfg.CellSize
	dz := (b.Z() - a.Z()) / g.cfg.CellSize

	stepX, tMaxX, tDeltaX := traverseAxis(ax, dx)
	stepZ, tMaxZ, tDeltaZ := traverseAxis(az, dz)

	steps := abs(cb.x-ca.x) + abs(cb.y-ca.y)
	cur := ca
	for i := 0; i < steps; i++ {
		if g.blocked[cur.y*g.w+cur.x] {
			return false
		}
		if tMaxX < tMaxZ {
			cur.x += stepX
			tMaxX += tDeltaX
		} else {
			cur.y += stepZ
			tMaxZ += tDeltaZ
		}
		if cur.x < 0 || cur.y < 0 || cur.x >= g.w || cur.y >= g.h {
			return false
		}
	}
	return !g.blocked[cb.y*g.w+cb.x]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func traverseAxis(origin, delta float64) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		return 1, (math.Floor(origin) + 1 - origin) / delta, 1 / delta
	case delta < 0:
		return -1, (origin - math.Floor(origin)) / -delta, 1 / -delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func pruneCollinear(path []mgl64.Vec3) []mgl64.Vec3 {
	if len(path) <= 2 {
		return path
	}
	out := []mgl64.Vec3{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prev := out[len(out)-1]
		a := path[i].Sub(prev)
		b := path[i+1].Sub(path[i])
		if math.Abs(a.X()*b.Z()-a.Z()*b.X()) < 1e-9 && a.X()*b.X()+a.Z()*b.Z() >= 0 {
			continue
		}
		out = append(out, path[i])
	}
	return append(out, path[len(path)-1])
}

type gridPos struct {
	x int
	y int
}

func (g *Grid) cellOf(p mgl64.Vec3) (gridPos, bool) {
	if math.IsNaN(p.X()) || math.IsNaN(p.Z()) {
		return gridPos{}, false
	}
	gx := int(math.Floor((p.X() - g.cfg.Min.X()) / g.cfg.CellSize))
	gy := int(math.Floor((p.Z() - g.cfg.Min.Z()) / g.cfg.CellSize))
	if gx < 0 || gy < 0 || gx >= g.w || gy >= g.h {
		return gridPos{}, false
	}
	return gridPos{x: gx, y: gy}, true
}

func (g *Grid) cellCenter(p gridPos, y float64) mgl64.Vec3 {
	half := g.cfg.CellSize * 0.5
	return mgl64.Vec3{
		g.cfg.Min.X() + float64(p.x)*g.cfg.CellSize + half,
		y,
		g.cfg.Min.Z() + float64(p.y)*g.cfg.CellSize + half,
	}
}

func astarPath(start, goal gridPos, blocked []bool, gridW, gridH int) []gridPos {
	if start.x < 0 || start.y < 0 || goal.x < 0 || goal.y < 0 {
		return nil
	}
	if start.x >= gridW || start.y >= gridH || goal.x >= gridW || goal.y >= gridH {
		return nil
	}
	if blocked[start.y*gridW+start.x] || blocked[goal.y*gridW+goal.x] {
		return nil
	}

	open := &openSet{}
	heap.Init(open)

	cameFrom := make([]int, gridW*gridH)
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	gScore := make([]float64, gridW*gridH)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	startIdx := start.y*gridW + start.x
	goalIdx := goal.y*gridW + goal.x
	gScore[startIdx] = 0
	heap.Push(open, &openItem{pos: start, f: heuristic(start, goal)})

	for open.Len() > 0 {
		current := heap.Pop(open).(*openItem)
		cur := current.pos
		curIdx := cur.y*gridW + cur.x
		if current.g > gScore[curIdx] {
			continue
		}
		if curIdx == goalIdx {
			return reconstructPath(cameFrom, gridW, startIdx, goalIdx)
		}

		for _, n := range neighbors(cur, gridW, gridH) {
			idx := n.y*gridW + n.x
			if blocked[idx] {
				continue
			}
			tentativeG := gScore[curIdx] + 1
			if tentativeG < gScore[idx] {
				cameFrom[idx] = curIdx
				gScore[idx] = tentativeG
				heap.Push(open, &openItem{pos: n, f: tentativeG + heuristic(n, goal), g: tentativeG})
			}
		}
	}
	return nil
}

func reconstructPath(cameFrom []int, gridW int, startIdx, goalIdx int) []gridPos {
	if startIdx == goalIdx {
		p := gridPos{x: startIdx % gridW, y: startIdx / gridW}
		return []gridPos{p, p}
	}
	if goalIdx < 0 || goalIdx >= len(cameFrom) || cameFrom[goalIdx] == -1 {
		return nil
	}

	path := make([]gridPos, 0, 32)
	cur := goalIdx
	for cur != -1 {
		path = append(path, gridPos{x: cur % gridW, y: cur / gridW})
		if cur == startIdx {
			break
		}
		cur = cameFrom[cur]
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func neighbors(p gridPos, gridW, gridH int) []gridPos {
	out := make([]gridPos, 0, 4)
	if p.x > 0 {
		out = append(out, gridPos{x: p.x - 1, y: p.y})
	}
	if p.x < gridW-1 {
		out = append(out, gridPos{x: p.x + 1, y: p.y})
	}
	if p.y > 0 {
		out = append(out, gridPos{x: p.x, y: p.y - 1})
	}
	if p.y < gridH-1 {
		out = append(out, gridPos{x: p.x, y: p.y + 1})
	}
	return out
}

func heuristic(a, b gridPos) float64 {
	return math.Abs(float64(a.x-b.x)) + math.Abs(float64(a.y-b.y))
}

type openItem struct {
	pos   gridPos
	f     float64
	g     float64
	index int
}

type openSet []*openItem

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
