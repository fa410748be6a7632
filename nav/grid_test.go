package nav

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/physics"
	"github.com/milk9111/pathsteer/steering"
)

type blockFunc func(p mgl64.Vec3) bool

func (f blockFunc) Blocked(p mgl64.Vec3, clearance float64, mask steering.CollisionMask) bool {
	return f(p)
}

// wall fills column x=4 for rows z<8 on a 10x10 unit grid.
func wall(p mgl64.Vec3) bool {
	return p.X() >= 4 && p.X() < 5 && p.Z() < 8
}

func newTestGrid(t *testing.T, blocked Blocker) *Grid {
	t.Helper()
	g, err := NewGrid(Config{CellSize: 1, Max: mgl64.Vec3{10, 0, 10}}, blocked, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func crossesWall(path []mgl64.Vec3) bool {
	const eps = 1e-6
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		for s := 0.0; s <= 1; s += 0.001 {
			p := a.Add(b.Sub(a).Mul(s))
			if p.X() > 4+eps && p.X() < 5-eps && p.Z() < 8-eps {
				return true
			}
		}
	}
	return false
}

func TestNewGridValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"negative_cell", Config{CellSize: -1, Max: mgl64.Vec3{1, 0, 1}}, ErrInvalidCellSize},
		{"flat_bounds", Config{CellSize: 1, Max: mgl64.Vec3{1, 0, 0}}, ErrEmptyGrid},
		{"inverted_bounds", Config{CellSize: 1, Min: mgl64.Vec3{5, 0, 5}}, ErrEmptyGrid},
		{"ok", Config{Max: mgl64.Vec3{1, 0, 1}}, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewGrid(c.cfg, nil, nil); !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestGridDefaults(t *testing.T) {
	g, err := NewGrid(Config{Max: mgl64.Vec3{2, 0, 3}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := g.Config()
	if cfg.CellSize != DefaultCellSize || cfg.Clearance != DefaultClearance || cfg.Mask != steering.StaticFilter || cfg.Extent != DefaultExtent {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if w, h := g.Dims(); w != 4 || h != 6 {
		t.Fatalf("expected 4x6 cells, got %dx%d", w, h)
	}
}

func TestFindPath(t *testing.T) {
	t.Run("straight_line_collapses", func(t *testing.T) {
		g := newTestGrid(t, nil)
		from, to := mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{8.5, 0, 0.5}
		path, ok := g.FindPath(from, to)
		if !ok {
			t.Fatal("expected a path")
		}
		if len(path) != 2 || path[0] != from || path[1] != to {
			t.Fatalf("expected direct path, got %v", path)
		}
	})

	t.Run("same_cell", func(t *testing.T) {
		g := newTestGrid(t, nil)
		from, to := mgl64.Vec3{0.2, 0, 0.2}, mgl64.Vec3{0.7, 0, 0.7}
		path, ok := g.FindPath(from, to)
		if !ok || len(path) != 2 || path[0] != from || path[1] != to {
			t.Fatalf("expected [from to], got %v ok=%v", path, ok)
		}
	})

	t.Run("routes_around_wall", func(t *testing.T) {
		g := newTestGrid(t, blockFunc(wall))
		from, to := mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{8.5, 0, 0.5}
		path, ok := g.FindPath(from, to)
		if !ok {
			t.Fatal("expected a path")
		}
		if len(path) < 3 {
			t.Fatalf("expected at least one corner, got %v", path)
		}
		if path[0] != from || path[len(path)-1] != to {
			t.Fatalf("expected exact endpoints, got %v", path)
		}
		if crossesWall(path) {
			t.Fatalf("path crosses wall: %v", path)
		}
	})

	t.Run("enclosed_goal", func(t *testing.T) {
		ring := func(p mgl64.Vec3) bool {
			cx, cz := int(math.Floor(p.X())), int(math.Floor(p.Z()))
			dx, dz := cx-8, cz-8
			if dx < 0 {
				dx = -dx
			}
			if dz < 0 {
				dz = -dz
			}
			return max(dx, dz) == 1
		}
		g := newTestGrid(t, blockFunc(ring))
		if path, ok := g.FindPath(mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{8.5, 0, 8.5}); ok {
			t.Fatalf("expected failure, got %v", path)
		}
	})

	t.Run("goal_beyond_extent", func(t *testing.T) {
		g := newTestGrid(t, nil)
		if _, ok := g.FindPath(mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{50, 0, 50}); ok {
			t.Fatal("expected failure")
		}
	})
}

func TestFindPathSnapsToOpenGround(t *testing.T) {
	g := newTestGrid(t, blockFunc(wall))

	t.Run("blocked_goal", func(t *testing.T) {
		goal := mgl64.Vec3{4.5, 0, 3.5}
		path, ok := g.FindPath(mgl64.Vec3{0.5, 0, 0.5}, goal)
		if !ok {
			t.Fatal("expected a snapped path")
		}
		last := path[len(path)-1]
		if !g.Walkable(last) {
			t.Fatalf("expected walkable goal, got %v", last)
		}
		if d := last.Sub(goal).Len(); d > 1+1e-9 {
			t.Fatalf("snapped %v away from goal", d)
		}
	})

	t.Run("start_outside_bounds", func(t *testing.T) {
		path, ok := g.FindPath(mgl64.Vec3{-0.5, 0, 0.5}, mgl64.Vec3{2.5, 0, 0.5})
		if !ok {
			t.Fatal("expected a path")
		}
		if path[0] != (mgl64.Vec3{0.5, 0, 0.5}) {
			t.Fatalf("expected start snapped to first cell, got %v", path[0])
		}
	})

	t.Run("extent_too_small", func(t *testing.T) {
		tight, err := NewGrid(Config{CellSize: 1, Max: mgl64.Vec3{10, 0, 10}, Extent: mgl64.Vec3{0.2, 0.2, 0.2}}, blockFunc(wall), nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := tight.FindPath(mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{4.5, 0, 3.5}); ok {
			t.Fatal("expected failure")
		}
	})
}

func TestFindPathLimit(t *testing.T) {
	g := newTestGrid(t, blockFunc(wall))
	from, to := mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{8.5, 0, 0.5}

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"two", 2, 2},
		{"one_still_gives_segment", 1, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path, ok := g.FindPathLimit(from, to, c.limit)
			if !ok {
				t.Fatal("expected a path")
			}
			if len(path) != c.want {
				t.Fatalf("expected %d points, got %v", c.want, path)
			}
			if path[0] != from || path[1] == to {
				t.Fatalf("expected leading corner only, got %v", path)
			}
		})
	}

	full, _ := g.FindPathLimit(from, to, 0)
	if full[len(full)-1] != to {
		t.Fatalf("expected unlimited path to reach goal")
	}
}

func TestPruneCollinear(t *testing.T) {
	cases := []struct {
		name string
		in   []mgl64.Vec3
		want int
	}{
		{"straight", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}, 2},
		{"l_shape", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {2, 0, 1}, {2, 0, 2}}, 3},
		{"backtrack_kept", []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}, {1, 0, 0}}, 3},
		{"short", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := pruneCollinear(c.in); len(got) != c.want {
				t.Fatalf("expected %d points, got %v", c.want, got)
			}
		})
	}
}

func TestGridFromPhysicsWorld(t *testing.T) {
	w := physics.NewWorld(nil)
	if _, err := w.AddBox(1, mgl64.Vec3{5, 0, 5}, mgl64.Vec3{1, 1, 1}, steering.StaticFilter); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddCapsule(2, mgl64.Vec3{3, 0, 5}, steering.Capsule{Radius: 0.5}, steering.CharacterFilter, true); err != nil {
		t.Fatal(err)
	}

	g, err := NewGrid(Config{Max: mgl64.Vec3{10, 0, 10}}, w, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Walkable(mgl64.Vec3{5, 0, 5}) {
		t.Fatal("expected box cell blocked")
	}
	if !g.Walkable(mgl64.Vec3{3, 0, 5}) {
		t.Fatal("characters should not block the grid")
	}

	path, ok := g.FindPath(mgl64.Vec3{1, 0, 5}, mgl64.Vec3{9, 0, 5})
	if !ok || len(path) < 3 {
		t.Fatalf("expected a path around the box, got %v ok=%v", path, ok)
	}
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		for s := 0.0; s <= 1; s += 0.01 {
			p := a.Add(b.Sub(a).Mul(s))
			if math.Abs(p.X()-5) < 1 && math.Abs(p.Z()-5) < 1 {
				t.Fatalf("path enters box at %v: %v", p, path)
			}
		}
	}

	var _ steering.PathFinder = g
}
