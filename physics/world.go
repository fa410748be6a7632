// Package physics maps the ground plane onto a Chipmunk space. World X maps
// to space X and world Z maps to space Y; height is carried alongside.
package physics

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/pathsteer/steering"
)

var (
	ErrDuplicateBody = errors.New("physics: body id already registered")
	ErrInvalidShape  = errors.New("physics: shape dimensions must be positive")
)

// World owns the Chipmunk space and every registered body.
type World struct {
	space  *cp.Space
	bodies map[uint64]*Body
	logger *log.Logger
}

func NewWorld(logger *log.Logger) *World {
	if logger == nil {
		logger = log.Default()
	}
	space := cp.NewSpace()
	space.Iterations = 10
	return &World{
		space:  space,
		bodies: make(map[uint64]*Body),
		logger: logger.WithPrefix("physics"),
	}
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	if w == nil {
		return nil
	}
	return w.space
}

func (w *World) Body(id uint64) (*Body, bool) {
	if w == nil {
		return nil, false
	}
	b, ok := w.bodies[id]
	return b, ok
}

// Bodies returns every registered body in no particular order.
func (w *World) Bodies() []*Body {
	out := make([]*Body, 0, len(w.bodies))
	for _, b := range w.bodies {
		out = append(out, b)
	}
	return out
}

// AddCapsule registers an upright capsule. Moving capsules get a kinematic
// body so they can be repositioned every tick; others are static.
func (w *World) AddCapsule(id uint64, pos mgl64.Vec3, c steering.Capsule, category steering.CollisionMask, moving bool) (*Body, error) {
	if c.Radius <= 0 {
		return nil, fmt.Errorf("%w: capsule radius %v", ErrInvalidShape, c.Radius)
	}
	if _, ok := w.bodies[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateBody, id)
	}

	var body *cp.Body
	if moving {
		body = cp.NewKinematicBody()
	} else {
		body = cp.NewStaticBody()
	}
	body.SetPosition(toSpace(pos))
	shape := cp.NewCircle(body, c.Radius, cp.Vector{})

	b := &Body{
		id:        id,
		world:     w,
		body:      body,
		shape:     shape,
		y:         pos.Y(),
		capsule:   c,
		isCapsule: true,
		category:  category,
	}
	w.attach(b)
	w.logger.Debug("capsule added", "id", id, "radius", c.Radius, "moving", moving)
	return b, nil
}

// AddBox registers a static box obstacle. halfExtents uses X and Z.
func (w *World) AddBox(id uint64, center, halfExtents mgl64.Vec3, category steering.CollisionMask) (*Body, error) {
	if halfExtents.X() <= 0 || halfExtents.Z() <= 0 {
		return nil, fmt.Errorf("%w: box half extents %v", ErrInvalidShape, halfExtents)
	}
	if _, ok := w.bodies[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateBody, id)
	}

	body := cp.NewStaticBody()
	body.SetPosition(toSpace(center))
	shape := cp.NewBox(body, halfExtents.X()*2, halfExtents.Z()*2, 0)

	b := &Body{
		id:       id,
		world:    w,
		body:     body,
		shape:    shape,
		y:        center.Y(),
		extents:  halfExtents,
		category: category,
	}
	w.attach(b)
	w.logger.Debug("box added", "id", id, "extents", halfExtents)
	return b, nil
}

func (w *World) attach(b *Body) {
	b.shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, uint(b.category), cp.ALL_CATEGORIES))
	b.shape.UserData = b
	w.space.AddBody(b.body)
	w.space.AddShape(b.shape)
	w.bodies[b.id] = b
}

// Remove drops a body; unknown ids are ignored.
func (w *World) Remove(id uint64) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	w.space.RemoveShape(b.shape)
	w.space.RemoveBody(b.body)
	delete(w.bodies, id)
}

// Sweep moves a circle of the capsule's radius from one pose to the other
// and reports every body touched, including ones already overlapping the
// start pose.
func (w *World) Sweep(shape steering.Capsule, from, to steering.Pose, mask steering.CollisionMask) []steering.Hit {
	if w == nil || w.space == nil || shape.Radius <= 0 {
		return nil
	}

	filter := cp.NewShapeFilter(cp.NO_GROUP, cp.ALL_CATEGORIES, uint(mask))
	start := toSpace(from.Position)
	end := toSpace(to.Position)
	length := end.Distance(start)
	seen := make(map[*cp.Shape]struct{})
	var hits []steering.Hit

	w.space.BBQuery(cp.NewBBForCircle(start, shape.Radius), filter, func(s *cp.Shape, data interface{}) {
		b, ok := s.UserData.(*Body)
		if !ok {
			return
		}
		info := s.PointQuery(start)
		if info.Distance > shape.Radius {
			return
		}
		seen[s] = struct{}{}
		hits = append(hits, steering.Hit{Other: b, Point: fromSpace(info.Point, from.Position.Y()), Distance: 0})
	}, nil)

	if length > 0 {
		w.space.SegmentQuery(start, end, shape.Radius, filter, func(s *cp.Shape, point, normal cp.Vector, alpha float64, data interface{}) {
			if _, dup := seen[s]; dup {
				return
			}
			b, ok := s.UserData.(*Body)
			if !ok {
				return
			}
			seen[s] = struct{}{}
			hits = append(hits, steering.Hit{Other: b, Point: fromSpace(point, from.Position.Y()), Distance: alpha * length})
		}, nil)
	}

	return hits
}

// Blocked reports whether a circle of the given clearance at p overlaps any
// shape in mask.
func (w *World) Blocked(p mgl64.Vec3, clearance float64, mask steering.CollisionMask) bool {
	if w == nil || w.space == nil {
		return false
	}
	filter := cp.NewShapeFilter(cp.NO_GROUP, cp.ALL_CATEGORIES, uint(mask))
	info := w.space.PointQueryNearest(toSpace(p), clearance, filter)
	return info != nil && info.Shape != nil
}

func toSpace(p mgl64.Vec3) cp.Vector {
	return cp.Vector{X: p.X(), Y: p.Z()}
}

func fromSpace(v cp.Vector, y float64) mgl64.Vec3 {
	return mgl64.Vec3{v.X, y, v.Y}
}
