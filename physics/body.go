package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/pathsteer/steering"
)

// Body is a registered shape. It satisfies steering.Character so agents can
// be steered directly against the space they live in.
type Body struct {
	id    uint64
	world *World
	body  *cp.Body
	shape *cp.Shape
	y     float64

	capsule   steering.Capsule
	isCapsule bool
	extents   mgl64.Vec3
	category  steering.CollisionMask

	velocity mgl64.Vec3
}

func (b *Body) ID() uint64 {
	return b.id
}

func (b *Body) Position() mgl64.Vec3 {
	return fromSpace(b.body.Position(), b.y)
}

// SetPosition moves the body. The shape is removed and re-added so the
// space's spatial index picks up its new bounds.
func (b *Body) SetPosition(p mgl64.Vec3) {
	b.y = p.Y()
	b.body.SetPosition(toSpace(p))
	if space := b.shape.Space(); space != nil {
		space.RemoveShape(b.shape)
		space.AddShape(b.shape)
	}
}

func (b *Body) Capsule() (steering.Capsule, bool) {
	return b.capsule, b.isCapsule
}

// HalfExtents is zero for capsules.
func (b *Body) HalfExtents() mgl64.Vec3 {
	return b.extents
}

func (b *Body) Category() steering.CollisionMask {
	return b.category
}

func (b *Body) Velocity() mgl64.Vec3 {
	return b.velocity
}

func (b *Body) SetVelocity(v mgl64.Vec3) {
	b.velocity = v
}

// Moving reports whether the body is kinematic.
func (b *Body) Moving() bool {
	return b.body.GetType() == cp.BODY_KINEMATIC
}

// Step advances a moving body by its velocity.
func (b *Body) Step(dt float64) {
	if !b.Moving() || dt <= 0 {
		return
	}
	b.SetPosition(b.Position().Add(b.velocity.Mul(dt)))
}
