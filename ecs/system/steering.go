package system

import (
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
)

// SteeringSystem drives agents that have neither a brain nor a move order:
// path following plus avoidance, applied as the new velocity.
type SteeringSystem struct{}

func NewSteeringSystem() *SteeringSystem {
	return &SteeringSystem{}
}

func (ss *SteeringSystem) Update(w *ecs.World) {
	if ss == nil || w == nil {
		return
	}

	ecs.ForEach2(w, component.LocomotionComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(e ecs.Entity, loc *component.Locomotion, body *component.PhysicsBody) {
		if loc.Steering == nil || body.Body == nil {
			return
		}
		if ecs.Has(w, e, component.BrainComponent.Kind()) || ecs.Has(w, e, component.MoveOrderComponent.Kind()) {
			return
		}
		loc.Steering.SetMaxSpeed(loc.RunSpeed)
		body.Body.SetVelocity(loc.Steering.Steer())
	})
}
