package system

import (
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/steering"
)

const DefaultTimeStep = 1.0 / 60.0

// MovementSystem integrates agent velocities into the physics world and
// refreshes the locomotion signals.
type MovementSystem struct {
	dt float64
}

func NewMovementSystem(dt float64) *MovementSystem {
	if dt <= 0 {
		dt = DefaultTimeStep
	}
	return &MovementSystem{dt: dt}
}

func (ms *MovementSystem) Update(w *ecs.World) {
	if ms == nil || w == nil {
		return
	}

	ecs.ForEach2(w, component.PhysicsBodyComponent.Kind(), component.LocomotionComponent.Kind(), func(e ecs.Entity, body *component.PhysicsBody, loc *component.Locomotion) {
		if body.Body == nil {
			return
		}
		body.Body.Step(ms.dt)

		v := body.Body.Velocity()
		maxRun := loc.MaxRunSpeed
		if maxRun <= 0 {
			maxRun = component.DefaultMaxRunSpeed
		}
		loc.SpeedFraction = steering.SpeedFraction(v, maxRun)
		if yaw, ok := steering.Yaw(v); ok {
			loc.Yaw = yaw
		}
	})
}
