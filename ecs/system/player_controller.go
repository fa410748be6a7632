package system

import (
	"github.com/charmbracelet/log"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/steering"
)

// PlayerControllerSystem turns move orders into paths and follows them in
// direct mode, halting on arrival or when no path exists.
type PlayerControllerSystem struct {
	finder steering.PathFinder
	logger *log.Logger
}

func NewPlayerControllerSystem(finder steering.PathFinder, logger *log.Logger) *PlayerControllerSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &PlayerControllerSystem{finder: finder, logger: logger.WithPrefix("player")}
}

func (pc *PlayerControllerSystem) Update(w *ecs.World) {
	if pc == nil || w == nil {
		return
	}

	ecs.ForEach3(w, component.MoveOrderComponent.Kind(), component.LocomotionComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(e ecs.Entity, order *component.MoveOrder, loc *component.Locomotion, body *component.PhysicsBody) {
		if loc.Steering == nil {
			return
		}
		if order.Pending {
			order.Pending = false
			if requestPath(w, e, loc, body, pc.finder, order.Destination, order.MaxPathPoints, pc.logger) {
				pc.logger.Debug("move order", "entity", e, "to", order.Destination, "waypoints", len(loc.Steering.Path()))
			}
		}
		if !loc.Navigating {
			return
		}
		loc.Steering.SetMaxSpeed(loc.RunSpeed)
		loc.Steering.FollowDirect(order.Strength)
	})
}
