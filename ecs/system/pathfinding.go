package system

import (
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/steering"
)

type limitedPathFinder interface {
	FindPathLimit(from, to mgl64.Vec3, maxPoints int) ([]mgl64.Vec3, bool)
}

// requestPath asks finder for a route and hands it to the agent's steering.
// On failure the agent is halted and a path_failed event is queued.
func requestPath(w *ecs.World, e ecs.Entity, loc *component.Locomotion, body *component.PhysicsBody, finder steering.PathFinder, to mgl64.Vec3, maxPoints int, logger *log.Logger) bool {
	if loc == nil || loc.Steering == nil || body == nil || body.Body == nil {
		return false
	}
	from := body.Body.Position()

	var path []mgl64.Vec3
	ok := false
	if finder != nil {
		if lf, limited := finder.(limitedPathFinder); limited && maxPoints > 0 {
			path, ok = lf.FindPathLimit(from, to, maxPoints)
		} else {
			path, ok = finder.FindPath(from, to)
		}
	}

	if !ok || len(path) < 2 {
		loc.Steering.ClearPath()
		loc.Steering.Halt()
		loc.Navigating = false
		w.Events().Push(ecs.Event{Entity: e, Type: ecs.EventPathFailed, Data: to})
		logger.Warn("path failed", "entity", e, "from", from, "to", to)
		return false
	}

	loc.Steering.SetPath(path)
	loc.Navigating = true
	w.Events().Push(ecs.Event{Entity: e, Type: ecs.EventPathAssigned, Data: to})
	return true
}

// NavigationSystem notices agents that finished their path and queues a
// destination_reached event for them.
type NavigationSystem struct {
	logger *log.Logger
}

func NewNavigationSystem(logger *log.Logger) *NavigationSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &NavigationSystem{logger: logger.WithPrefix("nav")}
}

func (ns *NavigationSystem) Update(w *ecs.World) {
	if ns == nil || w == nil {
		return
	}

	ecs.ForEach(w, component.LocomotionComponent.Kind(), func(e ecs.Entity, loc *component.Locomotion) {
		if !loc.Navigating || loc.Steering == nil || !loc.Steering.ReachedDestination() {
			return
		}
		loc.Navigating = false
		w.Events().Push(ecs.Event{Entity: e, Type: ecs.EventDestinationReached})
		ns.logger.Debug("destination reached", "entity", e)
	})
}
