package system

import (
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/steering"
)

const patrolRetryTicks = 30

// PatrolSystem sends idle patrolling agents to their next destination.
type PatrolSystem struct {
	finder   steering.PathFinder
	logger   *log.Logger
	cooldown map[ecs.Entity]int
}

func NewPatrolSystem(finder steering.PathFinder, logger *log.Logger) *PatrolSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &PatrolSystem{
		finder:   finder,
		logger:   logger.WithPrefix("patrol"),
		cooldown: map[ecs.Entity]int{},
	}
}

func (ps *PatrolSystem) Update(w *ecs.World) {
	if ps == nil || w == nil {
		return
	}

	ecs.ForEach3(w, component.PatrolComponent.Kind(), component.LocomotionComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(e ecs.Entity, patrol *component.Patrol, loc *component.Locomotion, body *component.PhysicsBody) {
		if patrol.Paused || loc.Navigating || len(patrol.Destinations) == 0 {
			return
		}
		if ps.cooldown[e] > 0 {
			ps.cooldown[e]--
			return
		}

		dest := nextDestination(patrol)
		if requestPath(w, e, loc, body, ps.finder, dest, 0, ps.logger) {
			ps.logger.Debug("walking", "entity", e, "to", dest, "index", patrol.Index)
			delete(ps.cooldown, e)
			return
		}
		ps.cooldown[e] = patrolRetryTicks
	})
}

// nextDestination walks the shuffled order and reshuffles when it wraps.
func nextDestination(p *component.Patrol) mgl64.Vec3 {
	n := len(p.Destinations)
	if len(p.Order) != n || p.Index >= n {
		p.Order = shuffledOrder(p, n)
		p.Index = 0
	}
	dest := p.Destinations[p.Order[p.Index]]
	p.Index++
	return dest
}

func shuffledOrder(p *component.Patrol, n int) []int {
	if p.Rand == nil {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	return p.Rand.Perm(n)
}
