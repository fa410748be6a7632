package system

import (
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/physics"
	"github.com/milk9111/pathsteer/steering"
)

// BrainSystem runs each agent's script once per tick. The script requests
// behaviors through the engine map; their forces are summed and applied
// together with obstacle avoidance.
type BrainSystem struct {
	finder   steering.PathFinder
	logger   *log.Logger
	runtimes map[ecs.Entity]*brainRuntime
	failed   map[ecs.Entity]string
}

func NewBrainSystem(finder steering.PathFinder, logger *log.Logger) *BrainSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &BrainSystem{
		finder:   finder,
		logger:   logger.WithPrefix("brain"),
		runtimes: map[ecs.Entity]*brainRuntime{},
		failed:   map[ecs.Entity]string{},
	}
}

// Reload drops every cached runtime built from script so the next tick
// compiles it again. An empty name reloads everything.
func (bs *BrainSystem) Reload(script string) {
	if bs == nil {
		return
	}
	for e, rt := range bs.runtimes {
		if script == "" || rt.scriptPath == script {
			delete(bs.runtimes, e)
		}
	}
	for e, path := range bs.failed {
		if script == "" || path == script {
			delete(bs.failed, e)
		}
	}
}

// StateValue exposes a value from an agent's script state.
func (bs *BrainSystem) StateValue(e ecs.Entity, key string) any {
	if bs == nil {
		return nil
	}
	return bs.runtimes[e].stateValue(key)
}

type brainContext struct {
	world  *ecs.World
	entity ecs.Entity
	loc    *component.Locomotion
	body   *physics.Body
	player *physics.Body
	finder steering.PathFinder
	logger *log.Logger
	rt     *brainRuntime

	events   map[string]bool
	force    mgl64.Vec3
	behavior string
	halted   bool
}

func (bs *BrainSystem) Update(w *ecs.World) {
	if bs == nil || w == nil {
		return
	}

	player := playerBody(w)
	events := map[ecs.Entity]map[string]bool{}
	for _, ev := range w.Events().Peek() {
		if events[ev.Entity] == nil {
			events[ev.Entity] = map[string]bool{}
		}
		events[ev.Entity][string(ev.Type)] = true
	}

	ecs.ForEach3(w, component.BrainComponent.Kind(), component.LocomotionComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(e ecs.Entity, brain *component.Brain, loc *component.Locomotion, body *component.PhysicsBody) {
		if loc.Steering == nil || body.Body == nil {
			return
		}
		rt, ok := bs.runtime(e, brain.Script)
		if !ok {
			return
		}

		loc.Steering.SetMaxSpeed(loc.RunSpeed)
		ctx := &brainContext{
			world:  w,
			entity: e,
			loc:    loc,
			body:   body.Body,
			player: player,
			finder: bs.finder,
			logger: bs.logger,
			rt:     rt,
			events: events[e],
		}
		if ctx.events == nil {
			ctx.events = map[string]bool{}
		}

		state, err := rt.step(brain.State, buildBrainEngine(ctx))
		brain.State = state
		if err != nil {
			bs.logger.Error("script error", "entity", e, "script", brain.Script, "err", err)
			bs.failed[e] = brain.Script
			delete(bs.runtimes, e)
			return
		}
		if ctx.behavior != "" {
			brain.Behavior = ctx.behavior
		}
		if ctx.halted {
			return
		}
		body.Body.SetVelocity(loc.Steering.Drive(ctx.force))
	})
}

func (bs *BrainSystem) runtime(e ecs.Entity, script string) (*brainRuntime, bool) {
	if rt, ok := bs.runtimes[e]; ok && rt.scriptPath == script {
		return rt, true
	}
	if path, ok := bs.failed[e]; ok && path == script {
		return nil, false
	}

	rt, err := compileBrain(script)
	if err != nil {
		bs.logger.Error("load brain", "entity", e, "err", err)
		bs.failed[e] = script
		return nil, false
	}
	bs.runtimes[e] = rt
	bs.logger.Debug("brain loaded", "entity", e, "script", script, "initial", rt.initial)
	return rt, true
}

func playerBody(w *ecs.World) *physics.Body {
	player, ok := ecs.First(w, component.PlayerTagComponent.Kind())
	if !ok {
		return nil
	}
	pb, ok := ecs.Get(w, player, component.PhysicsBodyComponent.Kind())
	if !ok {
		return nil
	}
	return pb.Body
}

func vecObject(v mgl64.Vec3) tengo.Object {
	return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: v.X()}, &tengo.Float{Value: v.Y()}, &tengo.Float{Value: v.Z()}}}
}

func boolObject(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

// groundPoint reads an (x, z) pair at the agent's height.
func (ctx *brainContext) groundPoint(args []tengo.Object) (mgl64.Vec3, bool) {
	if len(args) < 2 {
		return mgl64.Vec3{}, false
	}
	x, ok := objectAsFloat(args[0])
	if !ok {
		return mgl64.Vec3{}, false
	}
	z, ok := objectAsFloat(args[1])
	if !ok {
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{x, ctx.body.Position().Y(), z}, true
}

func (ctx *brainContext) add(behavior string, force mgl64.Vec3) {
	ctx.force = ctx.force.Add(force)
	ctx.behavior = behavior
	ctx.halted = false
}

func buildBrainEngine(ctx *brainContext) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}
	s := ctx.loc.Steering

	values["transition"] = &tengo.UserFunction{Name: "transition", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		name := strings.TrimSpace(objectAsString(args[0]))
		if name == "" {
			return tengo.FalseValue, nil
		}
		ctx.rt.pending = name
		return tengo.TrueValue, nil
	}}

	values["event"] = &tengo.UserFunction{Name: "event", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		return boolObject(ctx.events[strings.TrimSpace(objectAsString(args[0]))]), nil
	}}

	values["consume_event"] = &tengo.UserFunction{Name: "consume_event", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		name := strings.TrimSpace(objectAsString(args[0]))
		if !ctx.events[name] {
			return tengo.FalseValue, nil
		}
		delete(ctx.events, name)
		return tengo.TrueValue, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		ctx.logger.Info(strings.Join(parts, " "), "entity", ctx.entity)
		return tengo.UndefinedValue, nil
	}}

	values["get_position"] = &tengo.UserFunction{Name: "get_position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return vecObject(ctx.body.Position()), nil
	}}

	values["get_velocity"] = &tengo.UserFunction{Name: "get_velocity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return vecObject(ctx.body.Velocity()), nil
	}}

	values["get_player_position"] = &tengo.UserFunction{Name: "get_player_position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if ctx.player == nil {
			return tengo.UndefinedValue, nil
		}
		return vecObject(ctx.player.Position()), nil
	}}

	values["distance_to_player"] = &tengo.UserFunction{Name: "distance_to_player", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if ctx.player == nil || ctx.player.ID() == ctx.body.ID() {
			return &tengo.Float{Value: -1}, nil
		}
		return &tengo.Float{Value: ctx.player.Position().Sub(ctx.body.Position()).Len()}, nil
	}}

	values["seek"] = &tengo.UserFunction{Name: "seek", Value: func(args ...tengo.Object) (tengo.Object, error) {
		target, ok := ctx.groundPoint(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		ctx.add("seek", s.Seek(target))
		return tengo.TrueValue, nil
	}}

	values["flee"] = &tengo.UserFunction{Name: "flee", Value: func(args ...tengo.Object) (tengo.Object, error) {
		target, ok := ctx.groundPoint(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		ctx.add("flee", s.Flee(target, ctx.body.Position()))
		return tengo.TrueValue, nil
	}}

	values["arrive"] = &tengo.UserFunction{Name: "arrive", Value: func(args ...tengo.Object) (tengo.Object, error) {
		target, ok := ctx.groundPoint(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		v := s.SeekAndArrive(target, s.Config().Follow.ArriveRadius, 0)
		ctx.add("arrive", v.Sub(ctx.body.Velocity()))
		return tengo.TrueValue, nil
	}}

	values["wander"] = &tengo.UserFunction{Name: "wander", Value: func(args ...tengo.Object) (tengo.Object, error) {
		ctx.add("wander", s.Wander(ctx.body.Velocity()))
		return tengo.TrueValue, nil
	}}

	values["pursue_player"] = &tengo.UserFunction{Name: "pursue_player", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if ctx.player == nil {
			return tengo.FalseValue, nil
		}
		ctx.add("pursue", s.Pursue(ctx.player))
		return tengo.TrueValue, nil
	}}

	values["evade_player"] = &tengo.UserFunction{Name: "evade_player", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if ctx.player == nil {
			return tengo.FalseValue, nil
		}
		ctx.add("evade", s.Evade(ctx.player, ctx.body.Position()))
		return tengo.TrueValue, nil
	}}

	values["follow_path"] = &tengo.UserFunction{Name: "follow_path", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if !s.Follower().Active() || s.ReachedDestination() {
			return tengo.FalseValue, nil
		}
		ctx.add("follow", s.FollowPath())
		return tengo.TrueValue, nil
	}}

	values["set_destination"] = &tengo.UserFunction{Name: "set_destination", Value: func(args ...tengo.Object) (tengo.Object, error) {
		target, ok := ctx.groundPoint(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		body := &component.PhysicsBody{Body: ctx.body}
		return boolObject(requestPath(ctx.world, ctx.entity, ctx.loc, body, ctx.finder, target, 0, ctx.logger)), nil
	}}

	values["has_path"] = &tengo.UserFunction{Name: "has_path", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return boolObject(s.Follower().Active() && !s.ReachedDestination()), nil
	}}

	values["clear_path"] = &tengo.UserFunction{Name: "clear_path", Value: func(args ...tengo.Object) (tengo.Object, error) {
		s.ClearPath()
		ctx.loc.Navigating = false
		return tengo.TrueValue, nil
	}}

	values["halt"] = &tengo.UserFunction{Name: "halt", Value: func(args ...tengo.Object) (tengo.Object, error) {
		s.Halt()
		ctx.loc.Navigating = false
		ctx.force = mgl64.Vec3{}
		ctx.behavior = "halt"
		ctx.halted = true
		return tengo.TrueValue, nil
	}}

	values["set_max_speed"] = &tengo.UserFunction{Name: "set_max_speed", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		v, ok := objectAsFloat(args[0])
		if !ok || v < 0 || math.IsNaN(v) {
			return tengo.FalseValue, nil
		}
		ctx.loc.RunSpeed = v
		s.SetMaxSpeed(v)
		return tengo.TrueValue, nil
	}}

	values["patrol"] = &tengo.UserFunction{Name: "patrol", Value: func(args ...tengo.Object) (tengo.Object, error) {
		p, ok := ecs.Get(ctx.world, ctx.entity, component.PatrolComponent.Kind())
		if !ok {
			return tengo.FalseValue, nil
		}
		p.Paused = len(args) > 0 && args[0].IsFalsy()
		return tengo.TrueValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}
