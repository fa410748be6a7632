package system

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/physics"
	"github.com/milk9111/pathsteer/prefabs"
	"github.com/milk9111/pathsteer/steering"
)

type straightFinder struct{}

func (straightFinder) FindPath(from, to mgl64.Vec3) ([]mgl64.Vec3, bool) {
	return []mgl64.Vec3{from, to}, true
}

type failingFinder struct{}

func (failingFinder) FindPath(from, to mgl64.Vec3) ([]mgl64.Vec3, bool) {
	return nil, false
}

type testAgent struct {
	entity ecs.Entity
	body   *physics.Body
	loc    *component.Locomotion
}

func newTestAgent(t *testing.T, w *ecs.World, pw *physics.World, id uint64, pos mgl64.Vec3, cfg steering.Config) testAgent {
	t.Helper()
	body, err := pw.AddCapsule(id, pos, steering.Capsule{Radius: 0.4, Height: 1.8}, steering.CharacterFilter, true)
	if err != nil {
		t.Fatal(err)
	}
	s, err := steering.New(body, pw, cfg)
	if err != nil {
		t.Fatal(err)
	}
	e := ecs.CreateEntity(w)
	loc := &component.Locomotion{Steering: s, RunSpeed: s.MaxSpeed(), MaxRunSpeed: component.DefaultMaxRunSpeed}
	if err := ecs.Add(w, e, component.LocomotionComponent.Kind(), loc); err != nil {
		t.Fatal(err)
	}
	if err := ecs.Add(w, e, component.PhysicsBodyComponent.Kind(), &component.PhysicsBody{Body: body}); err != nil {
		t.Fatal(err)
	}
	return testAgent{entity: e, body: body, loc: loc}
}

func eventsOf(w *ecs.World, e ecs.Entity, typ ecs.EventType) int {
	n := 0
	for _, ev := range w.Events().Peek() {
		if ev.Entity == e && ev.Type == typ {
			n++
		}
	}
	return n
}

func TestNextDestination(t *testing.T) {
	dests := []mgl64.Vec3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}}

	t.Run("identity_without_rand", func(t *testing.T) {
		p := &component.Patrol{Destinations: dests}
		for round := 0; round < 2; round++ {
			for i := range dests {
				if got := nextDestination(p); got != dests[i] {
					t.Fatalf("round %d: expected %v, got %v", round, dests[i], got)
				}
			}
		}
	})

	t.Run("shuffled_visits_each_once_per_round", func(t *testing.T) {
		p := &component.Patrol{Destinations: dests, Rand: rand.New(rand.NewSource(3))}
		for round := 0; round < 4; round++ {
			seen := map[mgl64.Vec3]bool{}
			for range dests {
				seen[nextDestination(p)] = true
			}
			if len(seen) != len(dests) {
				t.Fatalf("round %d visited %v", round, seen)
			}
		}
	})

	t.Run("order_rebuilt_when_destinations_change", func(t *testing.T) {
		p := &component.Patrol{Destinations: dests}
		nextDestination(p)
		p.Destinations = dests[:1]
		if got := nextDestination(p); got != dests[0] {
			t.Fatalf("expected %v, got %v", dests[0], got)
		}
	})
}

func TestRequestPathFailure(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	a.loc.Steering.SetPath([]mgl64.Vec3{{}, {5, 0, 0}})
	a.loc.Navigating = true
	a.body.SetVelocity(mgl64.Vec3{1, 0, 0})

	ps := NewPatrolSystem(failingFinder{}, nil)
	if err := ecs.Add(w, a.entity, component.PatrolComponent.Kind(), &component.Patrol{Destinations: []mgl64.Vec3{{5, 0, 5}}}); err != nil {
		t.Fatal(err)
	}
	a.loc.Navigating = false
	ps.Update(w)

	if a.body.Velocity() != (mgl64.Vec3{}) {
		t.Fatalf("expected halted agent, got velocity %v", a.body.Velocity())
	}
	if a.loc.Steering.Follower().Active() || a.loc.Navigating {
		t.Fatal("expected path cleared")
	}
	if n := eventsOf(w, a.entity, ecs.EventPathFailed); n != 1 {
		t.Fatalf("expected one path_failed event, got %d", n)
	}

	for i := 0; i < patrolRetryTicks; i++ {
		ps.Update(w)
	}
	if n := eventsOf(w, a.entity, ecs.EventPathFailed); n != 1 {
		t.Fatalf("expected retry to wait for cooldown, got %d events", n)
	}
	ps.Update(w)
	if n := eventsOf(w, a.entity, ecs.EventPathFailed); n != 2 {
		t.Fatalf("expected retry after cooldown, got %d events", n)
	}
}

func TestNavigationSystemReportsArrival(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})

	ns := NewNavigationSystem(nil)
	if !requestPath(w, a.entity, a.loc, &component.PhysicsBody{Body: a.body}, straightFinder{}, mgl64.Vec3{4, 0, 0}, 0, ns.logger) {
		t.Fatal("expected path")
	}
	if n := eventsOf(w, a.entity, ecs.EventPathAssigned); n != 1 {
		t.Fatalf("expected path_assigned, got %d", n)
	}

	ns.Update(w)
	if n := eventsOf(w, a.entity, ecs.EventDestinationReached); n != 0 {
		t.Fatal("arrival reported early")
	}

	a.loc.Steering.Follower().Complete()
	ns.Update(w)
	ns.Update(w)
	if n := eventsOf(w, a.entity, ecs.EventDestinationReached); n != 1 {
		t.Fatalf("expected a single arrival event, got %d", n)
	}
	if a.loc.Navigating {
		t.Fatal("expected navigation cleared")
	}
}

func TestPlayerControllerReachesOrder(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	cfg := steering.Config{Follow: steering.FollowConfig{Mode: steering.FollowDirect}}
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, cfg)
	goal := mgl64.Vec3{2, 0, 1}
	order := &component.MoveOrder{Destination: goal, Strength: 1, Pending: true}
	if err := ecs.Add(w, a.entity, component.MoveOrderComponent.Kind(), order); err != nil {
		t.Fatal(err)
	}

	sched := ecs.NewScheduler(
		NewNavigationSystem(nil),
		NewPlayerControllerSystem(straightFinder{}, nil),
		NewSteeringSystem(),
		NewMovementSystem(DefaultTimeStep),
	)
	for i := 0; i < 600 && (order.Pending || a.loc.Navigating); i++ {
		sched.Update(w)
	}

	if a.loc.Navigating || order.Pending {
		t.Fatal("expected order to finish")
	}
	if d := a.body.Position().Sub(goal).Len(); d > 0.25 {
		t.Fatalf("stopped %v from goal at %v", d, a.body.Position())
	}
	if a.body.Velocity() != (mgl64.Vec3{}) {
		t.Fatalf("expected halt on arrival, got %v", a.body.Velocity())
	}
}

func TestPlayerControllerFailedOrderHalts(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	a.body.SetVelocity(mgl64.Vec3{0, 0, 1})
	if err := ecs.Add(w, a.entity, component.MoveOrderComponent.Kind(), &component.MoveOrder{Destination: mgl64.Vec3{3, 0, 0}, Pending: true}); err != nil {
		t.Fatal(err)
	}

	NewPlayerControllerSystem(failingFinder{}, nil).Update(w)
	if a.body.Velocity() != (mgl64.Vec3{}) {
		t.Fatalf("expected halt, got %v", a.body.Velocity())
	}
	if n := eventsOf(w, a.entity, ecs.EventPathFailed); n != 1 {
		t.Fatalf("expected path_failed, got %d", n)
	}
}

func TestSteeringSystemFollowsPath(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	walker := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	walker.loc.Steering.SetPath([]mgl64.Vec3{{}, {5, 0, 0}})

	scripted := newTestAgent(t, w, pw, 2, mgl64.Vec3{0, 0, 10}, steering.Config{})
	scripted.loc.Steering.SetPath([]mgl64.Vec3{{0, 0, 10}, {5, 0, 10}})
	if err := ecs.Add(w, scripted.entity, component.BrainComponent.Kind(), &component.Brain{}); err != nil {
		t.Fatal(err)
	}

	NewSteeringSystem().Update(w)
	if v := walker.body.Velocity(); v.X() <= 0 {
		t.Fatalf("expected walker to head +X, got %v", v)
	}
	if v := scripted.body.Velocity(); v != (mgl64.Vec3{}) {
		t.Fatalf("brain agents are driven elsewhere, got %v", v)
	}
}

func TestMovementSignals(t *testing.T) {
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	a.body.SetVelocity(mgl64.Vec3{0, 0, 5})

	NewMovementSystem(0.5).Update(w)

	if got := a.body.Position(); got != (mgl64.Vec3{0, 0, 2.5}) {
		t.Fatalf("unexpected position %v", got)
	}
	if math.Abs(a.loc.SpeedFraction-0.5) > 1e-9 {
		t.Fatalf("expected speed fraction 0.5, got %v", a.loc.SpeedFraction)
	}
	want, _ := steering.Yaw(mgl64.Vec3{0, 0, 5})
	if a.loc.Yaw != want {
		t.Fatalf("expected yaw %v, got %v", want, a.loc.Yaw)
	}

	a.body.SetVelocity(mgl64.Vec3{})
	NewMovementSystem(0.5).Update(w)
	if a.loc.Yaw != want {
		t.Fatal("yaw should hold while stopped")
	}
}

func writeScript(t *testing.T, name, src string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", name+".tengo"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	prev := prefabs.Dir
	prefabs.Dir = dir
	t.Cleanup(func() { prefabs.Dir = prev })
}

const lifecycleScript = `
initial_state := "a"

onEnter := func(engine, state, current) {
	if is_undefined(state.enters) {
		state.enters = 0
	}
	state.enters = state.enters + 1
}

update := func(engine, state, current) {
	if current == "a" {
		engine.seek(5, 0)
		engine.transition("b")
	} else {
		engine.halt()
	}
}

onExit := func(engine, state, current) {
	state.exited = current
}
`

func TestBrainSystemLifecycle(t *testing.T) {
	writeScript(t, "lifecycle", lifecycleScript)
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	brain := &component.Brain{Script: "lifecycle"}
	if err := ecs.Add(w, a.entity, component.BrainComponent.Kind(), brain); err != nil {
		t.Fatal(err)
	}

	bs := NewBrainSystem(straightFinder{}, nil)
	bs.Update(w)

	if brain.State != "b" || brain.Behavior != "seek" {
		t.Fatalf("unexpected brain %+v", brain)
	}
	if got := bs.StateValue(a.entity, "enters"); got != 2 {
		t.Fatalf("expected two enters, got %v", got)
	}
	if got := bs.StateValue(a.entity, "exited"); got != "a" {
		t.Fatalf("expected exit from a, got %v", got)
	}
	if v := a.body.Velocity(); v.X() <= 0 || v.Len() > steering.DefaultMaxSteer+1e-9 {
		t.Fatalf("expected one bounded step toward +X, got %v", v)
	}

	bs.Update(w)
	if brain.Behavior != "halt" || a.body.Velocity() != (mgl64.Vec3{}) {
		t.Fatalf("expected halt, got %+v velocity %v", brain, a.body.Velocity())
	}
}

const eventScript = `
update := func(engine, state, current) {
	if engine.consume_event("path_failed") {
		state.failed = true
	}
	if is_undefined(state.asked) {
		state.asked = engine.set_destination(9, 9)
	}
}

onEnter := func(engine, state, current) {}
onExit := func(engine, state, current) {}
`

func TestBrainSystemSeesEvents(t *testing.T) {
	writeScript(t, "events", eventScript)
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	brain := &component.Brain{Script: "events"}
	if err := ecs.Add(w, a.entity, component.BrainComponent.Kind(), brain); err != nil {
		t.Fatal(err)
	}

	sched := ecs.NewScheduler(NewBrainSystem(failingFinder{}, nil))
	bs := sched.Systems()[0].(*BrainSystem)

	sched.Update(w)
	if brain.State != defaultBrainState {
		t.Fatalf("expected default state, got %q", brain.State)
	}
	if got := bs.StateValue(a.entity, "asked"); got != false {
		t.Fatalf("expected failed request, got %v", got)
	}
	if got := bs.StateValue(a.entity, "failed"); got != nil {
		t.Fatalf("event seen before it was queued: %v", got)
	}

	w.Events().Push(ecs.Event{Entity: a.entity, Type: ecs.EventPathFailed})
	sched.Update(w)
	if got := bs.StateValue(a.entity, "failed"); got != true {
		t.Fatalf("expected failure observed, got %v", got)
	}
}

func TestBrainSystemScriptErrors(t *testing.T) {
	writeScript(t, "broken", `
update := func(engine, state, current) {
	x := 1 / 0
}
onEnter := func(engine, state, current) {}
onExit := func(engine, state, current) {}
`)
	w := ecs.NewWorld()
	pw := physics.NewWorld(nil)
	a := newTestAgent(t, w, pw, 1, mgl64.Vec3{}, steering.Config{})
	if err := ecs.Add(w, a.entity, component.BrainComponent.Kind(), &component.Brain{Script: "broken"}); err != nil {
		t.Fatal(err)
	}
	missing := newTestAgent(t, w, pw, 2, mgl64.Vec3{5, 0, 5}, steering.Config{})
	if err := ecs.Add(w, missing.entity, component.BrainComponent.Kind(), &component.Brain{Script: "does_not_exist"}); err != nil {
		t.Fatal(err)
	}

	bs := NewBrainSystem(nil, nil)
	bs.Update(w)
	bs.Update(w)

	if _, ok := bs.failed[a.entity]; !ok {
		t.Fatal("expected broken script remembered")
	}
	if _, ok := bs.failed[missing.entity]; !ok {
		t.Fatal("expected missing script remembered")
	}
	if len(bs.runtimes) != 0 {
		t.Fatalf("expected no cached runtimes, got %d", len(bs.runtimes))
	}

	bs.Reload("broken")
	if _, ok := bs.failed[a.entity]; ok {
		t.Fatal("expected reload to forget the failure")
	}
	if _, ok := bs.failed[missing.entity]; !ok {
		t.Fatal("reload should only touch the named script")
	}
}

func TestBrainRuntimeFaultsBecomeErrors(t *testing.T) {
	writeScript(t, "faulty", `
update := func(engine, state, current) {
	zero := 0
	x := 1 / zero
}
onEnter := func(engine, state, current) {}
onExit := func(engine, state, current) {}
`)
	rt, err := compileBrain("faulty")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for i := 0; i < 2; i++ {
		current, err := rt.step("", nil)
		if err == nil {
			t.Fatalf("step %d: expected error from division by zero", i)
		}
		if current != defaultBrainState {
			t.Fatalf("step %d: expected state %q kept, got %q", i, defaultBrainState, current)
		}
	}
	if !rt.initialized {
		t.Fatal("expected enter to have run before the failing update")
	}
}

func TestBrainScriptsCompile(t *testing.T) {
	prev := prefabs.Dir
	prefabs.Dir = t.TempDir()
	t.Cleanup(func() { prefabs.Dir = prev })

	for _, name := range []string{"guard", "skittish", "courier"} {
		t.Run(name, func(t *testing.T) {
			rt, err := compileBrain(name)
			if err != nil {
				t.Fatal(err)
			}
			if rt.initial == defaultBrainState {
				t.Fatalf("expected %s to name its initial state", name)
			}
		})
	}
}
