// Package sim assembles a scenario into a running scene: physics space,
// navigation grid, agents and the per-tick system order.
package sim

import (
	"errors"
	"fmt"
	"image/color"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/ecs"
	"github.com/milk9111/pathsteer/ecs/component"
	"github.com/milk9111/pathsteer/ecs/system"
	"github.com/milk9111/pathsteer/nav"
	"github.com/milk9111/pathsteer/physics"
	"github.com/milk9111/pathsteer/prefabs"
	"github.com/milk9111/pathsteer/steering"
)

const DefaultTickRate = 60.0

var ErrNoPlayer = errors.New("sim: scene has no player")

type Agent struct {
	Name   string
	Entity ecs.Entity
	Body   *physics.Body
	Color  color.NRGBA
	Player bool
}

type Obstacle struct {
	Name  string
	Body  *physics.Body
	Color color.NRGBA
}

type scheduledOrder struct {
	tick  int
	order component.MoveOrder
}

// Scene owns everything a scenario needs to tick.
type Scene struct {
	spec      prefabs.ScenarioSpec
	source    string
	world     *ecs.World
	physics   *physics.World
	grid      *nav.Grid
	scheduler *ecs.Scheduler
	brains    *system.BrainSystem
	events    *EventLog

	agents    []*Agent
	obstacles []*Obstacle
	player    *Agent
	orders    []scheduledOrder

	tick   int
	dt     float64
	root   *log.Logger
	logger *log.Logger
}

// Load reads a scenario through prefabs and builds it.
func Load(name string, logger *log.Logger) (*Scene, error) {
	spec, err := prefabs.LoadScenario(name)
	if err != nil {
		return nil, err
	}
	s, err := New(spec, logger)
	if err != nil {
		return nil, err
	}
	s.source = name
	return s, nil
}

func New(spec prefabs.ScenarioSpec, logger *log.Logger) (*Scene, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	rate := spec.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}

	s := &Scene{
		spec:    spec,
		world:   ecs.NewWorld(),
		physics: physics.NewWorld(logger),
		events:  NewEventLog(logger, defaultEventLogSize),
		dt:      1 / rate,
		root:    logger,
		logger:  logger.WithPrefix("sim"),
	}

	var nextID uint64 = 1
	for _, o := range spec.Obstacles {
		obstacle, err := s.addObstacle(nextID, o)
		if err != nil {
			return nil, err
		}
		s.obstacles = append(s.obstacles, obstacle)
		nextID++
	}

	grid, err := nav.NewGrid(spec.Nav, s.physics, logger)
	if err != nil {
		return nil, fmt.Errorf("sim: %s: %w", spec.Name, err)
	}
	s.grid = grid

	for i, a := range spec.Agents {
		agent, err := s.addAgent(nextID, i, a)
		if err != nil {
			return nil, err
		}
		s.agents = append(s.agents, agent)
		nextID++
	}

	s.brains = system.NewBrainSystem(grid, logger)
	s.scheduler = ecs.NewScheduler(
		system.NewNavigationSystem(logger),
		system.NewPatrolSystem(grid, logger),
		system.NewPlayerControllerSystem(grid, logger),
		s.brains,
		system.NewSteeringSystem(),
		system.NewMovementSystem(s.dt),
		s.events,
	)

	s.logger.Info("scene ready", "scenario", spec.Name, "agents", len(s.agents), "obstacles", len(s.obstacles))
	return s, nil
}

func (s *Scene) addObstacle(id uint64, o prefabs.ObstacleSpec) (*Obstacle, error) {
	category := o.Category
	if category == 0 {
		category = steering.StaticFilter
	}

	var (
		body *physics.Body
		err  error
	)
	switch o.Kind {
	case prefabs.ObstacleBox:
		body, err = s.physics.AddBox(id, o.Position, o.HalfExtents, category)
	case prefabs.ObstacleCapsule:
		body, err = s.physics.AddCapsule(id, o.Position, steering.Capsule{Radius: o.Radius}, category, false)
	default:
		err = fmt.Errorf("unknown obstacle kind %q", o.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("sim: obstacle %q: %w", o.Name, err)
	}

	c, _ := prefabs.ParseColor(o.Color)
	return &Obstacle{Name: o.Name, Body: body, Color: c}, nil
}

func (s *Scene) addAgent(id uint64, index int, a prefabs.AgentSpec) (*Agent, error) {
	category := a.Category
	if category == 0 {
		category = steering.CharacterFilter
	}
	body, err := s.physics.AddCapsule(id, a.Position, a.Capsule, category, true)
	if err != nil {
		return nil, fmt.Errorf("sim: agent %q: %w", a.Name, err)
	}

	seed := s.spec.Seed + int64(index)*7919
	st, err := steering.New(body, s.physics, a.Steering,
		steering.WithLogger(s.root.WithPrefix("steering").With("name", a.Name)),
		steering.WithRand(rand.New(rand.NewSource(seed))),
	)
	if err != nil {
		return nil, fmt.Errorf("sim: agent %q: %w", a.Name, err)
	}

	e := ecs.CreateEntity(s.world)
	loc := &component.Locomotion{
		Steering:    st,
		RunSpeed:    runSpeed(a, st),
		MaxRunSpeed: maxRunSpeed(a),
	}
	if err := ecs.Add(s.world, e, component.LocomotionComponent.Kind(), loc); err != nil {
		return nil, err
	}
	if err := ecs.Add(s.world, e, component.PhysicsBodyComponent.Kind(), &component.PhysicsBody{Body: body}); err != nil {
		return nil, err
	}

	c, _ := prefabs.ParseColor(a.Color)
	agent := &Agent{Name: a.Name, Entity: e, Body: body, Color: c}

	if a.Kind == prefabs.AgentPlayer {
		agent.Player = true
		s.player = agent
		if err := ecs.Add(s.world, e, component.PlayerTagComponent.Kind(), &component.PlayerTag{}); err != nil {
			return nil, err
		}
		if err := ecs.Add(s.world, e, component.MoveOrderComponent.Kind(), &component.MoveOrder{}); err != nil {
			return nil, err
		}
		for _, o := range a.Orders {
			s.orders = append(s.orders, scheduledOrder{tick: o.Tick, order: component.MoveOrder{Destination: o.Destination, Strength: o.Strength}})
		}
		return agent, nil
	}

	if err := ecs.Add(s.world, e, component.AITagComponent.Kind(), &component.AITag{Name: a.Name}); err != nil {
		return nil, err
	}
	if len(a.Patrol) > 0 {
		patrol := &component.Patrol{
			Destinations: append([]mgl64.Vec3(nil), a.Patrol...),
			Rand:         rand.New(rand.NewSource(seed + 1)),
		}
		if err := ecs.Add(s.world, e, component.PatrolComponent.Kind(), patrol); err != nil {
			return nil, err
		}
	}
	if a.Brain != "" {
		if err := ecs.Add(s.world, e, component.BrainComponent.Kind(), &component.Brain{Script: a.Brain}); err != nil {
			return nil, err
		}
	}
	return agent, nil
}

func runSpeed(a prefabs.AgentSpec, st *steering.Steering) float64 {
	if a.RunSpeed > 0 {
		return a.RunSpeed
	}
	return st.Config().MaxSpeed
}

func maxRunSpeed(a prefabs.AgentSpec) float64 {
	if a.MaxRunSpeed > 0 {
		return a.MaxRunSpeed
	}
	return component.DefaultMaxRunSpeed
}

// Tick issues any orders due this tick and runs every system once.
func (s *Scene) Tick() {
	for _, o := range s.orders {
		if o.tick == s.tick {
			s.issue(o.order)
		}
	}
	s.events.tick = s.tick
	s.scheduler.Update(s.world)
	s.tick++
}

func (s *Scene) Run(ticks int) {
	for i := 0; i < ticks; i++ {
		s.Tick()
	}
}

// Order sends the player to dest. maxPoints limits the path, zero for no
// limit.
func (s *Scene) Order(dest mgl64.Vec3, strength float64, maxPoints int) error {
	if s.player == nil {
		return ErrNoPlayer
	}
	s.issue(component.MoveOrder{Destination: dest, Strength: strength, MaxPathPoints: maxPoints})
	return nil
}

func (s *Scene) issue(o component.MoveOrder) {
	if s.player == nil {
		return
	}
	order, ok := ecs.Get(s.world, s.player.Entity, component.MoveOrderComponent.Kind())
	if !ok {
		return
	}
	*order = o
	order.Pending = true
	s.logger.Debug("order", "to", o.Destination, "strength", o.Strength)
}

func (s *Scene) Name() string {
	return s.spec.Name
}

// Source is the scenario file the scene was loaded from, if any.
func (s *Scene) Source() string {
	return s.source
}

func (s *Scene) TickCount() int {
	return s.tick
}

// DT is the simulated time per tick in seconds.
func (s *Scene) DT() float64 {
	return s.dt
}

func (s *Scene) World() *ecs.World {
	return s.world
}

func (s *Scene) Physics() *physics.World {
	return s.physics
}

func (s *Scene) Grid() *nav.Grid {
	return s.grid
}

func (s *Scene) Events() *EventLog {
	return s.events
}

func (s *Scene) Agents() []*Agent {
	return s.agents
}

func (s *Scene) Obstacles() []*Obstacle {
	return s.obstacles
}

func (s *Scene) Player() (*Agent, bool) {
	return s.player, s.player != nil
}

func (s *Scene) Agent(name string) (*Agent, bool) {
	for _, a := range s.agents {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Locomotion returns the steering state of an agent.
func (s *Scene) Locomotion(a *Agent) (*component.Locomotion, bool) {
	if a == nil {
		return nil, false
	}
	return ecs.Get(s.world, a.Entity, component.LocomotionComponent.Kind())
}

// Brain returns the script state of an agent, if it runs one.
func (s *Scene) Brain(a *Agent) (*component.Brain, bool) {
	if a == nil {
		return nil, false
	}
	return ecs.Get(s.world, a.Entity, component.BrainComponent.Kind())
}
