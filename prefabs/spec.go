package prefabs

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/pathsteer/nav"
	"github.com/milk9111/pathsteer/steering"
	"gopkg.in/yaml.v3"
)

const DefaultScenario = "default.yaml"

var ErrInvalidScenario = errors.New("prefabs: invalid scenario")

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// LoadScenario loads and validates a scenario file.
func LoadScenario(filename string) (ScenarioSpec, error) {
	spec, err := LoadSpec[ScenarioSpec](filename)
	if err != nil {
		return ScenarioSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return ScenarioSpec{}, fmt.Errorf("%s: %w", filename, err)
	}
	return spec, nil
}

// ScenarioSpec describes a whole scene: the walkable area, the static
// obstacles and the agents moving through it.
type ScenarioSpec struct {
	Name      string         `yaml:"name" json:"name"`
	Seed      int64          `yaml:"seed" json:"seed,omitempty"`
	TickRate  float64        `yaml:"tick_rate" json:"tick_rate,omitempty" jsonschema:"minimum=0"`
	Nav       nav.Config     `yaml:"nav" json:"nav"`
	Obstacles []ObstacleSpec `yaml:"obstacles" json:"obstacles,omitempty"`
	Agents    []AgentSpec    `yaml:"agents" json:"agents"`
}

type ObstacleKind string

const (
	ObstacleBox     ObstacleKind = "box"
	ObstacleCapsule ObstacleKind = "capsule"
)

type ObstacleSpec struct {
	Name        string                 `yaml:"name" json:"name,omitempty"`
	Kind        ObstacleKind           `yaml:"kind" json:"kind" jsonschema:"enum=box,enum=capsule"`
	Position    mgl64.Vec3             `yaml:"position" json:"position"`
	HalfExtents mgl64.Vec3             `yaml:"half_extents" json:"half_extents,omitempty"`
	Radius      float64                `yaml:"radius" json:"radius,omitempty"`
	Category    steering.CollisionMask `yaml:"category" json:"category,omitempty"`
	Color       string                 `yaml:"color" json:"color,omitempty" jsonschema:"pattern=^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$"`
}

type AgentKind string

const (
	AgentNPC    AgentKind = "npc"
	AgentPlayer AgentKind = "player"
)

type AgentSpec struct {
	Name        string                 `yaml:"name" json:"name"`
	Kind        AgentKind              `yaml:"kind" json:"kind,omitempty" jsonschema:"enum=npc,enum=player"`
	Position    mgl64.Vec3             `yaml:"position" json:"position"`
	Capsule     steering.Capsule       `yaml:"capsule" json:"capsule"`
	Category    steering.CollisionMask `yaml:"category" json:"category,omitempty"`
	Steering    steering.Config        `yaml:"steering" json:"steering,omitempty"`
	RunSpeed    float64                `yaml:"run_speed" json:"run_speed,omitempty"`
	MaxRunSpeed float64                `yaml:"max_run_speed" json:"max_run_speed,omitempty"`
	Patrol      []mgl64.Vec3           `yaml:"patrol" json:"patrol,omitempty"`
	Brain       string                 `yaml:"brain" json:"brain,omitempty"`
	Orders      []OrderSpec            `yaml:"orders" json:"orders,omitempty"`
	Color       string                 `yaml:"color" json:"color,omitempty" jsonschema:"pattern=^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$"`
}

// OrderSpec schedules a move order for a player agent.
type OrderSpec struct {
	Tick        int        `yaml:"tick" json:"tick" jsonschema:"minimum=0"`
	Destination mgl64.Vec3 `yaml:"destination" json:"destination"`
	Strength    float64    `yaml:"strength" json:"strength,omitempty"`
}

// Validate checks the scenario for mistakes that would otherwise surface as
// silent misbehaviour at runtime.
func (s ScenarioSpec) Validate() error {
	if len(s.Agents) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalidScenario)
	}
	if s.TickRate < 0 {
		return fmt.Errorf("%w: negative tick rate", ErrInvalidScenario)
	}

	names := make(map[string]struct{}, len(s.Agents)+len(s.Obstacles))
	for i, o := range s.Obstacles {
		switch o.Kind {
		case ObstacleBox:
			if o.HalfExtents.X() <= 0 || o.HalfExtents.Z() <= 0 {
				return fmt.Errorf("%w: obstacle %d: box needs positive half extents", ErrInvalidScenario, i)
			}
		case ObstacleCapsule:
			if o.Radius <= 0 {
				return fmt.Errorf("%w: obstacle %d: capsule needs a positive radius", ErrInvalidScenario, i)
			}
		default:
			return fmt.Errorf("%w: obstacle %d: unknown kind %q", ErrInvalidScenario, i, o.Kind)
		}
		if _, err := ParseColor(o.Color); err != nil {
			return fmt.Errorf("%w: obstacle %d: %v", ErrInvalidScenario, i, err)
		}
		if o.Name != "" {
			if _, dup := names[o.Name]; dup {
				return fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, o.Name)
			}
			names[o.Name] = struct{}{}
		}
	}

	players := 0
	for _, a := range s.Agents {
		if a.Name == "" {
			return fmt.Errorf("%w: agent without a name", ErrInvalidScenario)
		}
		if _, dup := names[a.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, a.Name)
		}
		names[a.Name] = struct{}{}

		if a.Capsule.Radius <= 0 {
			return fmt.Errorf("%w: agent %q: capsule needs a positive radius", ErrInvalidScenario, a.Name)
		}
		switch a.Kind {
		case "", AgentNPC:
			if len(a.Orders) > 0 {
				return fmt.Errorf("%w: agent %q: only players take orders", ErrInvalidScenario, a.Name)
			}
		case AgentPlayer:
			players++
			if len(a.Patrol) > 0 || a.Brain != "" {
				return fmt.Errorf("%w: agent %q: players cannot patrol or run a brain", ErrInvalidScenario, a.Name)
			}
		default:
			return fmt.Errorf("%w: agent %q: unknown kind %q", ErrInvalidScenario, a.Name, a.Kind)
		}
		if m := a.Steering.Follow.Mode; m != "" && m != steering.FollowSteer && m != steering.FollowDirect {
			return fmt.Errorf("%w: agent %q: unknown follow mode %q", ErrInvalidScenario, a.Name, m)
		}
		if _, err := ParseColor(a.Color); err != nil {
			return fmt.Errorf("%w: agent %q: %v", ErrInvalidScenario, a.Name, err)
		}
	}
	if players > 1 {
		return fmt.Errorf("%w: at most one player agent", ErrInvalidScenario)
	}
	return nil
}
