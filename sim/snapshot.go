package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

type Snapshot struct {
	Scenario string          `yaml:"scenario"`
	Tick     int             `yaml:"tick"`
	Agents   []AgentSnapshot `yaml:"agents"`
	Events   []LoggedEvent   `yaml:"events,omitempty"`
}

type AgentSnapshot struct {
	Name          string       `yaml:"name"`
	Position      mgl64.Vec3   `yaml:"position,flow"`
	Velocity      mgl64.Vec3   `yaml:"velocity,flow"`
	SpeedFraction float64      `yaml:"speed_fraction"`
	Yaw           float64      `yaml:"yaw"`
	Navigating    bool         `yaml:"navigating,omitempty"`
	Path          []mgl64.Vec3 `yaml:"path,omitempty,flow"`
	Cursor        int          `yaml:"cursor,omitempty"`
	Obstacle      uint64       `yaml:"tracked_obstacle,omitempty"`
	State         string       `yaml:"state,omitempty"`
	Behavior      string       `yaml:"behavior,omitempty"`
}

// Snapshot captures the observable state of every agent.
func (s *Scene) Snapshot() Snapshot {
	snap := Snapshot{
		Scenario: s.spec.Name,
		Tick:     s.tick,
		Agents:   make([]AgentSnapshot, 0, len(s.agents)),
		Events:   s.events.Recent(),
	}
	for _, a := range s.agents {
		as := AgentSnapshot{
			Name:     a.Name,
			Position: a.Body.Position(),
			Velocity: a.Body.Velocity(),
		}
		if loc, ok := s.Locomotion(a); ok {
			as.SpeedFraction = loc.SpeedFraction
			as.Yaw = loc.Yaw
			as.Navigating = loc.Navigating
			if loc.Steering != nil {
				as.Path = loc.Steering.Path()
				as.Cursor = loc.Steering.Cursor()
				if o := loc.Steering.TrackedObstacle(); o != nil {
					as.Obstacle = o.ID()
				}
			}
		}
		if b, ok := s.Brain(a); ok {
			as.State = b.State
			as.Behavior = b.Behavior
		}
		snap.Agents = append(snap.Agents, as)
	}
	return snap
}

func (snap Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(snap)
}
