package steering

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Capsule is the collision shape every avoiding agent and obstacle carries.
type Capsule struct {
	Radius float64 `yaml:"radius" json:"radius"`
	Height float64 `yaml:"height" json:"height"`
}

// Body is anything the sweep service can report.
type Body interface {
	ID() uint64
	Position() mgl64.Vec3
	// Capsule reports false for shapes avoidance does not understand.
	Capsule() (Capsule, bool)
}

// Character is the agent being steered.
type Character interface {
	Body
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
}

// Pursuable is any moving target.
type Pursuable interface {
	Position() mgl64.Vec3
	Velocity() mgl64.Vec3
}

type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func PoseAt(p mgl64.Vec3) Pose {
	return Pose{Position: p, Rotation: mgl64.QuatIdent()}
}

type Hit struct {
	Other    Body
	Point    mgl64.Vec3
	Distance float64
}

// Sweeper moves shape from one pose to another and reports every body it
// touches whose category intersects mask. Results are unordered.
type Sweeper interface {
	Sweep(shape Capsule, from, to Pose, mask CollisionMask) []Hit
}

// PathFinder plans a route between two points. ok is false when no route
// exists.
type PathFinder interface {
	FindPath(from, to mgl64.Vec3) ([]mgl64.Vec3, bool)
}

type CollisionMask uint32

const (
	DefaultFilter CollisionMask = 1 << iota
	StaticFilter
	KinematicFilter
	DebrisFilter
	SensorTrigger
	CharacterFilter

	AllFilter CollisionMask = ^CollisionMask(0)
)

var maskNames = map[string]CollisionMask{
	"default":   DefaultFilter,
	"static":    StaticFilter,
	"kinematic": KinematicFilter,
	"debris":    DebrisFilter,
	"sensor":    SensorTrigger,
	"character": CharacterFilter,
	"all":       AllFilter,
}

// UnmarshalYAML accepts a number, a single name or a list of names.
func (m *CollisionMask) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var n uint32
		if err := value.Decode(&n); err == nil {
			*m = CollisionMask(n)
			return nil
		}
		mask, err := parseMaskName(value.Value)
		if err != nil {
			return err
		}
		*m = mask
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		var out CollisionMask
		for _, name := range names {
			mask, err := parseMaskName(name)
			if err != nil {
				return err
			}
			out |= mask
		}
		*m = out
		return nil
	default:
		return fmt.Errorf("steering: collision mask must be a number, name or list of names")
	}
}

func parseMaskName(name string) (CollisionMask, error) {
	mask, ok := maskNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("steering: unknown collision category %q", name)
	}
	return mask, nil
}
