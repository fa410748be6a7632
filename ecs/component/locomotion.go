package component

import "github.com/milk9111/pathsteer/steering"

const (
	DefaultMaxRunSpeed = 10.0
	DefaultRunSpeed    = 3.0
)

// Locomotion drives an agent through its steering state and publishes the
// signals an animator would read.
type Locomotion struct {
	Steering *steering.Steering

	// RunSpeed is the max speed requested each tick; MaxRunSpeed scales
	// SpeedFraction.
	RunSpeed    float64
	MaxRunSpeed float64

	// Navigating is set while a requested path is being followed and
	// cleared when the destination is reached.
	Navigating bool

	SpeedFraction float64
	Yaw           float64
}

var LocomotionComponent = NewComponent[Locomotion]("locomotion")
