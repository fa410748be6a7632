package component

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Patrol walks an agent between destinations in a shuffled order that is
// reshuffled every time the order wraps.
type Patrol struct {
	Destinations []mgl64.Vec3
	Order        []int
	Index        int
	Rand         *rand.Rand

	// Paused stops new destinations being picked.
	Paused bool
}

var PatrolComponent = NewComponent[Patrol]("patrol")
