package component

import "github.com/go-gl/mathgl/mgl64"

// MoveOrder is a point-and-click style request. Pending orders are turned
// into a path on the next navigation tick and followed in direct mode.
type MoveOrder struct {
	Destination mgl64.Vec3
	Strength    float64
	Pending     bool

	// MaxPathPoints limits the requested path, zero for no limit. Held
	// orders re-path often and only need the next few corners.
	MaxPathPoints int
}

var MoveOrderComponent = NewComponent[MoveOrder]("move_order")
