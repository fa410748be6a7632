package steering

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the world up axis. The ground plane is XZ.
var Up = mgl64.Vec3{0, 1, 0}

const vecEpsilon = 1e-9

func normalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l < vecEpsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

func clampLength(v mgl64.Vec3, max float64) mgl64.Vec3 {
	if max <= 0 {
		return mgl64.Vec3{}
	}
	l2 := v.LenSqr()
	if l2 <= max*max {
		return v
	}
	return v.Mul(max / math.Sqrt(l2))
}

// sign treats zero as positive so a dead-centre obstacle still deflects.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// SpeedFraction is |v| divided by maxSpeed, zero when maxSpeed is not positive.
func SpeedFraction(v mgl64.Vec3, maxSpeed float64) float64 {
	if maxSpeed <= 0 {
		return 0
	}
	return v.Len() / maxSpeed
}

// Yaw returns the facing angle about Up for a horizontal velocity. ok is
// false when the agent is too slow to have a meaningful heading.
func Yaw(v mgl64.Vec3) (float64, bool) {
	if v.Len() <= 0.001 {
		return 0, false
	}
	return math.Atan2(-v.Z(), v.X()) + math.Pi/2, true
}
