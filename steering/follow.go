package steering

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Follower tracks progress along a waypoint path. It is shared by the
// steering follow mode and the direct follow mode so both advance the
// cursor the same way: it starts at 1 on every new path and only grows.
type Follower struct {
	cfg     FollowConfig
	path    []mgl64.Vec3
	cursor  int
	moveDir mgl64.Vec3
	skip    bool
}

func NewFollower(cfg FollowConfig) *Follower {
	return &Follower{cfg: cfg.WithDefaults()}
}

func (f *Follower) Config() FollowConfig {
	return f.cfg
}

func (f *Follower) SetConfig(cfg FollowConfig) {
	f.cfg = cfg.WithDefaults()
}

// SetPath replaces the path and restarts traversal. The slice is copied.
func (f *Follower) SetPath(path []mgl64.Vec3) {
	if len(path) == 0 {
		f.path = nil
	} else {
		f.path = append([]mgl64.Vec3(nil), path...)
	}
	f.cursor = 1
	f.skip = true
}

// Clear drops the path and any smoothed direction.
func (f *Follower) Clear() {
	f.path = nil
	f.cursor = 0
	f.moveDir = mgl64.Vec3{}
	f.skip = false
}

func (f *Follower) Path() []mgl64.Vec3 {
	return f.path
}

func (f *Follower) Cursor() int {
	return f.cursor
}

// Active reports whether the path is long enough to follow.
func (f *Follower) Active() bool {
	return len(f.path) > 1
}

func (f *Follower) Reached() bool {
	return f.path == nil || f.cursor >= len(f.path)
}

// Destination is the final waypoint.
func (f *Follower) Destination() (mgl64.Vec3, bool) {
	if len(f.path) == 0 {
		return mgl64.Vec3{}, false
	}
	return f.path[len(f.path)-1], true
}

// MoveDirection is the smoothed heading used by direct mode.
func (f *Follower) MoveDirection() mgl64.Vec3 {
	return f.moveDir
}

// Complete jumps the cursor past the last waypoint.
func (f *Follower) Complete() {
	if f.cursor < len(f.path) {
		f.cursor = len(f.path)
	}
}

// Target projects a point lookAhead units ahead of pos onto the active
// segment. The cursor advances once pos itself has moved beyond the end of
// the segment, or when the last waypoint is within DestinationThreshold.
// final reports whether the cursor is on or past the last segment.
func (f *Follower) Target(pos mgl64.Vec3, lookAhead float64) (goal mgl64.Vec3, final bool, ok bool) {
	if !f.Active() || f.Reached() {
		return mgl64.Vec3{}, false, false
	}

	prev := f.path[f.cursor-1]
	next := f.path[f.cursor]
	seg := next.Sub(prev)
	segLen := seg.Len()
	dir, valid := normalize(seg)
	if !valid {
		// Repeated waypoint, nothing to project onto.
		f.cursor++
		return next, f.cursor >= len(f.path)-1, true
	}

	ahead := pos.Add(dir.Mul(lookAhead))
	t := mgl64.Clamp(ahead.Sub(prev).Dot(dir), 0, segLen)
	goal = prev.Add(dir.Mul(t))

	if pos.Sub(prev).Dot(dir) > segLen {
		f.cursor++
	} else if f.cursor == len(f.path)-1 && next.Sub(pos).Len() < f.cfg.DestinationThreshold {
		f.cursor++
	}

	return goal, f.cursor >= len(f.path)-1, true
}

// Direct returns the smoothed unit-scale heading toward the next waypoint.
// strength is an external speed request in [0,1] that keeps the agent from
// slowing down near the destination. arrived is true once the last
// waypoint is reached; the smoothed heading is then reset.
func (f *Follower) Direct(pos mgl64.Vec3, strength float64) (dir mgl64.Vec3, arrived bool) {
	if f.skip {
		f.skip = false
		for !f.Reached() && f.path[f.cursor].Sub(pos).Len() < f.cfg.SkipRadius {
			f.cursor++
		}
	}
	if f.Reached() {
		f.moveDir = mgl64.Vec3{}
		return mgl64.Vec3{}, true
	}

	last := len(f.path) - 1
	wp := f.path[f.cursor]
	toWaypoint := wp.Sub(pos)
	length := toWaypoint.Len()
	heading, _ := normalize(toWaypoint)

	advance := false
	if f.cursor > 0 && f.cursor != last {
		normal, ok := normalize(wp.Sub(f.path[f.cursor-1]))
		if !ok || pos.Dot(normal) > wp.Dot(normal) {
			advance = true
		}
	} else if length < f.cfg.DestinationThreshold {
		advance = true
	}

	if advance {
		f.cursor++
		if f.Reached() {
			f.moveDir = mgl64.Vec3{}
			return mgl64.Vec3{}, true
		}
	}

	speedScale := 1.0
	if f.cfg.DestinationSlowdown > 0 {
		remaining := f.path[last].Sub(pos).Len()
		speedScale = math.Min(1, math.Max(remaining, strength/f.cfg.DestinationSlowdown)*f.cfg.DestinationSlowdown)
	}

	corner := math.Max(0, heading.Dot(f.moveDir))*f.cfg.CornerSlowdown + (1 - f.cfg.CornerSlowdown)

	f.moveDir = f.moveDir.Mul(f.cfg.Inertia).Add(heading.Mul(speedScale * corner * (1 - f.cfg.Inertia)))
	return f.moveDir, false
}
