// Package steering turns a path and nearby obstacles into one bounded
// velocity command per tick.
package steering

import (
	"errors"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrNilCharacter = errors.New("steering: character is nil")
	ErrNilSweeper   = errors.New("steering: sweeper is nil")
)

// Steering owns the per-agent state: path cursor, tracked obstacle and
// wander angle. It is not safe for concurrent use.
type Steering struct {
	character Character
	sweeper   Sweeper
	cfg       Config
	maxSpeed  float64

	follower    *Follower
	obstacle    Body
	wanderAngle float64

	rand   *rand.Rand
	logger *log.Logger
}

type Option func(*Steering)

func WithLogger(logger *log.Logger) Option {
	return func(s *Steering) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(s *Steering) {
		if r != nil {
			s.rand = r
		}
	}
}

func New(character Character, sweeper Sweeper, cfg Config, opts ...Option) (*Steering, error) {
	if character == nil {
		return nil, ErrNilCharacter
	}
	if sweeper == nil {
		return nil, ErrNilSweeper
	}

	cfg = cfg.WithDefaults()
	s := &Steering{
		character: character,
		sweeper:   sweeper,
		cfg:       cfg,
		maxSpeed:  cfg.MaxSpeed,
		follower:  NewFollower(cfg.Follow),
		rand:      rand.New(rand.NewSource(int64(character.ID()))),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Steering) Config() Config {
	return s.cfg
}

// SetConfig swaps tunables without touching traversal state.
func (s *Steering) SetConfig(cfg Config) {
	s.cfg = cfg.WithDefaults()
	s.maxSpeed = s.cfg.MaxSpeed
	s.follower.SetConfig(s.cfg.Follow)
}

func (s *Steering) MaxSpeed() float64 {
	return s.maxSpeed
}

// SetMaxSpeed changes the speed cap for this tick and onward.
func (s *Steering) SetMaxSpeed(v float64) {
	s.maxSpeed = math.Max(v, 0)
}

func (s *Steering) MaxSteer() float64 {
	return s.cfg.MaxSteer
}

func (s *Steering) SetMaxSteer(v float64) {
	s.cfg.MaxSteer = math.Max(v, 0)
}

func (s *Steering) SetPath(path []mgl64.Vec3) {
	s.follower.SetPath(path)
	s.logger.Debug("path assigned", "agent", s.character.ID(), "waypoints", len(path))
}

// ClearPath drops the path without touching velocity.
func (s *Steering) ClearPath() {
	s.follower.Clear()
}

func (s *Steering) Path() []mgl64.Vec3 {
	return s.follower.Path()
}

func (s *Steering) Cursor() int {
	return s.follower.Cursor()
}

func (s *Steering) ReachedDestination() bool {
	return s.follower.Reached()
}

func (s *Steering) Follower() *Follower {
	return s.follower
}

// TrackedObstacle is the obstacle currently driving avoidance, or nil.
func (s *Steering) TrackedObstacle() Body {
	return s.obstacle
}

func (s *Steering) WanderAngle() float64 {
	return s.wanderAngle
}

// Steer sums path following and avoidance, clamps the sum to the steering
// force and returns the new velocity clamped to the max speed. The caller
// applies it.
func (s *Steering) Steer() mgl64.Vec3 {
	if s.cfg.Follow.Mode == FollowDirect {
		return s.steerDirect(0)
	}

	var steering mgl64.Vec3
	if s.follower.Active() {
		steering = steering.Add(s.FollowPath())
	}
	steering = steering.Add(s.AvoidObstacles())
	steering = clampLength(steering, s.cfg.MaxSteer)
	return s.integrate(steering)
}

// Drive adds avoidance to an external steering force, clamps the sum to the
// steering force and returns the new velocity. The caller applies it.
func (s *Steering) Drive(force mgl64.Vec3) mgl64.Vec3 {
	force = force.Add(s.AvoidObstacles())
	return s.integrate(clampLength(force, s.cfg.MaxSteer))
}

// FollowDirect runs direct follow mode with an external speed request and
// applies the result. Reaching the end of the path halts the character.
func (s *Steering) FollowDirect(strength float64) mgl64.Vec3 {
	v := s.steerDirect(strength)
	if s.follower.Reached() {
		s.Halt()
		return mgl64.Vec3{}
	}
	s.character.SetVelocity(v)
	return v
}

func (s *Steering) steerDirect(strength float64) mgl64.Vec3 {
	if !s.follower.Active() {
		return s.integrate(clampLength(s.AvoidObstacles(), s.cfg.MaxSteer))
	}
	before := s.follower.Cursor()
	dir, arrived := s.follower.Direct(s.character.Position(), strength)
	s.logAdvance(before)
	if arrived {
		return mgl64.Vec3{}
	}
	v := dir.Mul(s.maxSpeed)
	v = v.Add(clampLength(s.AvoidObstacles(), s.cfg.MaxSteer))
	return clampLength(v, s.maxSpeed)
}

// FollowPath returns the path-following steering delta for this tick, or
// zero when there is no path left to follow.
func (s *Steering) FollowPath() mgl64.Vec3 {
	before := s.follower.Cursor()
	goal, final, ok := s.follower.Target(s.character.Position(), s.maxSpeed)
	s.logAdvance(before)
	if !ok {
		return mgl64.Vec3{}
	}
	if !final {
		return s.Seek(goal)
	}

	arrive := s.SeekAndArrive(goal, s.cfg.Follow.ArriveRadius, 0)
	if arrive == (mgl64.Vec3{}) && !s.follower.Reached() {
		if last, ok := s.follower.Destination(); ok && last.Sub(s.character.Position()).Len() < s.cfg.Follow.ArriveRadius {
			settled := s.follower.Cursor()
			s.follower.Complete()
			s.logAdvance(settled)
		}
	}
	return arrive.Sub(s.character.Velocity())
}

func (s *Steering) logAdvance(before int) {
	if after := s.follower.Cursor(); after != before {
		s.logger.Debug("waypoint advanced", "agent", s.character.ID(), "cursor", after, "reached", s.follower.Reached())
	}
}

// AvoidObstacles sweeps the agent's capsule half a max-speed ahead and
// pushes it sideways away from the tracked obstacle. Only one obstacle is
// considered at a time and it is kept until the agent has passed it.
func (s *Steering) AvoidObstacles() mgl64.Vec3 {
	vel := s.character.Velocity()
	if vel.Len() < s.cfg.AvoidanceEpsilon {
		return mgl64.Vec3{}
	}
	sweepDir, ok := normalize(vel)
	if !ok {
		return mgl64.Vec3{}
	}
	shape, ok := s.character.Capsule()
	if !ok {
		return mgl64.Vec3{}
	}

	lookDistance := s.maxSpeed / 2
	pos := s.character.Position()
	hits := s.sweeper.Sweep(shape, PoseAt(pos), PoseAt(pos.Add(sweepDir.Mul(lookDistance))), s.cfg.AvoidanceMask)
	candidate := s.nearestCapsule(hits, pos)

	if s.obstacle == nil || sweepDir.Dot(s.obstacle.Position().Sub(pos)) <= 0 {
		s.track(candidate)
	}
	if s.obstacle == nil {
		return mgl64.Vec3{}
	}

	other, ok := s.obstacle.Capsule()
	if !ok {
		return mgl64.Vec3{}
	}
	offset := s.obstacle.Position().Sub(pos)
	dist := offset.Len()
	if dist < vecEpsilon {
		return mgl64.Vec3{}
	}

	maxAvoidance := (other.Radius + shape.Radius) / 2
	right := sweepDir.Cross(Up)
	bias := offset.Mul(1 / dist).Dot(right)
	bias = (sign(bias) - bias) * maxAvoidance * -1
	return right.Mul(bias * (lookDistance / dist))
}

func (s *Steering) nearestCapsule(hits []Hit, pos mgl64.Vec3) Body {
	self := s.character.ID()
	var nearest Body
	best := -1.0
	for _, hit := range hits {
		if hit.Other == nil || hit.Other.ID() == self {
			continue
		}
		if _, ok := hit.Other.Capsule(); !ok {
			continue
		}
		d2 := hit.Other.Position().Sub(pos).LenSqr()
		if best < 0 || d2 <= best {
			nearest = hit.Other
			best = d2
		}
	}
	return nearest
}

func (s *Steering) track(next Body) {
	prev := s.obstacle
	s.obstacle = next
	switch {
	case prev == nil && next == nil:
	case next == nil:
		s.logger.Debug("obstacle released", "agent", s.character.ID(), "obstacle", prev.ID())
	case prev == nil || prev.ID() != next.ID():
		s.logger.Debug("obstacle tracked", "agent", s.character.ID(), "obstacle", next.ID())
	}
}

// Seek returns the steering force toward target.
func (s *Steering) Seek(target mgl64.Vec3) mgl64.Vec3 {
	return clampLength(target.Sub(s.character.Position()), s.cfg.MaxSteer)
}

// SeekAndArrive returns a velocity toward target that ramps down linearly
// inside slowdownRadius and snaps to zero once slower than the steering
// force.
func (s *Steering) SeekAndArrive(target mgl64.Vec3, slowdownRadius, arriveDistance float64) mgl64.Vec3 {
	desired := target.Sub(s.character.Position())
	length := desired.Len()
	if length < slowdownRadius {
		remaining := math.Max(length-arriveDistance, 0)
		desired = clampLength(desired, s.maxSpeed).Mul(remaining / slowdownRadius)
	}
	v := s.integrate(desired.Sub(s.character.Velocity()))
	if v.LenSqr() < s.cfg.MaxSteer*s.cfg.MaxSteer {
		return mgl64.Vec3{}
	}
	return v
}

// Flee returns the steering force away from target as seen from from.
func (s *Steering) Flee(target, from mgl64.Vec3) mgl64.Vec3 {
	return clampLength(from.Sub(target), s.cfg.MaxSteer)
}

// Wander returns a force toward a point on a circle ahead of the current
// heading and random-walks the wander angle. The result is not clamped.
func (s *Steering) Wander(vel mgl64.Vec3) mgl64.Vec3 {
	w := s.cfg.Wander
	heading, _ := normalize(vel)
	center := heading.Mul(w.CircleDistance)
	displacement := mgl64.QuatRotate(s.wanderAngle, Up).Rotate(mgl64.Vec3{0, 0, w.CircleRadius})
	s.wanderAngle += s.rand.Float64()*w.AngleChange - w.AngleChange*0.5
	return center.Add(displacement)
}

// Pursue seeks where target will be after covering the gap at max speed.
func (s *Steering) Pursue(target Pursuable) mgl64.Vec3 {
	return s.Seek(s.predict(target, s.character.Position()))
}

// Evade flees from where target will be, measured from from.
func (s *Steering) Evade(target Pursuable, from mgl64.Vec3) mgl64.Vec3 {
	return s.Flee(s.predict(target, from), from)
}

func (s *Steering) predict(target Pursuable, from mgl64.Vec3) mgl64.Vec3 {
	t := 0.0
	if s.maxSpeed > 0 {
		t = target.Position().Sub(from).Len() / s.maxSpeed
	}
	return target.Position().Add(target.Velocity().Mul(t))
}

// Halt stops the character and forgets the path.
func (s *Steering) Halt() {
	s.character.SetVelocity(mgl64.Vec3{})
	s.follower.Clear()
}

func (s *Steering) integrate(steering mgl64.Vec3) mgl64.Vec3 {
	return clampLength(s.character.Velocity().Add(steering), s.maxSpeed)
}
