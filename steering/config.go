package steering

const (
	DefaultMaxSpeed         = 3.0
	DefaultMaxSteer         = 0.175
	DefaultAvoidanceEpsilon = 1e-4

	DefaultWanderCircleDistance = 2.0
	DefaultWanderCircleRadius   = 1.0
	DefaultWanderAngleChange    = 0.07

	DefaultArriveRadius         = 3.0
	DefaultCornerSlowdown       = 0.6
	DefaultDestinationSlowdown  = 0.4
	DefaultDestinationThreshold = 0.2
	DefaultInertia              = 0.85
	DefaultSkipRadius           = 0.25
)

type FollowMode string

const (
	// FollowSteer blends a look-ahead point on the active segment into the
	// agent's velocity as a bounded steering force.
	FollowSteer FollowMode = "steer"
	// FollowDirect drives velocity straight at the next waypoint with
	// corner slowdown and inertia smoothing.
	FollowDirect FollowMode = "direct"
)

type FollowConfig struct {
	Mode                 FollowMode `yaml:"mode" json:"mode,omitempty" jsonschema:"enum=steer,enum=direct"`
	ArriveRadius         float64    `yaml:"arrive_radius" json:"arrive_radius,omitempty"`
	CornerSlowdown       float64    `yaml:"corner_slowdown" json:"corner_slowdown,omitempty" jsonschema:"minimum=0,maximum=1"`
	DestinationSlowdown  float64    `yaml:"destination_slowdown" json:"destination_slowdown,omitempty"`
	DestinationThreshold float64    `yaml:"destination_threshold" json:"destination_threshold,omitempty"`
	Inertia              float64    `yaml:"inertia" json:"inertia,omitempty" jsonschema:"minimum=0,maximum=1"`
	SkipRadius           float64    `yaml:"skip_radius" json:"skip_radius,omitempty"`
}

type WanderConfig struct {
	CircleDistance float64 `yaml:"circle_distance" json:"circle_distance,omitempty"`
	CircleRadius   float64 `yaml:"circle_radius" json:"circle_radius,omitempty"`
	AngleChange    float64 `yaml:"angle_change" json:"angle_change,omitempty"`
}

// Config holds the per-agent steering tunables. Zero fields take defaults.
type Config struct {
	MaxSpeed         float64       `yaml:"max_speed" json:"max_speed,omitempty"`
	MaxSteer         float64       `yaml:"max_steer" json:"max_steer,omitempty"`
	AvoidanceMask    CollisionMask `yaml:"avoidance_mask" json:"avoidance_mask,omitempty"`
	AvoidanceEpsilon float64       `yaml:"avoidance_epsilon" json:"avoidance_epsilon,omitempty"`
	Wander           WanderConfig  `yaml:"wander" json:"wander,omitempty"`
	Follow           FollowConfig  `yaml:"follow" json:"follow,omitempty"`
}

func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

func (c Config) WithDefaults() Config {
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = DefaultMaxSpeed
	}
	if c.MaxSteer <= 0 {
		c.MaxSteer = DefaultMaxSteer
	}
	if c.AvoidanceMask == 0 {
		c.AvoidanceMask = CharacterFilter
	}
	if c.AvoidanceEpsilon <= 0 {
		c.AvoidanceEpsilon = DefaultAvoidanceEpsilon
	}
	if c.Wander.CircleDistance <= 0 {
		c.Wander.CircleDistance = DefaultWanderCircleDistance
	}
	if c.Wander.CircleRadius <= 0 {
		c.Wander.CircleRadius = DefaultWanderCircleRadius
	}
	if c.Wander.AngleChange <= 0 {
		c.Wander.AngleChange = DefaultWanderAngleChange
	}
	c.Follow = c.Follow.WithDefaults()
	return c
}

func (c FollowConfig) WithDefaults() FollowConfig {
	if c.Mode == "" {
		c.Mode = FollowSteer
	}
	if c.ArriveRadius <= 0 {
		c.ArriveRadius = DefaultArriveRadius
	}
	if c.CornerSlowdown <= 0 {
		c.CornerSlowdown = DefaultCornerSlowdown
	}
	if c.DestinationSlowdown <= 0 {
		c.DestinationSlowdown = DefaultDestinationSlowdown
	}
	if c.DestinationThreshold <= 0 {
		c.DestinationThreshold = DefaultDestinationThreshold
	}
	if c.Inertia <= 0 {
		c.Inertia = DefaultInertia
	}
	if c.SkipRadius <= 0 {
		c.SkipRadius = DefaultSkipRadius
	}
	return c
}
