package steering

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

func TestFollowerTarget(t *testing.T) {
	tests := []struct {
		name       string
		path       []mgl64.Vec3
		pos        mgl64.Vec3
		lookAhead  float64
		wantGoal   mgl64.Vec3
		wantFinal  bool
		wantCursor int
	}{
		{
			name:       "look_ahead_projected",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}},
			pos:        mgl64.Vec3{2, 0, 1},
			lookAhead:  3,
			wantGoal:   mgl64.Vec3{5, 0, 0},
			wantCursor: 1,
		},
		{
			name:       "goal_clamped_to_segment_end",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}},
			pos:        mgl64.Vec3{9, 0, 0},
			lookAhead:  5,
			wantGoal:   mgl64.Vec3{10, 0, 0},
			wantCursor: 1,
		},
		{
			name:       "behind_start_clamped",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}},
			pos:        mgl64.Vec3{-8, 0, 0},
			lookAhead:  2,
			wantGoal:   mgl64.Vec3{0, 0, 0},
			wantCursor: 1,
		},
		{
			name:       "advance_onto_final_segment",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}},
			pos:        mgl64.Vec3{10.5, 0, 0},
			lookAhead:  1,
			wantGoal:   mgl64.Vec3{10, 0, 0},
			wantFinal:  true,
			wantCursor: 2,
		},
		{
			name:       "final_within_threshold",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}},
			pos:        mgl64.Vec3{9.9, 0, 0},
			lookAhead:  1,
			wantGoal:   mgl64.Vec3{10, 0, 0},
			wantFinal:  true,
			wantCursor: 2,
		},
		{
			name:       "final_just_outside_threshold",
			path:       []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}},
			pos:        mgl64.Vec3{9.7, 0, 0},
			lookAhead:  1,
			wantGoal:   mgl64.Vec3{10, 0, 0},
			wantFinal:  true,
			wantCursor: 1,
		},
		{
			name:       "repeated_waypoint_skipped",
			path:       []mgl64.Vec3{{0, 0, 0}, {0, 0, 0}, {5, 0, 0}},
			pos:        mgl64.Vec3{},
			lookAhead:  1,
			wantGoal:   mgl64.Vec3{0, 0, 0},
			wantFinal:  true,
			wantCursor: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFollower(FollowConfig{})
			f.SetPath(tc.path)
			goal, final, ok := f.Target(tc.pos, tc.lookAhead)
			if !ok {
				t.Fatalf("expected a target")
			}
			if !vecApprox(goal, tc.wantGoal) {
				t.Fatalf("expected goal %v, got %v", tc.wantGoal, goal)
			}
			if final != tc.wantFinal {
				t.Fatalf("expected final=%v, got %v", tc.wantFinal, final)
			}
			if f.Cursor() != tc.wantCursor {
				t.Fatalf("expected cursor %d, got %d", tc.wantCursor, f.Cursor())
			}
		})
	}
}

func TestFollowerSetPathCopies(t *testing.T) {
	path := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}
	f := NewFollower(FollowConfig{})
	f.SetPath(path)
	path[1] = mgl64.Vec3{9, 9, 9}
	if f.Path()[1] != (mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("follower path changed with caller slice")
	}
}

func TestFollowerDirect(t *testing.T) {
	path := []mgl64.Vec3{{0, 0, 0}, {0.1, 0, 0}, {5, 0, 0}, {5, 0, 5}}

	t.Run("skips_close_waypoints_and_smooths", func(t *testing.T) {
		f := NewFollower(FollowConfig{})
		f.SetPath(path)

		dir, arrived := f.Direct(mgl64.Vec3{}, 0)
		if arrived {
			t.Fatalf("did not expect arrival")
		}
		if f.Cursor() != 2 {
			t.Fatalf("expected near waypoint skipped, cursor=%d", f.Cursor())
		}
		// 0.4 corner factor from rest, 0.15 blend.
		if !vecApprox(dir, mgl64.Vec3{0.06, 0, 0}) {
			t.Fatalf("expected (0.06,0,0), got %v", dir)
		}

		next, _ := f.Direct(mgl64.Vec3{}, 0)
		want := 0.06*0.85 + (0.06*0.6+0.4)*0.15
		if !approx(next.X(), want) {
			t.Fatalf("expected %v, got %v", want, next.X())
		}
	})

	t.Run("intermediate_advances_by_projection", func(t *testing.T) {
		f := NewFollower(FollowConfig{})
		f.SetPath(path)
		f.Direct(mgl64.Vec3{}, 0)

		f.Direct(mgl64.Vec3{5.1, 0, 0}, 0)
		if f.Cursor() != 3 {
			t.Fatalf("expected cursor 3, got %d", f.Cursor())
		}
	})

	t.Run("final_by_threshold", func(t *testing.T) {
		f := NewFollower(FollowConfig{})
		f.SetPath(path)
		f.Direct(mgl64.Vec3{}, 0)
		f.Direct(mgl64.Vec3{5.1, 0, 0}, 0)

		dir, arrived := f.Direct(mgl64.Vec3{5, 0, 4.9}, 0)
		if !arrived || dir != (mgl64.Vec3{}) || !f.Reached() {
			t.Fatalf("expected arrival, dir=%v cursor=%d", dir, f.Cursor())
		}
		if f.MoveDirection() != (mgl64.Vec3{}) {
			t.Fatalf("expected smoothed heading reset")
		}
	})

	t.Run("slows_near_destination", func(t *testing.T) {
		f := NewFollower(FollowConfig{Inertia: 0.0001})
		f.SetPath([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}})
		dir, _ := f.Direct(mgl64.Vec3{0.5, 0, 0}, 0)
		// remaining 0.5 * 0.4 speed scale, 0.4 corner factor.
		if !approx(dir.Len(), 0.5*0.4*0.4*(1-0.0001)) {
			t.Fatalf("unexpected speed %v", dir.Len())
		}
	})

	t.Run("strength_overrides_slowdown", func(t *testing.T) {
		f := NewFollower(FollowConfig{Inertia: 0.0001})
		f.SetPath([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}})
		dir, _ := f.Direct(mgl64.Vec3{0.5, 0, 0}, 1)
		if !approx(dir.Len(), 0.4*(1-0.0001)) {
			t.Fatalf("unexpected speed %v", dir.Len())
		}
	})

	t.Run("all_waypoints_within_skip_radius", func(t *testing.T) {
		f := NewFollower(FollowConfig{})
		f.SetPath([]mgl64.Vec3{{0, 0, 0}, {0.1, 0, 0}})
		if _, arrived := f.Direct(mgl64.Vec3{}, 0); !arrived {
			t.Fatalf("expected immediate arrival")
		}
	})
}

func TestFollowDirectHaltsOnArrival(t *testing.T) {
	agent := &fakeBody{id: 1, radius: 0.5}
	s, err := New(agent, &fakeSweeper{}, Config{MaxSpeed: 4, Follow: FollowConfig{Mode: FollowDirect}})
	if err != nil {
		t.Fatal(err)
	}
	s.SetPath([]mgl64.Vec3{{0, 0, 0}, {3, 0, 0}})

	for i := 0; i < 2000 && s.Path() != nil; i++ {
		v := s.FollowDirect(0)
		if v.Len() > 4+1e-9 {
			t.Fatalf("direct velocity %v exceeds max speed", v.Len())
		}
		agent.pos = agent.pos.Add(v.Mul(1.0 / 60))
	}
	if s.Path() != nil {
		t.Fatalf("expected path cleared on arrival, pos=%v", agent.pos)
	}
	if agent.vel != (mgl64.Vec3{}) {
		t.Fatalf("expected halted velocity, got %v", agent.vel)
	}
	if d := agent.pos.Sub(mgl64.Vec3{3, 0, 0}).Len(); d > DefaultDestinationThreshold {
		t.Fatalf("stopped %v from destination", d)
	}
}

func TestCollisionMaskYAML(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		want    CollisionMask
		wantErr bool
	}{
		{"number", "mask: 32", CharacterFilter, false},
		{"name", "mask: character", CharacterFilter, false},
		{"list", "mask: [static, character]", StaticFilter | CharacterFilter, false},
		{"unknown", "mask: walls", 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var out struct {
				Mask CollisionMask `yaml:"mask"`
			}
			err := yaml.Unmarshal([]byte(c.src), &out)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out.Mask != c.want {
				t.Fatalf("expected %d, got %d", c.want, out.Mask)
			}
		})
	}
}

func TestSignals(t *testing.T) {
	cases := []struct {
		name     string
		v        mgl64.Vec3
		fraction float64
		yaw      float64
		hasYaw   bool
	}{
		{"still", mgl64.Vec3{}, 0, 0, false},
		{"east", mgl64.Vec3{5, 0, 0}, 0.5, math.Pi / 2, true},
		{"north", mgl64.Vec3{0, 0, -10}, 1, math.Pi, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SpeedFraction(c.v, 10); !approx(got, c.fraction) {
				t.Fatalf("expected fraction %v, got %v", c.fraction, got)
			}
			yaw, ok := Yaw(c.v)
			if ok != c.hasYaw || !approx(yaw, c.yaw) {
				t.Fatalf("expected yaw %v/%v, got %v/%v", c.yaw, c.hasYaw, yaw, ok)
			}
		})
	}
}
