package pathtracker

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-3 * math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{0.25, 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeAngle(tt.in), 1e-9, "NormalizeAngle(%v)", tt.in)
	}

	for a := -20.0; a <= 20; a += 0.37 {
		n := NormalizeAngle(a)
		assert.Greater(t, n, -math.Pi)
		assert.LessOrEqual(t, n, math.Pi)
	}
}

func TestClamp_AlwaysInRange(t *testing.T) {
	for v := -1000.0; v <= 1000; v += 7.3 {
		c := Clamp(v, 50, 255)
		assert.GreaterOrEqual(t, c, 50.0)
		assert.LessOrEqual(t, c, 255.0)
	}
	assert.Equal(t, 120.0, Clamp(120, 50, 255))
}

func TestTurnTo_ReachedIffInsideDeadband(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig())
	db := tr.Config().HeadingDeadBand

	for _, yaw := range []float64{-3, -1, 0, 0.5, 2.9} {
		for _, offset := range []float64{0, db / 2, db - 1e-9, db, db + 1e-9, 1, math.Pi} {
			for _, sign := range []float64{1, -1} {
				target := yaw + sign*offset
				reached, cmd := tr.TurnTo(target, NewPose(0, 0, yaw))
				errAbs := math.Abs(NormalizeAngle(target - yaw))
				assert.Equal(t, errAbs < db, reached, "yaw=%v target=%v", yaw, target)
				if reached {
					assert.True(t, cmd.IsZero())
				} else {
					assert.Equal(t, -cmd.Left, cmd.Right, "pure rotation")
				}
			}
		}
	}
}

func TestTurnTo_MagnitudeClampedAndSigned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTurningSpeed = 100
	tr, _ := newTestTracker(t, cfg)

	// Small error: floor applies.
	_, cmd := tr.TurnTo(0.4, NewPose(0, 0, 0))
	assert.InDelta(t, -100, cmd.Left, 1e-9)
	assert.InDelta(t, 100, cmd.Right, 1e-9)

	// Proportional band.
	_, cmd = tr.TurnTo(-1.0, NewPose(0, 0, 0))
	want := 255 * 1.0 / (math.Pi / 2)
	assert.InDelta(t, want, cmd.Left, 1e-9)
	assert.InDelta(t, -want, cmd.Right, 1e-9)

	// Saturation.
	_, cmd = tr.TurnTo(3.0, NewPose(0, 0, 0))
	assert.InDelta(t, -255, cmd.Left, 1e-9)

	// Wrap-around: target just across ±π is a short left turn.
	_, cmd = tr.TurnTo(-math.Pi+0.5, NewPose(0, 0, math.Pi-0.5))
	assert.Less(t, cmd.Left, 0.0)
	assert.InDelta(t, 255*1.0/(math.Pi/2), cmd.Right, 1e-9)
}

func TestDrive_ReachedIffInsideDeadband(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig())
	goal := NewPose(3, 4, 0)

	tests := []struct {
		pose    Pose
		reached bool
	}{
		{NewPose(3, 4, 0), true},
		{NewPose(3, 3.5, 0), true},
		{NewPose(3, 3.0000001, 0), true},
		{NewPose(3, 3, 0), false}, // exactly on the deadband
		{NewPose(0, 0, 0), false},
		{Pose{Position: r3.Vector{X: 3, Y: 4.5, Z: 50}}, true}, // Z is ignored
	}
	for _, tt := range tests {
		reached, cmd := tr.Drive(tt.pose, goal)
		assert.Equal(t, tt.reached, reached, "%+v", tt.pose)
		if reached {
			assert.True(t, cmd.IsZero())
		}
	}
}

func TestDrive_MagnitudeClamped(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig())
	cfg := tr.Config()
	goal := NewPose(0, 0, 0)

	_, cmd := tr.Drive(NewPose(2, 0, 0), goal)
	assert.InDelta(t, 255*2/cfg.MaxSpeedAtDist, cmd.Left, 1e-9)
	assert.Equal(t, cmd.Left, cmd.Right)

	_, cmd = tr.Drive(NewPose(1.1, 0, 0), goal)
	assert.Equal(t, cfg.MinDriveSpeed, cmd.Left)

	_, cmd = tr.Drive(NewPose(500, 0, 0), goal)
	assert.Equal(t, cfg.MaxMotorSpeed, cmd.Right)

	for d := 1.0; d < 100; d += 0.7 {
		_, cmd := tr.Drive(NewPose(d, 0, 0), goal)
		assert.GreaterOrEqual(t, cmd.Left, cfg.MinDriveSpeed)
		assert.LessOrEqual(t, cmd.Left, cfg.MaxMotorSpeed)
	}
}

func TestHeadingTo(t *testing.T) {
	assert.InDelta(t, 0, HeadingTo(NewPose(0, 0, 0), NewPose(10, 0, 0)), 1e-12)
	assert.InDelta(t, math.Pi/2, HeadingTo(NewPose(0, 0, 0), NewPose(0, 5, 0)), 1e-12)
	assert.InDelta(t, -3*math.Pi/4, HeadingTo(NewPose(1, 1, 0), NewPose(0, 0, 0)), 1e-12)
}

func TestNearest(t *testing.T) {
	assert.Equal(t, -1, Nearest(nil, NewPose(0, 0, 0)))
	assert.Equal(t, 1, Nearest(straightPath(), NewPose(9, 0, 0)))
	assert.Equal(t, 0, Nearest(Path{NewPose(1, 0, 0), NewPose(-1, 0, 0)}, NewPose(0, 0, 0)))
}

func TestYawFromQuaternion(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -1.2, math.Pi / 2, 3} {
		w, z := math.Cos(yaw/2), math.Sin(yaw/2)
		assert.InDelta(t, yaw, YawFromQuaternion(w, 0, 0, z), 1e-9)
	}
}

func TestPoseValidate(t *testing.T) {
	assert.NoError(t, NewPose(1, 2, 3).Validate())
	assert.ErrorIs(t, NewPose(math.NaN(), 0, 0).Validate(), ErrInvalidPose)
	assert.ErrorIs(t, NewPose(0, 0, math.Inf(-1)).Validate(), ErrInvalidPose)
	assert.ErrorIs(t, Pose{Position: r3.Vector{Z: math.NaN()}}.Validate(), ErrInvalidPose)
}

func TestStateNames(t *testing.T) {
	for _, s := range []State{StateIdle, StateAiming, StateMoving, StateFinetuning} {
		parsed, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)

		text, err := s.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	_, err := ParseState("turning")
	assert.Error(t, err)
	assert.Equal(t, "State(9)", State(9).String())
}

func TestConfigPresets(t *testing.T) {
	configs := []struct {
		name string
		cfg  Config
	}{
		{"Default", DefaultConfig()},
		{"Slow", SlowConfig()},
		{"Aggressive", AggressiveConfig()},
	}
	for _, tc := range configs {
		assert.NoError(t, tc.cfg.Validate(), tc.name)
		assert.Equal(t, math.Pi/8, tc.cfg.HeadingDeadBand, tc.name)
		assert.Equal(t, 1.0, tc.cfg.PositionDeadBand, tc.name)
	}
	assert.Equal(t, 255.0, DefaultConfig().MaxMotorSpeed)
}

func TestConfigValidate(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.MaxSpeedAtDist = 0 },
		func(c *Config) { c.MaxSpeedAtAngle = -1 },
		func(c *Config) { c.MinDriveSpeed = 300 },
		func(c *Config) { c.MinTurningSpeed = -1 },
		func(c *Config) { c.HeadingDeadBand = 0 },
		func(c *Config) { c.HeadingDeadBand = 4 },
		func(c *Config) { c.PositionDeadBand = 0 },
	}
	for i, m := range mutate {
		cfg := DefaultConfig()
		m(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "case %d", i)
	}
}
