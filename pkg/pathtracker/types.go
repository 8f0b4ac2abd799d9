// Package pathtracker drives a ground vehicle along an ordered list of waypoints.
//
// The tracker is clocked by the pose stream: every pose sample is pushed into
// Update, which advances a small aiming/moving/finetuning state machine and
// returns at most one motor command. The tracker holds no locks and starts no
// goroutines; callers serialise access.
package pathtracker

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
)

// Pose is a fused vehicle pose. Position is in meters, Yaw in radians
// (counter-clockwise from +X).
type Pose struct {
	Position r3.Vector
	Yaw      float64
}

// NewPose builds a pose from planar coordinates.
func NewPose(x, y, yaw float64) Pose {
	return Pose{Position: r3.Vector{X: x, Y: y}, Yaw: yaw}
}

// Validate rejects poses carrying NaN or infinite components.
func (p Pose) Validate() error {
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z, p.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidPose, p)
		}
	}
	return nil
}

// Waypoint is a target pose. Its Yaw is the heading held after arrival.
type Waypoint = Pose

// Path is an ordered list of waypoints; slice order is traversal order.
type Path []Waypoint

// MotorCommand holds signed left/right drive magnitudes.
type MotorCommand struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// IsZero reports whether both sides are stopped.
func (c MotorCommand) IsZero() bool {
	return c.Left == 0 && c.Right == 0
}

// State is the controller phase.
type State int

const (
	StateIdle State = iota
	StateAiming
	StateMoving
	StateFinetuning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAiming:
		return "aiming"
	case StateMoving:
		return "moving"
	case StateFinetuning:
		return "finetuning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState converts a state name into a State.
func ParseState(value string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "idle":
		return StateIdle, nil
	case "aiming":
		return StateAiming, nil
	case "moving":
		return StateMoving, nil
	case "finetuning":
		return StateFinetuning, nil
	default:
		return StateIdle, fmt.Errorf("unknown state %q", value)
	}
}

// MarshalText encodes the state by name so JSON payloads stay readable.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Detection is a target sighting reported by an upstream search capability.
type Detection struct {
	Confidence float64
	Bearing    float64 // radians, vehicle-relative
	Distance   float64 // meters
}

// Step is the outcome of a single Update call.
type Step struct {
	// State after the update.
	State State
	// Command is nil when nothing should be sent this cycle.
	Command *MotorCommand
	// Reached is set on the update that completed the goal.
	Reached bool
}

// Supervisor receives the tracker's upward signals. Implementations must not
// call back into the tracker synchronously.
type Supervisor interface {
	NotifyFound(d Detection)
	NotifyReached(goal Waypoint)
}

// SupervisorFuncs adapts plain functions to Supervisor. Nil fields are skipped.
type SupervisorFuncs struct {
	Found   func(Detection)
	Reached func(Waypoint)
}

// NotifyFound implements Supervisor.
func (f SupervisorFuncs) NotifyFound(d Detection) {
	if f.Found != nil {
		f.Found(d)
	}
}

// NotifyReached implements Supervisor.
func (f SupervisorFuncs) NotifyReached(goal Waypoint) {
	if f.Reached != nil {
		f.Reached(goal)
	}
}
