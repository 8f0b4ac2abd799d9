package pathtracker

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
)

// TurnTo computes an in-place rotation toward target (radians). It reports
// reached when the normalised heading error is strictly inside the heading
// deadband, in which case the command is zero.
func (t *Tracker) TurnTo(target float64, pose Pose) (bool, MotorCommand) {
	err := NormalizeAngle(target - pose.Yaw)
	if math.Abs(err) < t.cfg.HeadingDeadBand {
		return true, MotorCommand{}
	}

	mag := Clamp(t.cfg.MaxMotorSpeed*math.Abs(err)/t.cfg.MaxSpeedAtAngle, t.cfg.MinTurningSpeed, t.cfg.MaxMotorSpeed)
	if err > 0 {
		// Counter-clockwise: left side back, right side forward.
		return false, MotorCommand{Left: -mag, Right: mag}
	}
	return false, MotorCommand{Left: mag, Right: -mag}
}

// Drive computes a straight-line command toward goal. It reports reached when
// the planar distance is strictly inside the position deadband, in which case
// the command is zero.
func (t *Tracker) Drive(pose Pose, goal Waypoint) (bool, MotorCommand) {
	d := PlanarDistance(pose.Position, goal.Position)
	if d < t.cfg.PositionDeadBand {
		return true, MotorCommand{}
	}

	mag := Clamp(t.cfg.MaxMotorSpeed*d/t.cfg.MaxSpeedAtDist, t.cfg.MinDriveSpeed, t.cfg.MaxMotorSpeed)
	return false, MotorCommand{Left: mag, Right: mag}
}

// HeadingTo returns the planar bearing from pose to goal.
func HeadingTo(pose Pose, goal Waypoint) float64 {
	return math.Atan2(goal.Position.Y-pose.Position.Y, goal.Position.X-pose.Position.X)
}

// PlanarDistance is the distance between a and b ignoring Z.
func PlanarDistance(a, b r3.Vector) float64 {
	d := b.Sub(a)
	d.Z = 0
	return d.Norm()
}

// Nearest returns the index of the waypoint closest to pose in 3-D, or -1 for
// an empty path. Ties resolve to the earliest waypoint.
func Nearest(path Path, pose Pose) int {
	if len(path) == 0 {
		return -1
	}
	dists := make([]float64, len(path))
	for i, wp := range path {
		dists[i] = pose.Position.Distance(wp.Position)
	}
	return floats.MinIdx(dists)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// YawFromQuaternion extracts the rotation about Z from a unit quaternion.
func YawFromQuaternion(w, x, y, z float64) float64 {
	return math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
}
