package pathtracker

import "errors"

var (
	// ErrEmptyPath is returned by SetPath when the path has no waypoints.
	ErrEmptyPath = errors.New("pathtracker: empty path")

	// ErrPathExhausted is returned by SetPath when the nearest waypoint is the
	// last one, so there is nothing left ahead of the vehicle.
	ErrPathExhausted = errors.New("pathtracker: path exhausted")

	// ErrInvalidPose marks a pose carrying NaN or infinite values.
	ErrInvalidPose = errors.New("pathtracker: invalid pose")

	// ErrDetached is returned once the tracker has been detached.
	ErrDetached = errors.New("pathtracker: detached")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("pathtracker: invalid config")
)
