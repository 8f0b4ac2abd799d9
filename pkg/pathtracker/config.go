package pathtracker

import (
	"fmt"
	"math"
)

// Default deadbands and motor range.
const (
	DefaultHeadingDeadBand  = math.Pi / 8
	DefaultPositionDeadBand = 1.0 // m
	DefaultMaxMotorSpeed    = 255
)

// Config holds the tunable parameters of the tracker. It is fixed at
// construction time.
type Config struct {
	// Search gate
	ConfidenceThreshold float64 `json:"confidence_threshold"` // Detections at or above fire NotifyFound

	// Proportional scaling
	MaxSpeedAtDist  float64 `json:"max_speed_at_dist"`  // Distance (m) at which driving saturates
	MaxSpeedAtAngle float64 `json:"max_speed_at_angle"` // Heading error (rad) at which turning saturates

	// Magnitude floors
	MinDriveSpeed   float64 `json:"min_drive_speed"`
	MinTurningSpeed float64 `json:"min_turning_speed"`

	// Deadbands
	HeadingDeadBand  float64 `json:"heading_dead_band"`  // radians
	PositionDeadBand float64 `json:"position_dead_band"` // meters

	MaxMotorSpeed float64 `json:"max_motor_speed"`

	// EmitOnFinetuneReached also emits the (zero) turn command on the cycle
	// that completes finetuning. Older motor boards expect it.
	EmitOnFinetuneReached bool `json:"emit_on_finetune_reached"`
}

// DefaultConfig returns the configuration used on the rover.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.6,

		MaxSpeedAtDist:  5.0,         // full speed beyond 5 m
		MaxSpeedAtAngle: math.Pi / 2, // full turn rate beyond 90°

		MinDriveSpeed:   60,
		MinTurningSpeed: 50,

		HeadingDeadBand:  DefaultHeadingDeadBand,
		PositionDeadBand: DefaultPositionDeadBand,

		MaxMotorSpeed: DefaultMaxMotorSpeed,
	}
}

// SlowConfig returns a configuration for tight spaces.
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxMotorSpeed = 150
	cfg.MaxSpeedAtDist = 8.0
	cfg.MinDriveSpeed = 40
	cfg.MinTurningSpeed = 40
	return cfg
}

// AggressiveConfig returns a configuration for open terrain.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSpeedAtDist = 3.0
	cfg.MaxSpeedAtAngle = math.Pi / 4
	cfg.MinDriveSpeed = 90
	cfg.MinTurningSpeed = 70
	return cfg
}

// Validate checks that the configuration can produce clamped commands.
func (c Config) Validate() error {
	switch {
	case c.MaxMotorSpeed <= 0:
		return fmt.Errorf("%w: max_motor_speed must be > 0", ErrInvalidConfig)
	case c.MaxSpeedAtDist <= 0:
		return fmt.Errorf("%w: max_speed_at_dist must be > 0", ErrInvalidConfig)
	case c.MaxSpeedAtAngle <= 0:
		return fmt.Errorf("%w: max_speed_at_angle must be > 0", ErrInvalidConfig)
	case c.MinDriveSpeed < 0 || c.MinDriveSpeed > c.MaxMotorSpeed:
		return fmt.Errorf("%w: min_drive_speed must be in [0, max_motor_speed]", ErrInvalidConfig)
	case c.MinTurningSpeed < 0 || c.MinTurningSpeed > c.MaxMotorSpeed:
		return fmt.Errorf("%w: min_turning_speed must be in [0, max_motor_speed]", ErrInvalidConfig)
	case c.HeadingDeadBand <= 0 || c.HeadingDeadBand > math.Pi:
		return fmt.Errorf("%w: heading_dead_band must be in (0, pi]", ErrInvalidConfig)
	case c.PositionDeadBand <= 0:
		return fmt.Errorf("%w: position_dead_band must be > 0", ErrInvalidConfig)
	}
	return nil
}
