// Package robot provides motor sinks for differential-drive rovers and a
// watchdog that stops the motors when the pose stream stalls.
//
// Interfaces are kept small; consumers depend only on what they use.
package robot

import "errors"

// ErrClosed is returned by drivers after Close.
var ErrClosed = errors.New("robot: driver closed")

// MotorSink accepts signed left/right drive magnitudes. Delivery is
// fire-and-forget.
type MotorSink interface {
	SendMotor(left, right float64) error
}

// Stopper halts the motors.
type Stopper interface {
	Stop() error
}

// Driver is a motor sink owning a transport.
type Driver interface {
	MotorSink
	Stopper
	Close() error
}

// MotorSinkFunc adapts a function to MotorSink.
type MotorSinkFunc func(left, right float64) error

// SendMotor implements MotorSink.
func (f MotorSinkFunc) SendMotor(left, right float64) error {
	return f(left, right)
}

// Ensure drivers implement Driver
var (
	_ Driver = (*SerialDriver)(nil)
	_ Driver = (*HTTPDriver)(nil)
	_ Driver = (*Recorder)(nil)
)
