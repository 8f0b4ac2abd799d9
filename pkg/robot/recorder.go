package robot

import (
	"sync"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

// Recorder is an in-memory Driver that records every command. It backs
// simulations and tests.
type Recorder struct {
	mu       sync.Mutex
	commands []pathtracker.MotorCommand
	err      error
	closed   bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent sends return err. nil clears it.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// SendMotor implements MotorSink.
func (r *Recorder) SendMotor(left, right float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.err != nil {
		return r.err
	}
	r.commands = append(r.commands, pathtracker.MotorCommand{Left: left, Right: right})
	return nil
}

// Stop records a zero command.
func (r *Recorder) Stop() error {
	return r.SendMotor(0, 0)
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []pathtracker.MotorCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pathtracker.MotorCommand, len(r.commands))
	copy(out, r.commands)
	return out
}

// Last returns the most recent command.
func (r *Recorder) Last() (pathtracker.MotorCommand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return pathtracker.MotorCommand{}, false
	}
	return r.commands[len(r.commands)-1], true
}

// Len returns the number of recorded commands.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}
