package robot

import (
	"fmt"
	"io"
	"math"
	"sync"

	"go.bug.st/serial"

	"github.com/teslashibe/go-rover/internal/log"
)

// DefaultBaudRate matches the motor controller firmware.
const DefaultBaudRate = 115200

// SerialDriver writes motor commands to a motor controller board as text
// lines of the form "M <left> <right>\n", magnitudes rounded to integers.
type SerialDriver struct {
	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

// NewSerialDriver opens portName at baud (8N1).
func NewSerialDriver(portName string, baud int) (*SerialDriver, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	log.Info("motor serial port open", "port", portName, "baud", baud)
	return NewSerialDriverFromPort(port), nil
}

// NewSerialDriverFromPort wraps an already-open port.
func NewSerialDriverFromPort(port io.WriteCloser) *SerialDriver {
	return &SerialDriver{port: port}
}

// FormatMotorLine renders the wire line for a command.
func FormatMotorLine(left, right float64) string {
	return fmt.Sprintf("M %d %d\n", int(math.Round(left)), int(math.Round(right)))
}

// SendMotor implements MotorSink.
func (d *SerialDriver) SendMotor(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(d.port, FormatMotorLine(left, right)); err != nil {
		return fmt.Errorf("write motor command: %w", err)
	}
	return nil
}

// Stop sends a zero command.
func (d *SerialDriver) Stop() error {
	return d.SendMotor(0, 0)
}

// Close stops the motors and closes the port.
func (d *SerialDriver) Close() error {
	if err := d.Stop(); err != nil && err != ErrClosed {
		log.Warn("stop before close failed", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.port.Close()
}
