// Package serialport opens and abstracts the serial connection to the IMU
// datalogger so capture code can run against real hardware, fixtures or test
// doubles.
package serialport

import (
	"errors"
	"io"
	"time"
)

// ErrDeviceNotFound is returned when no serial device is configured or
// available.
var ErrDeviceNotFound = errors.New("serial device not found")

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// This is an optional interface that serial ports may implement.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// InputResetter is implemented by ports that can discard pending input.
type InputResetter interface {
	ResetInputBuffer() error
}

// PortFactory defines an interface for creating serial ports.
// This abstraction enables dependency injection of serial port creation.
type PortFactory interface {
	// Open opens a serial port at the specified path with the given options.
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// PortFactoryFunc adapts a function to PortFactory.
type PortFactoryFunc func(path string, opts PortOptions) (SerialPorter, error)

// Open calls f.
func (f PortFactoryFunc) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}
