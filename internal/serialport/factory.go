package serialport

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"go.bug.st/serial"
)

// RealPortFactory opens ports with go.bug.st/serial.
type RealPortFactory struct{}

// Open opens the serial device at path. A missing or invalid device maps to
// ErrDeviceNotFound.
func (RealPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
		}
		var portErr *serial.PortError
		if errors.As(err, &portErr) {
			switch portErr.Code() {
			case serial.PortNotFound, serial.InvalidSerialPort:
				return nil, fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, path, err)
			}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return port, nil
}

// PortLister enumerates candidate serial device paths.
type PortLister func() ([]string, error)

// SystemPorts lists the serial ports present on this machine.
func SystemPorts() ([]string, error) {
	return serial.GetPortsList()
}

// preferredPrefixes ranks USB CDC and USB-serial adapters, which is how the
// datalogger enumerates, ahead of on-board UARTs.
var preferredPrefixes = []string{
	"/dev/ttyACM",
	"/dev/ttyUSB",
	"/dev/cu.usbmodem",
	"/dev/cu.usbserial",
	"/dev/tty.usbmodem",
	"COM",
}

// FindPort picks the best candidate from lister. It returns ErrDeviceNotFound
// when nothing suitable is attached.
func FindPort(lister PortLister) (string, error) {
	ports, err := lister()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrDeviceNotFound
	}

	sorted := append([]string(nil), ports...)
	sort.SliceStable(sorted, func(i, j int) bool { return portLess(sorted[i], sorted[j]) })
	for _, prefix := range preferredPrefixes {
		for _, p := range sorted {
			if strings.HasPrefix(p, prefix) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no USB serial device among %s", ErrDeviceNotFound, strings.Join(sorted, ", "))
}

// portLess orders device names by prefix, then by trailing number, so COM3
// sorts before COM10.
func portLess(a, b string) bool {
	pa, na := splitPortNumber(a)
	pb, nb := splitPortNumber(b)
	if pa != pb {
		return pa < pb
	}
	if len(na) != len(nb) {
		return len(na) < len(nb)
	}
	return na < nb
}

func splitPortNumber(name string) (prefix, number string) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	number = strings.TrimLeft(name[i:], "0")
	return name[:i], number
}
