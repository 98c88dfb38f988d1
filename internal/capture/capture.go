// Package capture runs one timed session against the IMU datalogger: it
// triggers a dump over the serial port and keeps the lines that look like
// sample data.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/imu.capture/internal/monitoring"
	"github.com/banshee-data/imu.capture/internal/serialport"
	"github.com/banshee-data/imu.capture/internal/timeutil"
)

// maxLineBytes bounds a single line; the device never emits rows this long.
const maxLineBytes = 64 * 1024

// Options configures one capture session.
type Options struct {
	// Port is the device path to open.
	Port string
	// Serial holds the line settings; the zero value means 115200 8N1.
	Serial serialport.PortOptions
	// Timeout is the total capture duration measured from the trigger.
	Timeout time.Duration
	// PollInterval bounds each read so the deadline is observed promptly.
	PollInterval time.Duration
	// Command is sent once, newline-terminated, to start the dump.
	Command string
	// Header is the literal header row accepted alongside digit-led lines.
	Header string
}

// Session is the result of one capture.
type Session struct {
	ID        string
	Port      string
	BaudRate  int
	Command   string
	StartedAt time.Time
	Duration  time.Duration
	// Lines holds the accepted lines in arrival order.
	Lines []string
	// Discarded counts lines rejected by the filter.
	Discarded int
}

// Empty reports whether the session captured no lines.
func (s *Session) Empty() bool {
	return s == nil || len(s.Lines) == 0
}

// Capturer opens ports through a factory and runs capture sessions.
type Capturer struct {
	ports serialport.PortFactory
	clock timeutil.Clock
}

// NewCapturer returns a Capturer. A nil clock uses the real clock.
func NewCapturer(ports serialport.PortFactory, clock timeutil.Clock) *Capturer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Capturer{ports: ports, clock: clock}
}

// Capture opens the port, clears pending input, sends the trigger command and
// collects accepted lines until opts.Timeout elapses, ctx is cancelled or the
// port reaches EOF. The port is closed before Capture returns. An empty
// session is not an error; callers decide what no data means.
func (c *Capturer) Capture(ctx context.Context, opts Options) (*Session, error) {
	serialOpts, err := opts.Serial.Normalize()
	if err != nil {
		return nil, err
	}

	port, err := c.ports.Open(opts.Port, serialOpts)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	if r, ok := port.(serialport.InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("failed to reset input buffer: %w", err)
		}
	}
	if tp, ok := port.(serialport.TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(poll); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}

	session := &Session{
		ID:        uuid.NewString(),
		Port:      opts.Port,
		BaudRate:  serialOpts.BaudRate,
		Command:   opts.Command,
		StartedAt: c.clock.Now(),
	}

	if err := sendCommand(port, opts.Command); err != nil {
		return nil, err
	}
	monitoring.Logf("sent %q to %s (%s), capturing for %s", opts.Command, opts.Port, serialOpts, opts.Timeout)

	deadline := c.clock.Now().Add(opts.Timeout)
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// Ports without a read timeout can block indefinitely; closing them at the
	// wall-clock deadline unblocks the pending read.
	if _, ok := port.(serialport.TimeoutSerialPorter); !ok {
		stop := context.AfterFunc(ctx, func() { port.Close() })
		defer stop()
	}

	filter := Filter{Header: opts.Header}
	backoff := poll / 10
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	reader := &deadlineReader{ctx: ctx, r: port, clock: c.clock, deadline: deadline, backoff: backoff}
	scan := bufio.NewScanner(reader)
	scan.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scan.Scan() {
		line := decodeLine(scan.Bytes())
		if filter.Accept(line) {
			session.Lines = append(session.Lines, line)
		} else {
			session.Discarded++
		}
	}
	session.Duration = c.clock.Since(session.StartedAt)

	if err := scan.Err(); err != nil && !reader.done() {
		return session, fmt.Errorf("failed to read from %s: %w", opts.Port, err)
	}

	monitoring.Logf("captured %d lines (%d discarded) in %s", len(session.Lines), session.Discarded, session.Duration)
	return session, nil
}

func sendCommand(w io.Writer, command string) error {
	payload := []byte(command + "\n")
	n, err := w.Write(payload)
	if err != nil {
		return fmt.Errorf("failed to send command %q: %w", command, err)
	}
	if n != len(payload) {
		return fmt.Errorf("failed to send command %q: short write (%d of %d bytes)", command, n, len(payload))
	}
	return nil
}

// deadlineReader turns timed-out serial reads into a bounded wait. Once the
// clock passes the deadline or ctx is done it reports EOF so the scanner
// flushes any partial final line.
type deadlineReader struct {
	ctx      context.Context
	r        io.Reader
	clock    timeutil.Clock
	deadline time.Time
	backoff  time.Duration
}

func (d *deadlineReader) done() bool {
	return d.ctx.Err() != nil || !d.clock.Now().Before(d.deadline)
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	for {
		if d.done() {
			return 0, io.EOF
		}
		n, err := d.r.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			if d.done() || errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		// read timeout with nothing buffered: yield before polling again
		d.clock.Sleep(d.backoff)
	}
}
