package serialport

import (
	"bytes"
	"os"
	"sync"
	"time"
)

// FixturePort replays recorded device output for -dev runs without hardware.
// Playback starts when the first command is written, mirroring a device that
// only dumps its file on request.
type FixturePort struct {
	mu        sync.Mutex
	data      []byte
	pending   *bytes.Buffer
	triggered bool
	closed    bool
	timeout   time.Duration
	chunk     int
	written   []byte
}

// NewFixturePort serves data in chunks of at most chunk bytes per Read.
func NewFixturePort(data []byte, chunk int) *FixturePort {
	if chunk <= 0 {
		chunk = 64
	}
	return &FixturePort{data: data, pending: bytes.NewBuffer(nil), chunk: chunk}
}

// FixturePortFactory opens a FixturePort over the fixture file regardless of
// the requested device path.
func FixturePortFactory(fixturePath string) PortFactory {
	return PortFactoryFunc(func(string, PortOptions) (SerialPorter, error) {
		data, err := os.ReadFile(fixturePath)
		if err != nil {
			return nil, err
		}
		return NewFixturePort(data, 64), nil
	})
}

// Read returns the next chunk of fixture data. Before the trigger, or once the
// fixture is exhausted, it behaves like an idle device: it waits for the read
// timeout and returns no data.
func (f *FixturePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, os.ErrClosed
	}
	if f.pending.Len() == 0 {
		timeout := f.timeout
		f.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	if len(p) > f.chunk {
		p = p[:f.chunk]
	}
	defer f.mu.Unlock()
	return f.pending.Read(p)
}

// Write records the command and starts playback.
func (f *FixturePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	f.written = append(f.written, p...)
	if !f.triggered {
		f.triggered = true
		f.pending.Write(f.data)
	}
	return len(p), nil
}

// Close marks the port closed.
func (f *FixturePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetReadTimeout implements TimeoutSerialPorter.
func (f *FixturePort) SetReadTimeout(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = timeout
	return nil
}

// ResetInputBuffer implements InputResetter.
func (f *FixturePort) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Reset()
	return nil
}

// Written returns every command written so far.
func (f *FixturePort) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}
