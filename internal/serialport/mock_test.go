package serialport

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTestableSerialPort_ReadWrite(t *testing.T) {
	p := NewTestableSerialPort()
	p.AddReadData([]byte("hello"))

	buf := make([]byte, 16)
	n, err := p.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}
	if _, err := p.Read(buf); err != io.EOF {
		t.Errorf("Read() on empty buffer error = %v, want io.EOF", err)
	}

	if _, err := p.Write([]byte("d\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if string(p.GetWrittenData()) != "d\n" {
		t.Errorf("GetWrittenData() = %q", p.GetWrittenData())
	}
}

func TestTestableSerialPort_IdleReads(t *testing.T) {
	p := NewTestableSerialPort()
	p.IdleReads = true
	n, err := p.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Errorf("Read() = %d, %v; want 0, nil", n, err)
	}
}

func TestTestableSerialPort_OnWriteQueuesResponse(t *testing.T) {
	p := NewTestableSerialPort()
	p.OnWrite = func([]byte) { p.AddReadData([]byte("1,2\n")) }
	p.Write([]byte("d\n"))

	buf := make([]byte, 8)
	n, _ := p.Read(buf)
	if string(buf[:n]) != "1,2\n" {
		t.Errorf("Read() = %q, want response queued by OnWrite", buf[:n])
	}
}

func TestTestableSerialPort_ResetAndErrors(t *testing.T) {
	p := NewTestableSerialPort()
	p.AddReadData([]byte("stale"))
	if err := p.ResetInputBuffer(); err != nil {
		t.Fatal(err)
	}
	if p.InputResets != 1 || p.ReadBuffer.Len() != 0 {
		t.Errorf("ResetInputBuffer did not discard input")
	}

	boom := errors.New("boom")
	p.ReadError = boom
	if _, err := p.Read(make([]byte, 1)); err != boom {
		t.Errorf("Read() error = %v, want injected", err)
	}
	p.WriteError = boom
	if _, err := p.Write([]byte("x")); err != boom {
		t.Errorf("Write() error = %v, want injected", err)
	}

	p.Close()
	if !p.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if _, err := p.Read(make([]byte, 1)); err == nil {
		t.Error("Read() after Close should fail")
	}
}

func TestTestableSerialPort_BlockedReadUnblocksOnClose(t *testing.T) {
	p := NewTestableSerialPort()
	p.BlockReads = true

	done := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("blocked Read() returned nil error after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Read() did not return after Close")
	}
}

func TestMockPortFactory(t *testing.T) {
	port := NewTestableSerialPort()
	f := NewMockPortFactory(port)
	if f.LastCall() != nil {
		t.Error("LastCall() should be nil before Open")
	}

	got, err := f.Open("/dev/ttyACM0", PortOptions{BaudRate: 115200})
	if err != nil || got != port {
		t.Fatalf("Open() = %v, %v", got, err)
	}
	if c := f.LastCall(); c == nil || c.Path != "/dev/ttyACM0" || c.Opts.BaudRate != 115200 {
		t.Errorf("LastCall() = %+v", c)
	}

	f.Error = ErrDeviceNotFound
	if _, err := f.Open("x", PortOptions{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Open() error = %v", err)
	}
}

func TestFixturePort_PlaysAfterCommand(t *testing.T) {
	p := NewFixturePort([]byte("header\n1,2\n"), 4)
	p.SetReadTimeout(time.Millisecond)

	buf := make([]byte, 16)
	if n, err := p.Read(buf); n != 0 || err != nil {
		t.Fatalf("Read() before trigger = %d, %v; want idle", n, err)
	}

	p.Write([]byte("d\n"))

	var got []byte
	for i := 0; i < 10; i++ {
		n, err := p.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		if n > 4 {
			t.Fatalf("Read() returned %d bytes, chunk is 4", n)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "header\n1,2\n" {
		t.Errorf("played back %q", got)
	}
	if string(p.Written()) != "d\n" {
		t.Errorf("Written() = %q", p.Written())
	}

	// a second command does not replay the fixture
	p.Write([]byte("d\n"))
	if n, _ := p.Read(buf); n != 0 {
		t.Errorf("fixture replayed on second command")
	}

	p.Close()
	if _, err := p.Read(buf); err == nil {
		t.Error("Read() after Close should fail")
	}
}

func TestFixturePortFactory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.txt")
	if err := os.WriteFile(path, []byte("1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	port, err := FixturePortFactory(path).Open("/dev/anything", PortOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := port.(*FixturePort); !ok {
		t.Errorf("Open() returned %T", port)
	}

	if _, err := FixturePortFactory(filepath.Join(t.TempDir(), "none")).Open("", PortOptions{}); err == nil {
		t.Error("Open() error = nil for missing fixture")
	}
}
