package serialport

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", got.BaudRate)
	}
	if got.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", got.DataBits)
	}
	if got.StopBits != 1 {
		t.Errorf("StopBits = %d, want 1", got.StopBits)
	}
	if got.Parity != "N" {
		t.Errorf("Parity = %q, want %q", got.Parity, "N")
	}
}

func TestPortOptions_Normalize_ExplicitValues(t *testing.T) {
	got, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != 9600 || got.DataBits != 7 || got.StopBits != 2 || got.Parity != "E" {
		t.Errorf("Normalize() = %+v", got)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalize(); err == nil {
				t.Error("Normalize() error = nil, want error")
			}
		})
	}
}

func TestPortOptions_String(t *testing.T) {
	if got := (PortOptions{}).String(); got != "115200 8N1" {
		t.Errorf("String() = %q, want %q", got, "115200 8N1")
	}
	if got := (PortOptions{BaudRate: 9600, Parity: "odd", StopBits: 2}).String(); got != "9600 8O2" {
		t.Errorf("String() = %q, want %q", got, "9600 8O2")
	}
	if got := (PortOptions{DataBits: 12}).String(); got != "0 invalid" {
		t.Errorf("String() = %q", got)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		opts   PortOptions
		parity serial.Parity
		stop   serial.StopBits
	}{
		{PortOptions{}, serial.NoParity, serial.OneStopBit},
		{PortOptions{Parity: "E", StopBits: 2}, serial.EvenParity, serial.TwoStopBits},
		{PortOptions{Parity: "O"}, serial.OddParity, serial.OneStopBit},
	}
	for _, tt := range tests {
		mode, err := tt.opts.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode(%+v) error = %v", tt.opts, err)
		}
		if mode.BaudRate != 115200 {
			t.Errorf("BaudRate = %d", mode.BaudRate)
		}
		if mode.Parity != tt.parity {
			t.Errorf("Parity = %v, want %v", mode.Parity, tt.parity)
		}
		if mode.StopBits != tt.stop {
			t.Errorf("StopBits = %v, want %v", mode.StopBits, tt.stop)
		}
	}

	if _, err := (PortOptions{Parity: "X"}).SerialMode(); err == nil {
		t.Error("SerialMode() error = nil for bad parity")
	}
}
