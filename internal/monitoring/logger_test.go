package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestCapture(t *testing.T) {
	lines, restore := Capture()
	Logf("captured %d lines", 3)
	Logf("done")
	restore()
	Logf("after restore")

	if len(*lines) != 2 {
		t.Fatalf("captured %d lines, want 2: %q", len(*lines), *lines)
	}
	if (*lines)[0] != "captured 3 lines" {
		t.Errorf("first line = %q", (*lines)[0])
	}
}
