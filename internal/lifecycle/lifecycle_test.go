package lifecycle

import (
	"testing"
	"time"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
	if d := DrainingFor(); d != 0 {
		t.Errorf("DrainingFor() = %v while serving, want 0", d)
	}
}

func TestSetShuttingDown_KeepsFirstDrainTime(t *testing.T) {
	SetShuttingDown(true)
	defer SetShuttingDown(false)
	if !IsShuttingDown() {
		t.Fatal("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
	time.Sleep(5 * time.Millisecond)
	first := DrainingFor()
	SetShuttingDown(true)
	if again := DrainingFor(); again < first {
		t.Errorf("DrainingFor() went from %v to %v, second SetShuttingDown(true) reset the start time", first, again)
	}
}

func TestSetShuttingDown_FalseClears(t *testing.T) {
	SetShuttingDown(true)
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}
