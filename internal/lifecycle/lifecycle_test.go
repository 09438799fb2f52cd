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
}

func TestSetShuttingDown_Toggle(t *testing.T) {
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}

func TestUptime_FromMarkStarted(t *testing.T) {
	MarkStarted(time.Now().Add(-time.Hour))
	defer MarkStarted(time.Now())
	if up := Uptime(); up < time.Hour || up > time.Hour+time.Minute {
		t.Errorf("Uptime() = %v, want about 1h", up)
	}
}
