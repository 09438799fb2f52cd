// Package lifecycle holds process-wide run state: start time and the draining flag.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64
)

func init() {
	MarkStarted(time.Now())
}

// MarkStarted records when the service began serving. Uptime is measured from here.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// Uptime returns the time since MarkStarted.
func Uptime() time.Duration {
	return time.Since(time.Unix(0, startedAt.Load()))
}

// SetShuttingDown sets the draining flag. Call when SIGTERM/SIGINT is received.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
