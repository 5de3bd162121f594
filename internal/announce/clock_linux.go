//go:build linux

package announce

import "golang.org/x/sys/unix"

// uptimeMillis returns milliseconds on the system monotonic clock, so
// event timestamps from separate processes share one timeline.
func uptimeMillis() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackUptimeMillis()
	}
	return int64(ts.Sec)*1000 + int64(ts.Nsec)/1_000_000
}
