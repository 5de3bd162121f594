package announce

import "time"

// processStart anchors the fallback uptime clock.
var processStart = time.Now()

// fallbackUptimeMillis measures milliseconds since process start. Go's
// time package carries a monotonic reading in every time.Time, so the
// difference is immune to wall clock jumps.
func fallbackUptimeMillis() int64 {
	return time.Since(processStart).Milliseconds()
}
