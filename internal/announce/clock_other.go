//go:build !linux

package announce

// uptimeMillis returns milliseconds since process start on platforms
// without a readable system monotonic clock.
func uptimeMillis() int64 {
	return fallbackUptimeMillis()
}
