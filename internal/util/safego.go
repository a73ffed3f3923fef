package util

import (
	"runtime/debug"

	"github.com/lenspost/lenspost/internal/logging"
)

// SafeGo runs fn in a goroutine that recovers and logs panics instead of
// crashing the process. name identifies the goroutine in the log record.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("goroutine panic recovered",
					"goroutine", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
