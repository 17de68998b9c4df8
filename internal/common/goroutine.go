package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn in a goroutine, logging instead of crashing on panic.
//
// Example:
//
//	common.SafeGo(logger, "retentionSweep", func() {
//	    scheduler.RunNow()
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer RecoverAndLog(logger, name)
		fn()
	}()
}

// RecoverAndLog is deferred at goroutine and request boundaries.
// It returns true when a panic was recovered.
func RecoverAndLog(logger arbor.ILogger, name string) bool {
	r := recover()
	if r == nil {
		return false
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", string(buf[:n])).
			Msg("Recovered from panic")
	}
	return true
}
