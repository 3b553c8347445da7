package voltgo

import (
	"fmt"
	"runtime/debug"
)

// runSafely executes fn and converts panics into returned errors tagged with
// scope. It guards every handler invocation so one faulting handler cannot
// crash the session; the recovered stack rides along in the error so the
// faulting handler can be located from the log line alone.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v\n%s", scope, recovered, debug.Stack())
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
