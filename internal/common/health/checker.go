// Package health exposes the control plane's readiness over HTTP. A checker
// failing means the instance should not receive operator traffic yet.
package health

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

type Checker interface {
	Check() error
}

// StartupCompleteChecker reports failure until the owning component marks
// startup as finished.
type StartupCompleteChecker struct {
	complete atomic.Value
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	checker := &StartupCompleteChecker{}
	checker.complete.Store(false)
	return checker
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.complete.Store(true)
}

func (c *StartupCompleteChecker) Check() error {
	if complete, ok := c.complete.Load().(bool); ok && complete {
		return nil
	}
	return errors.New("startup is not complete")
}
