package assistant

import "time"

// Clock abstracts time so the render scheduler can be driven in tests
// without wall-clock sleeps.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a stoppable deferred call.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns a Clock backed by runtime timers.
func SystemClock() Clock {
	return systemClock{}
}
