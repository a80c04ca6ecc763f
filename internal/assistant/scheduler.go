package assistant

import "time"

// DefaultUpdateInterval is the minimum time between two visible-content
// publishes for the same streaming message.
const DefaultUpdateInterval = 50 * time.Millisecond

// renderScheduler decides when the cleaned buffer is pushed to the visible
// transcript. It is not safe for concurrent use on its own; the engine
// mutates it only while holding the engine lock.
type renderScheduler struct {
	clock    Clock
	interval time.Duration

	lastPublished time.Time
	pending       bool
	timer         Timer
}

func newRenderScheduler(clock Clock, interval time.Duration) *renderScheduler {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return &renderScheduler{clock: clock, interval: interval}
}

// OnChunk is evaluated once per chunk arrival. It returns true when the
// caller should publish immediately. Otherwise, if nothing is pending yet,
// a single timer is armed for the remainder of the current window; chunks
// arriving while it is armed ride on that one timer so the deferred publish
// always picks up the then-current buffer.
func (s *renderScheduler) OnChunk(deferred func()) bool {
	now := s.clock.Now()
	elapsed := now.Sub(s.lastPublished)
	if elapsed >= s.interval && !s.pending {
		s.lastPublished = now
		return true
	}
	if !s.pending {
		s.pending = true
		delay := s.interval - elapsed
		if delay < 0 {
			delay = 0
		}
		s.timer = s.clock.AfterFunc(delay, deferred)
	}
	return false
}

// Fired acknowledges that the deferred publish ran.
func (s *renderScheduler) Fired() {
	s.pending = false
	s.timer = nil
	s.lastPublished = s.clock.Now()
}

// Stop cancels any scheduled publish. Called on completion, error and abort.
func (s *renderScheduler) Stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
}
