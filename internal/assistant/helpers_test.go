package assistant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// fakeClock drives the render scheduler deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock and fires due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// armedTimers counts timers that are scheduled but neither fired nor
// stopped.
func (c *fakeClock) armedTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// scriptedProvider lets a test hand-feed chunks to the engine and pick the
// terminal outcome per stream, with every step acknowledged only after the
// engine has processed it.
type scriptedProvider struct {
	mu    sync.Mutex
	calls []*scriptedStream
}

type scriptedStream struct {
	history []domain.Message
	chunks  chan string
	acks    chan struct{}
	done    chan error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{}
}

func (p *scriptedProvider) Stream(ctx context.Context, history []domain.Message, onChunk func(string)) error {
	st := &scriptedStream{
		history: history,
		chunks:  make(chan string),
		acks:    make(chan struct{}),
		done:    make(chan error),
	}
	p.mu.Lock()
	p.calls = append(p.calls, st)
	p.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-st.chunks:
			onChunk(c)
			st.acks <- struct{}{}
		case err := <-st.done:
			return err
		}
	}
}

// call waits for the i-th Stream invocation to open.
func (p *scriptedProvider) call(t *testing.T, i int) *scriptedStream {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.calls) > i {
			st := p.calls[i]
			p.mu.Unlock()
			return st
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("stream call %d never opened", i)
	return nil
}

// emit delivers one chunk and returns once the engine has processed it.
func (st *scriptedStream) emit(t *testing.T, chunk string) {
	t.Helper()
	select {
	case st.chunks <- chunk:
	case <-time.After(time.Second):
		t.Fatal("provider not consuming chunk")
	}
	select {
	case <-st.acks:
	case <-time.After(time.Second):
		t.Fatal("chunk never processed")
	}
}

// finish terminates the stream: nil completes it, non-nil fails it.
func (st *scriptedStream) finish(t *testing.T, err error) {
	t.Helper()
	select {
	case st.done <- err:
	case <-time.After(time.Second):
		t.Fatal("provider not consuming terminal signal")
	}
}

// fakeStore is an in-memory SessionStore counting operations.
type fakeStore struct {
	mu        sync.Mutex
	creates   int
	updates   int
	deletes   int
	nextID    int
	createErr error
	updateErr error
	sessions  map[string]domain.ChatSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]domain.ChatSession)}
}

func (s *fakeStore) Create(session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	session.ID = fmt.Sprintf("sess-%d", s.nextID)
	s.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (s *fakeStore) Update(session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrNotFound
	}
	s.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (s *fakeStore) Get(id string) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	clone := cloneSession(session)
	return &clone, nil
}

func (s *fakeStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *fakeStore) stored(id string) (domain.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *fakeStore) counts() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

func cloneSession(s domain.ChatSession) domain.ChatSession {
	msgs := make([]domain.Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

// recordingSink captures raw buffers handed to the command collaborator.
type recordingSink struct {
	mu       sync.Mutex
	raws     []string
	err      error
	panicMsg string
}

func (s *recordingSink) ParseCommands(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raws = append(s.raws, raw)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.err
}

func (s *recordingSink) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.raws))
	copy(out, s.raws)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *scriptedProvider, *fakeStore, *fakeClock, *recordingSink) {
	t.Helper()
	clock := newFakeClock()
	provider := newScriptedProvider()
	store := newFakeStore()
	sink := &recordingSink{}
	engine := NewEngine(provider, store, sink,
		Options{Clock: clock, UpdateInterval: 50 * time.Millisecond},
		zaptest.NewLogger(t))
	return engine, provider, store, clock, sink
}

// drainEvents collects everything until the channel closes.
func drainEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel never closed")
		}
	}
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
