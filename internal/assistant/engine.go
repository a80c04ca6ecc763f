package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// StreamProvider opens one cancellable stream of incremental text chunks.
// Stream blocks until the stream is terminal: it invokes onChunk for every
// chunk in arrival order and returns nil on completion or the transport
// error otherwise. Cancelling ctx aborts the stream.
type StreamProvider interface {
	Stream(ctx context.Context, history []domain.Message, onChunk func(chunk string)) error
}

// SessionStore persists finished exchanges. Get returns (nil, nil) when no
// session with the given id exists.
type SessionStore interface {
	Create(session *domain.ChatSession) error
	Update(session *domain.ChatSession) error
	Get(id string) (*domain.ChatSession, error)
	Delete(id string) error
}

// CommandSink receives the raw (unfiltered) buffer of a completed stream,
// so embedded directives stay visible to it.
type CommandSink interface {
	ParseCommands(raw string) error
}

// Options tunes engine internals. The zero value uses production defaults.
type Options struct {
	UpdateInterval time.Duration
	Clock          Clock
}

const eventBuffer = 64

// Engine drives one conversation: it opens streams against the provider,
// aggregates chunks, publishes throttled cleaned snapshots, coordinates
// cancellation and persists the transcript once per completed exchange.
// At most one stream is live per engine at any time.
type Engine struct {
	provider StreamProvider
	store    SessionStore
	commands CommandSink
	clock    Clock
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	session domain.ChatSession
	active  *streamState
}

// streamState is the transient state of the one in-flight stream. It is
// created per send and discarded on completion, error or supersession.
type streamState struct {
	id     string
	cancel context.CancelFunc
	raw    strings.Builder
	sched  *renderScheduler
	events chan Event
}

// NewEngine creates an engine for a fresh, unsaved conversation.
func NewEngine(provider StreamProvider, store SessionStore, commands CommandSink, opts Options, log *zap.Logger) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		provider: provider,
		store:    store,
		commands: commands,
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

// Send submits a user message. Any previously active stream is aborted
// first, so exactly one stream is live afterwards. Send returns immediately
// with the stream id and a channel of events that is closed once the stream
// reaches a terminal state.
func (e *Engine) Send(ctx context.Context, content string) (<-chan Event, string, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, "", domain.ErrEmptyMessage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.abortLocked()

	now := e.clock.Now()
	e.session.Messages = append(e.session.Messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: now,
	})
	if e.session.Title == "" {
		e.session.Title = DeriveTitle(firstUserContent(e.session.Messages))
	}

	// History snapshot handed to the transport; excludes the placeholder.
	history := make([]domain.Message, len(e.session.Messages))
	copy(history, e.session.Messages)

	streamID := uuid.NewString()
	e.session.Messages = append(e.session.Messages, domain.Message{
		Role:        domain.RoleAssistant,
		Timestamp:   now,
		StreamID:    streamID,
		IsStreaming: true,
	})

	// The stream outlives the originating request.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st := &streamState{
		id:     streamID,
		cancel: cancel,
		sched:  newRenderScheduler(e.clock, e.interval),
		events: make(chan Event, eventBuffer),
	}
	e.active = st

	e.log.Debug("stream started", zap.String("stream_id", streamID), zap.String("session_id", e.session.ID))
	go e.run(streamCtx, streamID, history)

	return st.events, streamID, nil
}

func (e *Engine) run(ctx context.Context, streamID string, history []domain.Message) {
	err := e.provider.Stream(ctx, history, func(chunk string) {
		e.onChunk(streamID, chunk)
	})
	if err != nil {
		e.onError(streamID, err)
		return
	}
	e.onComplete(streamID)
}

// onChunk appends verbatim to the raw buffer and asks the scheduler for a
// render decision — once per chunk arrival.
func (e *Engine) onChunk(streamID, chunk string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.liveLocked(streamID)
	if st == nil {
		return
	}
	st.raw.WriteString(chunk)
	if st.sched.OnChunk(func() { e.deferredPublish(streamID) }) {
		e.publishLocked(st)
	}
}

// deferredPublish runs when the scheduler's single pending timer fires. It
// publishes the then-current cleaned buffer, not the state at schedule time.
func (e *Engine) deferredPublish(streamID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.liveLocked(streamID)
	if st == nil {
		return
	}
	st.sched.Fired()
	e.publishLocked(st)
}

func (e *Engine) publishLocked(st *streamState) {
	display := Clean(st.raw.String())
	if msg := e.streamingMessageLocked(st.id); msg != nil {
		msg.Content = display
	}
	e.emit(st, Event{Type: EventDelta, StreamID: st.id, Content: display})
}

// onComplete finalizes a successful exchange: unconditional final publish,
// command parsing on the raw buffer, then persistence.
func (e *Engine) onComplete(streamID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.liveLocked(streamID)
	if st == nil {
		return
	}
	st.sched.Stop()

	raw := st.raw.String()
	final := Clean(raw)
	if msg := e.streamingMessageLocked(streamID); msg != nil {
		msg.Content = final
		msg.IsStreaming = false
		msg.StreamID = ""
	}
	e.session.UpdatedAt = e.clock.Now()

	e.parseCommands(raw)

	if err := e.persistLocked(); err != nil {
		e.log.Error("failed to persist session", zap.String("stream_id", streamID), zap.Error(err))
		e.emit(st, Event{Type: EventNotice, StreamID: streamID, Content: "failed to save conversation: " + err.Error()})
	}

	e.emit(st, Event{Type: EventDone, StreamID: streamID, Content: final, SessionID: e.session.ID})
	close(st.events)
	e.active = nil
	e.log.Debug("stream completed", zap.String("stream_id", streamID), zap.Int("raw_len", len(raw)))
}

// onError finalizes a failed exchange: the partial buffer is discarded,
// the turn shows a short error description and nothing is persisted.
func (e *Engine) onError(streamID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.liveLocked(streamID)
	if st == nil {
		return
	}
	st.sched.Stop()

	text := userFacingError(err)
	if msg := e.streamingMessageLocked(streamID); msg != nil {
		msg.Content = text
		msg.IsStreaming = false
		msg.StreamID = ""
	}
	e.log.Warn("stream failed", zap.String("stream_id", streamID), zap.Error(err))
	e.emit(st, Event{Type: EventError, StreamID: streamID, Content: text})
	close(st.events)
	e.active = nil
}

// CancelActive aborts the in-flight stream, if any. The partial cleaned
// text stays visible; nothing is persisted for the aborted turn.
func (e *Engine) CancelActive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortLocked()
}

// Close tears the engine down, aborting unconditionally.
func (e *Engine) Close() {
	e.CancelActive()
}

// NewSession aborts any active stream and resets to an empty, unsaved
// conversation.
func (e *Engine) NewSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortLocked()
	e.session = domain.ChatSession{}
}

// LoadSession aborts any active stream and replaces the conversation with a
// stored session.
func (e *Engine) LoadSession(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortLocked()

	stored, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if stored == nil {
		return domain.ErrNotFound
	}
	e.session = *stored
	return nil
}

// DeleteSession removes a stored session. If it is the one currently
// loaded, the conversation resets to an empty one first.
func (e *Engine) DeleteSession(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.ID == id {
		e.abortLocked()
		e.session = domain.ChatSession{}
	}
	return e.store.Delete(id)
}

// ForgetSession resets the conversation if it currently holds the given
// session, without touching the store. Used when another conversation
// deleted the record.
func (e *Engine) ForgetSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.ID == id {
		e.abortLocked()
		e.session = domain.ChatSession{}
	}
}

// View returns the read model for the hosting UI.
func (e *Engine) View() domain.ConversationView {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := make([]domain.Message, len(e.session.Messages))
	copy(msgs, e.session.Messages)
	return domain.ConversationView{
		SessionID:   e.session.ID,
		Title:       e.session.Title,
		Messages:    msgs,
		IsStreaming: e.active != nil,
	}
}

// Messages returns a copy of the current message sequence.
func (e *Engine) Messages() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := make([]domain.Message, len(e.session.Messages))
	copy(msgs, e.session.Messages)
	return msgs
}

// IsStreaming reports whether a stream is currently active.
func (e *Engine) IsStreaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// SessionID returns the persisted id of the current session, or "".
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

// abortLocked tears down the active stream. Aborting only prevents future
// callbacks from mutating state — liveness is rechecked by stream id — so
// late completion or error signals from a superseded stream are inert.
func (e *Engine) abortLocked() {
	st := e.active
	if st == nil {
		return
	}
	st.cancel()
	st.sched.Stop()

	display := Clean(st.raw.String())
	if msg := e.streamingMessageLocked(st.id); msg != nil {
		msg.Content = display
		msg.IsStreaming = false
		msg.StreamID = ""
	}
	e.log.Debug("stream aborted", zap.String("stream_id", st.id))
	e.emit(st, Event{Type: EventCancelled, StreamID: st.id, Content: display})
	close(st.events)
	e.active = nil
}

// liveLocked returns the active stream state only if it matches streamID.
func (e *Engine) liveLocked(streamID string) *streamState {
	if e.active == nil || e.active.id != streamID {
		return nil
	}
	return e.active
}

// streamingMessageLocked returns the message being filled by streamID. It
// is always the most recently appended message.
func (e *Engine) streamingMessageLocked(streamID string) *domain.Message {
	if n := len(e.session.Messages); n > 0 {
		msg := &e.session.Messages[n-1]
		if msg.StreamID == streamID {
			return msg
		}
	}
	return nil
}

func (e *Engine) persistLocked() error {
	snapshot := e.snapshotLocked()
	if e.session.ID == "" {
		if err := e.store.Create(&snapshot); err != nil {
			return err
		}
		e.session.ID = snapshot.ID
		return nil
	}
	return e.store.Update(&snapshot)
}

func (e *Engine) snapshotLocked() domain.ChatSession {
	msgs := make([]domain.Message, len(e.session.Messages))
	copy(msgs, e.session.Messages)
	return domain.ChatSession{
		ID:        e.session.ID,
		Title:     e.session.Title,
		Messages:  msgs,
		UpdatedAt: e.session.UpdatedAt,
	}
}

// parseCommands hands the raw buffer to the external command collaborator.
// Its failures must never prevent the transcript from being shown or saved.
func (e *Engine) parseCommands(raw string) {
	if e.commands == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("command parser panicked", zap.Any("panic", r))
		}
	}()
	if err := e.commands.ParseCommands(raw); err != nil {
		e.log.Warn("command parsing failed", zap.Error(err))
	}
}

// emit never blocks: a consumer that falls behind loses intermediate
// snapshots, and the terminal state is always observable through the read
// model and the channel close.
func (e *Engine) emit(st *streamState, ev Event) {
	select {
	case st.events <- ev:
	default:
		e.log.Debug("event dropped, consumer behind",
			zap.String("stream_id", ev.StreamID), zap.String("type", string(ev.Type)))
	}
}

func firstUserContent(messages []domain.Message) string {
	for _, msg := range messages {
		if msg.Role == domain.RoleUser {
			return msg.Content
		}
	}
	return ""
}

func userFacingError(err error) string {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return "Sorry, something went wrong while generating a response."
	}
	return "Sorry, the response could not be completed: " + err.Error()
}
