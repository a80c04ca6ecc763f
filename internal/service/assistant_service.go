package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/assistant"
	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/repository"
)

// AssistantService owns one assistant engine per conversation key. The key
// is chosen by the hosting UI (typically one per open assistant panel), so
// each client gets the engine's single-live-stream guarantees while the
// session store is shared.
type AssistantService struct {
	provider    assistant.StreamProvider
	sessionRepo *repository.SessionRepository
	commands    assistant.CommandSink
	cfg         config.AssistantConfig
	log         *zap.Logger

	mu      sync.Mutex
	engines map[string]*assistant.Engine
}

// NewAssistantService creates a new assistant service
func NewAssistantService(
	provider assistant.StreamProvider,
	sessionRepo *repository.SessionRepository,
	commands assistant.CommandSink,
	cfg config.AssistantConfig,
	log *zap.Logger,
) *AssistantService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssistantService{
		provider:    provider,
		sessionRepo: sessionRepo,
		commands:    commands,
		cfg:         cfg,
		log:         log,
		engines:     make(map[string]*assistant.Engine),
	}
}

// Engine returns the engine for a conversation key, creating it on first
// use.
func (s *AssistantService) Engine(conv string) *assistant.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if engine, ok := s.engines[conv]; ok {
		return engine
	}
	engine := assistant.NewEngine(
		s.provider,
		s.sessionRepo,
		s.commands,
		assistant.Options{UpdateInterval: s.cfg.UpdateInterval},
		s.log.With(zap.String("conversation", conv)),
	)
	s.engines[conv] = engine
	return engine
}

// ListSessions returns stored session summaries, newest first.
func (s *AssistantService) ListSessions() ([]*domain.SessionSummary, error) {
	return s.sessionRepo.List()
}

// GetSession returns a stored session with its transcript.
func (s *AssistantService) GetSession(id string) (*domain.ChatSession, error) {
	session, err := s.sessionRepo.Get(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// DeleteSession removes a stored session and resets any conversation that
// currently holds it.
func (s *AssistantService) DeleteSession(id string) error {
	if err := s.sessionRepo.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	engines := make([]*assistant.Engine, 0, len(s.engines))
	for _, engine := range s.engines {
		engines = append(engines, engine)
	}
	s.mu.Unlock()

	for _, engine := range engines {
		engine.ForgetSession(id)
	}
	return nil
}

// Close tears down every engine, aborting in-flight streams.
func (s *AssistantService) Close() {
	s.mu.Lock()
	engines := make([]*assistant.Engine, 0, len(s.engines))
	for _, engine := range s.engines {
		engines = append(engines, engine)
	}
	s.engines = make(map[string]*assistant.Engine)
	s.mu.Unlock()

	for _, engine := range engines {
		engine.Close()
	}
}
