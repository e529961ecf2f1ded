package app

import (
	"context"
	"time"

	"concurso-study-service/internal/domain"
	"github.com/google/uuid"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	DeleteIfIdle(sessionID string) bool
	// Prune closes and removes sessions idle for at least maxIdle.
	Prune(maxIdle time.Duration) int
	// Close tears down every session.
	Close()
}

// QuizService contains the quiz session use cases exposed to transports.
type QuizService struct {
	sessions    SessionRepository
	source      QuestionSource
	performance *PerformanceTracker
	sink        AnswerSink
	opts        []SessionOption
	newID       func() string
}

// NewQuizService wires sessions to one question source. Every answer feeds the
// performance tracker first and then events, which may be nil. performance must not be nil.
func NewQuizService(store SessionRepository, source QuestionSource, performance *PerformanceTracker, events AnswerSink, opts ...SessionOption) *QuizService {
	sink := FanoutSink{performance}
	if events != nil {
		sink = append(sink, events)
	}
	return &QuizService{
		sessions:    store,
		source:      source,
		performance: performance,
		sink:        sink,
		opts:        opts,
		newID:       uuid.NewString,
	}
}

// Create registers a fresh idle session.
func (s *QuizService) Create(_ context.Context) domain.SessionView {
	session := NewSession(s.newID(), s.source, s.sink, s.opts...)
	s.sessions.Add(session)
	return session.View()
}

// Start begins a run and blocks until the first question is shown or fails.
func (s *QuizService) Start(ctx context.Context, sessionID string, cfg domain.SessionConfig) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if err := session.Start(ctx, cfg); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

// Answer submits the chosen option for the current question.
func (s *QuizService) Answer(ctx context.Context, sessionID, optionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if _, err := session.SubmitAnswer(ctx, optionID); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

// Advance moves past a revealed question.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if err := session.Advance(ctx); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

// Reset returns the session to Idle, discarding the run.
func (s *QuizService) Reset(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session.Reset()
	return session.View(), nil
}

func (s *QuizService) View(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives session views.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionView, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Leave drops the session once nothing runs in it and no one is listening.
func (s *QuizService) Leave(_ context.Context, sessionID string) {
	s.sessions.DeleteIfIdle(sessionID)
}

// Close tears the session down and forgets it.
func (s *QuizService) Close(_ context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Close()
	s.sessions.Delete(sessionID)
	return nil
}

// PruneIdle forgets sessions that have been idle and unwatched for maxIdle.
func (s *QuizService) PruneIdle(maxIdle time.Duration) int {
	return s.sessions.Prune(maxIdle)
}

// Shutdown stops every clock and prefetch and closes all subscriptions.
func (s *QuizService) Shutdown(_ context.Context) {
	s.sessions.Close()
}

// Performance returns the current cross-session aggregate.
func (s *QuizService) Performance(_ context.Context) domain.Performance {
	return s.performance.Snapshot()
}

func (s *QuizService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
