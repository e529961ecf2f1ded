package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concurso-study-service/internal/domain"
)

// QuestionSource generates one fresh question for a filter.
type QuestionSource interface {
	Generate(ctx context.Context, filter domain.Filter) (domain.Question, error)
}

// AnswerSink receives exactly one event per submitted answer.
type AnswerSink interface {
	QuestionAnswered(ctx context.Context, correct bool, subject string)
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTickInterval sets the clock period. Zero disables the background clock;
// Tick must then be called by the owner.
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.tickInterval = d }
}

// WithNow overrides the wall clock used for elapsed time and view timestamps.
func WithNow(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionLogger sets the logger used for background failures.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithPrefetchTimeout bounds every background prefetch call.
func WithPrefetchTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.prefetchTimeout = d }
}

// Session is the quiz session state machine. Every mutation happens under mu;
// asynchronous results (clock ticks, prefetch fills, blocking fetches) carry
// the run number they were started in and are dropped when it no longer matches.
type Session struct {
	id              string
	source          QuestionSource
	sink            AnswerSink
	logger          *slog.Logger
	now             func() time.Time
	tickInterval    time.Duration
	prefetchTimeout time.Duration
	prefetch        *prefetchBuffer

	mu          sync.Mutex
	run         uint64
	phase       domain.Phase
	cfg         domain.SessionConfig
	configured  bool
	current     *domain.Question
	answer      *domain.AnswerRecord
	answered    int
	correct     int
	remaining   int
	startedAt   time.Time
	summary     *domain.Summary
	advancing   bool
	clock       *sessionClock
	closed      bool
	lastActive  time.Time
	subscribers map[chan domain.SessionView]struct{}
}

// NewSession builds an idle session. A nil sink discards answer events.
func NewSession(id string, source QuestionSource, sink AnswerSink, opts ...SessionOption) *Session {
	s := &Session{
		id:           id,
		source:       source,
		sink:         sink,
		logger:       slog.Default(),
		now:          time.Now,
		tickInterval: time.Second,
		phase:        domain.PhaseIdle,
		subscribers:  make(map[chan domain.SessionView]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = discardSink{}
	}
	s.lastActive = s.now()
	s.logger = s.logger.With("session_id", id)
	s.prefetch = newPrefetchBuffer(s.generate, s.logger, s.prefetchTimeout)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start validates cfg, resets counters and loads the first question.
// On generation failure the session returns to Idle.
func (s *Session) Start(ctx context.Context, cfg domain.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if s.phase != domain.PhaseIdle && s.phase != domain.PhaseFinished {
		s.mu.Unlock()
		return domain.ErrSessionRunning
	}
	s.teardownLocked()
	s.run++
	run := s.run
	s.cfg = cfg
	s.configured = true
	s.answered = 0
	s.correct = 0
	s.remaining = cfg.TimeLimitMinutes * 60
	s.current = nil
	s.answer = nil
	s.summary = nil
	s.phase = domain.PhaseLoading
	s.broadcastLocked()
	s.mu.Unlock()

	q, err := s.generate(ctx, cfg.Filter())

	s.mu.Lock()
	defer s.mu.Unlock()
	if run != s.run || s.phase != domain.PhaseLoading {
		return domain.ErrSessionSuperseded
	}
	if err != nil {
		s.phase = domain.PhaseIdle
		s.broadcastLocked()
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	s.startedAt = s.now()
	s.clock = startClock(s.tickInterval, func() { s.tickRun(run) })
	s.showLocked(q)
	return nil
}

// SubmitAnswer scores optionID against the current question and emits one
// performance event. Answers outside the Active phase leave the counters untouched.
func (s *Session) SubmitAnswer(ctx context.Context, optionID string) (domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseActive || s.current == nil {
		return domain.AnswerRecord{}, domain.ErrAnswerNotAccepted
	}
	if !s.current.HasOption(optionID) {
		return domain.AnswerRecord{}, domain.ErrOptionNotFound
	}

	correct := optionID == s.current.CorrectAnswerID
	s.answered++
	if correct {
		s.correct++
	}
	s.sink.QuestionAnswered(ctx, correct, string(s.cfg.Materia))

	s.answer = &domain.AnswerRecord{SelectedID: optionID, Correct: correct, ExplanationVisible: true}
	s.phase = domain.PhaseRevealed
	s.broadcastLocked()
	return *s.answer, nil
}

// Advance moves past a revealed question: it finishes the session once the
// target is reached, otherwise shows the buffered question or fetches one.
// A failed fetch keeps the session in Revealed so the caller can retry.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != domain.PhaseRevealed || s.advancing {
		s.mu.Unlock()
		return nil
	}
	if s.answered >= s.cfg.QuestionCount {
		s.finishLocked(false)
		s.mu.Unlock()
		return nil
	}
	if q, ok := s.prefetch.take(); ok {
		s.showLocked(q)
		s.mu.Unlock()
		return nil
	}

	s.advancing = true
	run := s.run
	filter := s.cfg.Filter()
	s.mu.Unlock()

	q, err := s.generate(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if run != s.run {
		return domain.ErrSessionSuperseded
	}
	s.advancing = false
	if err != nil {
		s.broadcastLocked()
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	s.showLocked(q)
	return nil
}

// Tick advances the countdown by one second. Reaching zero finishes the session.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked()
}

// Reset stops the current run and returns to Idle. Performance stays untouched.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.run++
	s.phase = domain.PhaseIdle
	s.answered = 0
	s.correct = 0
	s.remaining = 0
	s.current = nil
	s.answer = nil
	s.summary = nil
	s.broadcastLocked()
}

// Close tears the session down and closes every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.teardownLocked()
	s.run++
	s.closed = true
	s.phase = domain.PhaseIdle
	s.current = nil
	s.answer = nil
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// View returns the current snapshot.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Phase returns the lifecycle phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Subscribe returns a channel receiving a view after every change, starting
// with the current one. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
			s.lastActive = s.now()
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Idle reports whether nothing is running and no one is listening.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.runningLocked() && len(s.subscribers) == 0
}

// Stale reports whether the session has been idle, with no watcher, for at
// least maxIdle.
func (s *Session) Stale(maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() || len(s.subscribers) > 0 {
		return false
	}
	return s.now().Sub(s.lastActive) >= maxIdle
}

func (s *Session) runningLocked() bool {
	return s.phase == domain.PhaseLoading || s.phase == domain.PhaseActive || s.phase == domain.PhaseRevealed
}

// generate is the single fetch path for blocking loads and prefetch fills;
// questions breaking the question invariants never reach the session.
func (s *Session) generate(ctx context.Context, filter domain.Filter) (domain.Question, error) {
	q, err := s.source.Generate(ctx, filter)
	if err != nil {
		return domain.Question{}, err
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (s *Session) tickRun(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run != s.run {
		return
	}
	s.tickLocked()
}

func (s *Session) tickLocked() {
	if s.phase != domain.PhaseActive && s.phase != domain.PhaseRevealed {
		return
	}
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.finishLocked(true)
		return
	}
	s.broadcastLocked()
}

// showLocked makes q the current question and re-arms the prefetch when
// another question will be needed after this one.
func (s *Session) showLocked(q domain.Question) {
	s.current = &q
	s.answer = nil
	s.phase = domain.PhaseActive
	if s.answered+1 < s.cfg.QuestionCount {
		run := s.run
		s.prefetch.fill(s.cfg.Filter(), func() { s.prefetched(run) })
	}
	s.broadcastLocked()
}

func (s *Session) prefetched(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run != s.run {
		return
	}
	s.broadcastLocked()
}

// finishLocked is the single entry into Finished for a run; the run bump
// makes every later tick, fill or fetch of that run a no-op.
func (s *Session) finishLocked(timedOut bool) {
	s.teardownLocked()
	s.run++
	s.phase = domain.PhaseFinished
	s.current = nil
	s.answer = nil

	elapsed := int(s.now().Sub(s.startedAt).Round(time.Second) / time.Second)
	if timedOut {
		elapsed = s.cfg.TimeLimitMinutes * 60
	}
	if elapsed < 0 {
		elapsed = 0
	}
	summary := &domain.Summary{
		Answered:       s.answered,
		Correct:        s.correct,
		Target:         s.cfg.QuestionCount,
		ElapsedSeconds: elapsed,
		TimedOut:       timedOut,
	}
	if s.answered > 0 {
		summary.Accuracy = float64(s.correct) / float64(s.answered)
		summary.AverageSeconds = float64(elapsed) / float64(s.answered)
	}
	s.summary = summary
	s.broadcastLocked()
}

func (s *Session) teardownLocked() {
	if s.clock != nil {
		s.clock.stop()
		s.clock = nil
	}
	s.prefetch.invalidate()
	s.advancing = false
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:        s.id,
		Phase:            s.phase,
		Answered:         s.answered,
		Correct:          s.correct,
		RemainingSeconds: s.remaining,
		UpdatedAt:        s.now(),
	}
	if s.configured {
		cfg := s.cfg
		view.Config = &cfg
	}
	if s.current != nil {
		view.Question = domain.NewQuestionView(*s.current, s.phase == domain.PhaseRevealed)
	}
	if s.answer != nil {
		answer := *s.answer
		view.Answer = &answer
	}
	if s.summary != nil {
		summary := *s.summary
		view.Summary = &summary
	}
	if s.phase == domain.PhaseActive || s.phase == domain.PhaseRevealed {
		view.NextReady = s.prefetch.ready()
	}
	return view
}

func (s *Session) broadcastLocked() {
	s.lastActive = s.now()
	if len(s.subscribers) == 0 {
		return
	}
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Slow reader: replace its oldest pending view with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

type discardSink struct{}

func (discardSink) QuestionAnswered(context.Context, bool, string) {}
