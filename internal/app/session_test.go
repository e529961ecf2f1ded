package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"concurso-study-service/internal/app"
	"concurso-study-service/internal/domain"
)

func TestSessionScenarioThreeQuestions(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	sink := &recordingSink{}
	session := newManualSession(source, sink)

	if err := session.Start(ctx, testConfig(3, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []string{"A", "B", "A"} // correct, incorrect, correct
	for i, opt := range answers {
		session.WaitPrefetch()
		if _, err := session.SubmitAnswer(ctx, opt); err != nil {
			t.Fatalf("answer %d: %v", i+1, err)
		}
		if err := session.Advance(ctx); err != nil {
			t.Fatalf("advance %d: %v", i+1, err)
		}
	}

	view := session.View()
	if view.Phase != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", view.Phase)
	}
	if view.Answered != 3 || view.Correct != 2 {
		t.Fatalf("expected answered=3 correct=2, got answered=%d correct=%d", view.Answered, view.Correct)
	}
	if view.Summary == nil || view.Summary.TimedOut || view.Summary.Answered != 3 {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
	if view.Question != nil {
		t.Fatalf("expected no question once finished")
	}
	if got := source.Calls(); got != 3 {
		t.Fatalf("expected exactly 3 generations, got %d", got)
	}
	if len(sink.Events()) != 3 {
		t.Fatalf("expected 3 performance events, got %d", len(sink.Events()))
	}
}

func TestSessionTimeoutWithoutAnswers(t *testing.T) {
	session := newManualSession(newScriptedSource(), &recordingSink{})
	if err := session.Start(context.Background(), testConfig(5, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 59; i++ {
		session.Tick()
	}
	if phase := session.Phase(); phase != domain.PhaseActive {
		t.Fatalf("expected active after 59 ticks, got %s", phase)
	}
	session.Tick()

	view := session.View()
	if view.Phase != domain.PhaseFinished {
		t.Fatalf("expected finished after 60 ticks, got %s", view.Phase)
	}
	if view.Answered != 0 || view.Correct != 0 || view.RemainingSeconds != 0 {
		t.Fatalf("unexpected counters %+v", view)
	}
	if view.Summary == nil || !view.Summary.TimedOut || view.Summary.Target != 5 {
		t.Fatalf("expected timed out summary, got %+v", view.Summary)
	}
	if session.PrefetchReady() {
		t.Fatalf("expected prefetch buffer discarded on timeout")
	}

	session.Tick()
	if view := session.View(); view.RemainingSeconds != 0 || view.Phase != domain.PhaseFinished {
		t.Fatalf("expected ticks after finish to be ignored, got %+v", view)
	}
}

func TestSessionSubmitAnswerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	session := newManualSession(newScriptedSource(), sink)
	if err := session.Start(ctx, testConfig(2, 5)); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := session.SubmitAnswer(ctx, "B"); !errors.Is(err, domain.ErrAnswerNotAccepted) {
		t.Fatalf("expected ErrAnswerNotAccepted, got %v", err)
	}

	view := session.View()
	if view.Answered != 1 || view.Correct != 1 {
		t.Fatalf("expected counters unchanged by second answer, got %+v", view)
	}
	if len(sink.Events()) != 1 {
		t.Fatalf("expected one performance event, got %d", len(sink.Events()))
	}
	if view.Question == nil || view.Question.CorrectAnswerID != "A" || view.Answer == nil || !view.Answer.ExplanationVisible {
		t.Fatalf("expected revealed question in view, got %+v", view)
	}
}

func TestSessionRejectsUnknownOption(t *testing.T) {
	ctx := context.Background()
	session := newManualSession(newScriptedSource(), nil)
	if err := session.Start(ctx, testConfig(1, 5)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.SubmitAnswer(ctx, "Z"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	if view := session.View(); view.Phase != domain.PhaseActive || view.Answered != 0 {
		t.Fatalf("expected untouched active session, got %+v", view)
	}
}

func TestSessionStartRejectsInvalidConfiguration(t *testing.T) {
	source := newScriptedSource()
	session := newManualSession(source, nil)

	err := session.Start(context.Background(), testConfig(0, 10))
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if session.Phase() != domain.PhaseIdle {
		t.Fatalf("expected idle, got %s", session.Phase())
	}
	if source.Calls() != 0 {
		t.Fatalf("expected no generation for invalid configuration")
	}
}

func TestSessionStartGenerationFailureStaysIdle(t *testing.T) {
	source := newScriptedSource()
	source.FailCall(1)
	session := newManualSession(source, nil)

	err := session.Start(context.Background(), testConfig(3, 10))
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if session.Phase() != domain.PhaseIdle {
		t.Fatalf("expected idle after failed start, got %s", session.Phase())
	}

	if err := session.Start(context.Background(), testConfig(3, 10)); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	if session.Phase() != domain.PhaseActive {
		t.Fatalf("expected active after retry, got %s", session.Phase())
	}
}

func TestSessionAdvanceConsumesPrefetchWithoutFetching(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(3, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	if !session.PrefetchReady() {
		t.Fatalf("expected buffered question")
	}
	if got := source.Calls(); got != 2 {
		t.Fatalf("expected start + prefetch calls, got %d", got)
	}
	buffered := session.View()
	if !buffered.NextReady {
		t.Fatalf("expected view to report next question ready")
	}

	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	before := source.Calls()
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if view := session.View(); view.Phase != domain.PhaseActive || view.Question == nil || view.Question.ID != "Q-2" {
		t.Fatalf("expected buffered question Q-2 to be current, got %+v", view.Question)
	}
	session.WaitPrefetch()
	// One more call at most: the re-armed prefetch for the third question.
	if got := source.Calls(); got != before+1 {
		t.Fatalf("expected only the re-armed prefetch after advance, got %d calls (before %d)", got, before)
	}
}

func TestSessionAdvanceFetchesOnceWhenPrefetchFailed(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	source.FailCall(2) // the prefetch
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(2, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	if session.PrefetchReady() {
		t.Fatalf("expected empty buffer after failed prefetch")
	}

	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	session.WaitPrefetch()
	if got := source.Calls(); got != 3 {
		t.Fatalf("expected exactly one blocking fetch (3 calls total), got %d", got)
	}
	if session.Phase() != domain.PhaseActive {
		t.Fatalf("expected active, got %s", session.Phase())
	}
}

func TestSessionAdvanceFailureKeepsRevealedAndCounters(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	source.FailCall(2)
	source.FailCall(3)
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(3, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := session.Advance(ctx); !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	view := session.View()
	if view.Phase != domain.PhaseRevealed || view.Answered != 1 || view.Correct != 1 {
		t.Fatalf("expected revealed with counters intact, got %+v", view)
	}

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("retry advance: %v", err)
	}
	if session.Phase() != domain.PhaseActive {
		t.Fatalf("expected active after retry, got %s", session.Phase())
	}
}

func TestSessionLastAnswerThenTimeoutFinishesOnce(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	session := newManualSession(newScriptedSource(), sink)

	if err := session.Start(ctx, testConfig(1, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	for i := 0; i < 60; i++ {
		session.Tick()
	}
	first := session.View()
	if first.Phase != domain.PhaseFinished || first.Summary == nil || !first.Summary.TimedOut {
		t.Fatalf("expected timed out finish, got %+v", first)
	}

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance after finish: %v", err)
	}
	second := session.View()
	if second.Summary == nil || *second.Summary != *first.Summary {
		t.Fatalf("expected frozen summary, got %+v then %+v", first.Summary, second.Summary)
	}
	if len(sink.Events()) != 1 || second.Answered != 1 || second.Correct != 1 {
		t.Fatalf("expected single scoring, events=%d view=%+v", len(sink.Events()), second)
	}
}

func TestSessionResetDiscardsInFlightPrefetch(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	release := source.BlockCall(2)
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(3, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Reset()
	close(release)
	session.WaitPrefetch()

	if session.PrefetchReady() {
		t.Fatalf("expected stale prefetch result to be discarded")
	}
	view := session.View()
	if view.Phase != domain.PhaseIdle || view.Answered != 0 || view.RemainingSeconds != 0 {
		t.Fatalf("expected clean idle session, got %+v", view)
	}
}

func TestSessionInvalidPrefetchIsNeverShown(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	source.CorruptCall(2) // the prefetch
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(3, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	if session.PrefetchReady() {
		t.Fatalf("expected invalid prefetched question to be dropped")
	}
	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	view := session.View()
	if view.Phase != domain.PhaseActive || view.Question == nil || view.Question.ID != "Q-3" {
		t.Fatalf("expected blocking fetch to supply Q-3, got %+v", view.Question)
	}
	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer on fetched question: %v", err)
	}
}

func TestSessionResetDuringStartFetchDiscardsResult(t *testing.T) {
	source := newScriptedSource()
	release := source.BlockCall(1)
	session := newManualSession(source, nil)

	errc := make(chan error, 1)
	go func() { errc <- session.Start(context.Background(), testConfig(3, 10)) }()
	waitForCalls(t, source, 1)

	session.Reset()
	close(release)

	if err := <-errc; !errors.Is(err, domain.ErrSessionSuperseded) {
		t.Fatalf("expected ErrSessionSuperseded, got %v", err)
	}
	session.WaitPrefetch()
	view := session.View()
	if view.Phase != domain.PhaseIdle || view.Question != nil || view.RemainingSeconds != 0 {
		t.Fatalf("expected idle session without question, got %+v", view)
	}
	if got := source.Calls(); got != 1 {
		t.Fatalf("expected no prefetch for a discarded start, got %d calls", got)
	}
}

func TestSessionTimeoutDuringAdvanceFetchDiscardsResult(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	source.FailCall(2) // the prefetch
	release := source.BlockCall(3)
	session := newManualSession(source, nil)

	if err := session.Start(ctx, testConfig(3, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- session.Advance(ctx) }()
	waitForCalls(t, source, 3)

	for i := 0; i < 60; i++ {
		session.Tick()
	}
	if phase := session.Phase(); phase != domain.PhaseFinished {
		t.Fatalf("expected finished after timeout, got %s", phase)
	}
	close(release)

	if err := <-errc; !errors.Is(err, domain.ErrSessionSuperseded) {
		t.Fatalf("expected ErrSessionSuperseded, got %v", err)
	}
	view := session.View()
	if view.Phase != domain.PhaseFinished || view.Question != nil || view.Answered != 1 {
		t.Fatalf("expected finished session untouched by late fetch, got %+v", view)
	}
	if view.Summary == nil || !view.Summary.TimedOut {
		t.Fatalf("expected timed out summary, got %+v", view.Summary)
	}
}

func TestSessionStartWhileRunningIsRejected(t *testing.T) {
	ctx := context.Background()
	session := newManualSession(newScriptedSource(), nil)
	if err := session.Start(ctx, testConfig(2, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Start(ctx, testConfig(2, 10)); !errors.Is(err, domain.ErrSessionRunning) {
		t.Fatalf("expected ErrSessionRunning, got %v", err)
	}
}

func TestSessionClockDrivesTimeout(t *testing.T) {
	session := app.NewSession("clock", newScriptedSource(), nil, app.WithTickInterval(time.Millisecond))
	updates, cancel := session.Subscribe()
	defer cancel()

	if err := session.Start(context.Background(), testConfig(5, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := session.ClockDone()
	if done == nil {
		t.Fatalf("expected clock to be armed")
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case view := <-updates:
			if view.Phase != domain.PhaseFinished {
				continue
			}
			if view.Summary == nil || !view.Summary.TimedOut {
				t.Fatalf("expected timeout summary, got %+v", view.Summary)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("expected clock goroutine to exit after finish")
			}
			return
		case <-deadline:
			t.Fatalf("session did not time out")
		}
	}
}

func TestSessionSummaryAverageTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	session := app.NewSession("avg", newScriptedSource(), nil, app.WithTickInterval(0), app.WithNow(clock))

	if err := session.Start(ctx, testConfig(2, 10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.WaitPrefetch()
	for i := 0; i < 2; i++ {
		now = now.Add(30 * time.Second)
		if _, err := session.SubmitAnswer(ctx, "A"); err != nil {
			t.Fatalf("answer: %v", err)
		}
		if err := session.Advance(ctx); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	summary := session.View().Summary
	if summary == nil || summary.ElapsedSeconds != 60 || summary.AverageSeconds != 30 || summary.Accuracy != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func testConfig(count, minutes int) domain.SessionConfig {
	return domain.SessionConfig{
		Banca:            "FGV",
		Materia:          "Língua Portuguesa",
		Nivel:            domain.NivelSuperior,
		QuestionCount:    count,
		TimeLimitMinutes: minutes,
	}
}

func newManualSession(source app.QuestionSource, sink app.AnswerSink) *app.Session {
	return app.NewSession("test", source, sink, app.WithTickInterval(0))
}

func waitForCalls(t *testing.T, source *scriptedSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for source.Calls() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d generations, got %d", n, source.Calls())
		}
		time.Sleep(time.Millisecond)
	}
}

// scriptedSource numbers every call and serves questions whose correct option is "A".
type scriptedSource struct {
	mu      sync.Mutex
	calls   int
	fail    map[int]bool
	corrupt map[int]bool
	blocks  map[int]chan struct{}
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{fail: map[int]bool{}, corrupt: map[int]bool{}, blocks: map[int]chan struct{}{}}
}

// CorruptCall makes call n answer "Z", which matches none of the options.
func (s *scriptedSource) CorruptCall(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[n] = true
}

func (s *scriptedSource) FailCall(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[n] = true
}

func (s *scriptedSource) BlockCall(n int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.blocks[n] = ch
	return ch
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedSource) Generate(ctx context.Context, filter domain.Filter) (domain.Question, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	fail := s.fail[n]
	corrupt := s.corrupt[n]
	block := s.blocks[n]
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return domain.Question{}, errors.New("upstream unavailable")
	}
	correctID := "A"
	if corrupt {
		correctID = "Z"
	}
	return domain.Question{
		ID:        fmt.Sprintf("Q-%d", n),
		Banca:     filter.Banca,
		Materia:   filter.Materia,
		Nivel:     filter.Nivel,
		Statement: fmt.Sprintf("Questão %d", n),
		Options: []domain.Option{
			{ID: "A", Text: "certa"},
			{ID: "B", Text: "errada"},
			{ID: "C", Text: "errada"},
			{ID: "D", Text: "errada"},
			{ID: "E", Text: "errada"},
		},
		CorrectAnswerID: correctID,
		Explanation:     "A é a correta.",
	}, nil
}

type answerEvent struct {
	correct bool
	subject string
}

type recordingSink struct {
	mu     sync.Mutex
	events []answerEvent
}

func (r *recordingSink) QuestionAnswered(_ context.Context, correct bool, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, answerEvent{correct: correct, subject: subject})
}

func (r *recordingSink) Events() []answerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]answerEvent(nil), r.events...)
}
