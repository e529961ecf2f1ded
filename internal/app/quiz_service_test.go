package app_test

import (
	"context"
	"errors"
	"testing"

	"concurso-study-service/internal/app"
	"concurso-study-service/internal/domain"
	"concurso-study-service/internal/infra/memory"
)

func TestQuizServiceFullRun(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)

	created := service.Create(ctx)
	if created.SessionID == "" || created.Phase != domain.PhaseIdle {
		t.Fatalf("unexpected created view %+v", created)
	}

	view, err := service.Start(ctx, created.SessionID, testConfig(2, 5))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.Phase != domain.PhaseActive || view.Question == nil {
		t.Fatalf("expected active with question, got %+v", view)
	}
	if view.Question.CorrectAnswerID != "" {
		t.Fatalf("expected answer hidden while active")
	}

	view, err = service.Answer(ctx, created.SessionID, "A")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if view.Phase != domain.PhaseRevealed || view.Answer == nil || !view.Answer.Correct {
		t.Fatalf("expected revealed correct answer, got %+v", view)
	}
	if view.Question.CorrectAnswerID != "A" || view.Question.Explanation == "" {
		t.Fatalf("expected answer and explanation visible after reveal, got %+v", view.Question)
	}

	if view, err = service.Advance(ctx, created.SessionID); err != nil || view.Phase != domain.PhaseActive {
		t.Fatalf("expected second question, got %+v err=%v", view, err)
	}
	if _, err = service.Answer(ctx, created.SessionID, "C"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	view, err = service.Advance(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if view.Phase != domain.PhaseFinished || view.Summary == nil || view.Summary.Correct != 1 || view.Summary.Answered != 2 {
		t.Fatalf("expected finished summary 1/2, got %+v", view)
	}

	perf := service.Performance(ctx)
	if perf.TotalAnswered != 2 || perf.CorrectAnswers != 1 || perf.XP != 30 {
		t.Fatalf("unexpected performance %+v", perf)
	}
}

func TestQuizServiceUnknownSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)

	if _, err := service.View(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Answer(ctx, "missing", "A"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := service.Subscribe(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := service.Close(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuizServiceAnswerBeforeStartIsRejected(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)
	id := service.Create(ctx).SessionID

	view, err := service.Answer(ctx, id, "A")
	if !errors.Is(err, domain.ErrAnswerNotAccepted) {
		t.Fatalf("expected answer not accepted, got %v", err)
	}
	if view.Phase != domain.PhaseIdle || view.Answered != 0 {
		t.Fatalf("expected untouched idle session, got %+v", view)
	}
}

func TestQuizServiceSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)
	id := service.Create(ctx).SessionID

	ch, cancel, err := service.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Phase != domain.PhaseIdle {
		t.Fatalf("expected idle initial view, got %s", initial.Phase)
	}

	if _, err := service.Start(ctx, id, testConfig(1, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if loading := <-ch; loading.Phase != domain.PhaseLoading {
		t.Fatalf("expected loading update, got %s", loading.Phase)
	}
	if active := <-ch; active.Phase != domain.PhaseActive {
		t.Fatalf("expected active update, got %s", active.Phase)
	}
}

func TestQuizServiceLeaveKeepsRunningSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)
	id := service.Create(ctx).SessionID
	if _, err := service.Start(ctx, id, testConfig(1, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	service.Leave(ctx, id)
	if _, err := service.View(ctx, id); err != nil {
		t.Fatalf("expected running session kept, got %v", err)
	}

	if _, err := service.Reset(ctx, id); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	service.Leave(ctx, id)
	if _, err := service.View(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected idle session dropped, got %v", err)
	}
}

func TestQuizServiceCloseEndsSubscriptions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)
	id := service.Create(ctx).SessionID

	ch, cancel, err := service.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	<-ch

	if err := service.Close(ctx, id); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected subscription closed")
	}
	if _, err := service.View(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected closed session forgotten, got %v", err)
	}
}

func TestQuizServiceForwardsEvents(t *testing.T) {
	ctx := context.Background()
	events := &recordingSink{}
	service, slots := newTestService(events)
	id := service.Create(ctx).SessionID

	if _, err := service.Start(ctx, id, testConfig(1, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.Answer(ctx, id, "A"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	if got := events.Events(); len(got) != 1 || !got[0].correct {
		t.Fatalf("expected one correct event, got %+v", got)
	}
	if _, err := slots.Get(ctx, app.DefaultPerformanceKey); err != nil {
		t.Fatalf("expected performance persisted: %v", err)
	}
}

func TestQuizServicePruneIdleKeepsRunningSessions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil)
	running := service.Create(ctx).SessionID
	idle := service.Create(ctx).SessionID
	if _, err := service.Start(ctx, running, testConfig(1, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if n := service.PruneIdle(0); n != 1 {
		t.Fatalf("expected only the idle session pruned, got %d", n)
	}
	if _, err := service.View(ctx, idle); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected idle session pruned, got %v", err)
	}
	if _, err := service.View(ctx, running); err != nil {
		t.Fatalf("expected running session kept: %v", err)
	}
}

func TestQuizServiceShutdownClosesSessions(t *testing.T) {
	ctx := context.Background()
	source := newScriptedSource()
	release := source.BlockCall(2)
	defer close(release)
	tracker := app.LoadPerformance(ctx, memory.NewSlotStore(), "", nil)
	service := app.NewQuizService(memory.NewSessionStore(), source, tracker, nil, app.WithTickInterval(0))

	id := service.Create(ctx).SessionID
	if _, err := service.Start(ctx, id, testConfig(3, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	service.Shutdown(ctx)
	for range ch {
	}
	if _, err := service.View(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected sessions forgotten after shutdown, got %v", err)
	}
}

func newTestService(events app.AnswerSink) (*app.QuizService, *memory.SlotStore) {
	slots := memory.NewSlotStore()
	tracker := app.LoadPerformance(context.Background(), slots, "", nil)
	service := app.NewQuizService(memory.NewSessionStore(), newScriptedSource(), tracker, events, app.WithTickInterval(0))
	return service, slots
}
