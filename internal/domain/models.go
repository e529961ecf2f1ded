package domain

import (
	"fmt"
	"strings"
	"time"
)

// Option is one labelled alternative of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models a generated MCQ question with exactly one correct option.
type Question struct {
	ID              string   `json:"id"`
	Banca           Banca    `json:"banca"`
	Materia         Materia  `json:"materia"`
	Nivel           Nivel    `json:"nivel"`
	Statement       string   `json:"statement"`
	Options         []Option `json:"options"`
	CorrectAnswerID string   `json:"correctAnswerId"`
	Explanation     string   `json:"explanation"`
}

// Validate checks option labels are unique and the correct answer refers to one of them.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Statement) == "" {
		return fmt.Errorf("%w: empty statement", ErrInvalidQuestion)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: %d options", ErrInvalidQuestion, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt.ID) == "" {
			return fmt.Errorf("%w: option without label", ErrInvalidQuestion)
		}
		if _, dup := seen[opt.ID]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, opt.ID)
		}
		seen[opt.ID] = struct{}{}
	}
	if _, ok := seen[q.CorrectAnswerID]; !ok {
		return fmt.Errorf("%w: correct answer %q is not an option", ErrInvalidQuestion, q.CorrectAnswerID)
	}
	return nil
}

// HasOption reports whether label is one of the question's option labels.
func (q Question) HasOption(label string) bool {
	for _, opt := range q.Options {
		if opt.ID == label {
			return true
		}
	}
	return false
}

// Filter selects what kind of question the source should generate.
type Filter struct {
	Banca   Banca   `json:"banca"`
	Materia Materia `json:"materia"`
	Nivel   Nivel   `json:"nivel"`
}

// SessionConfig is fixed for the lifetime of one session run.
type SessionConfig struct {
	Banca            Banca   `json:"banca"`
	Materia          Materia `json:"materia"`
	Nivel            Nivel   `json:"nivel"`
	QuestionCount    int     `json:"questionCount"`
	TimeLimitMinutes int     `json:"timeLimitMinutes"`
}

// Filter returns the generation filter implied by the configuration.
func (c SessionConfig) Filter() Filter {
	return Filter{Banca: c.Banca, Materia: c.Materia, Nivel: c.Nivel}
}

// Validate rejects configurations that cannot start a session.
func (c SessionConfig) Validate() error {
	switch {
	case c.QuestionCount < 1:
		return fmt.Errorf("%w: question count must be at least 1", ErrInvalidConfiguration)
	case c.TimeLimitMinutes < 1:
		return fmt.Errorf("%w: time limit must be at least 1 minute", ErrInvalidConfiguration)
	case !c.Banca.Valid():
		return fmt.Errorf("%w: unknown banca %q", ErrInvalidConfiguration, c.Banca)
	case !c.Materia.Valid():
		return fmt.Errorf("%w: unknown materia %q", ErrInvalidConfiguration, c.Materia)
	case !c.Nivel.Valid():
		return fmt.Errorf("%w: unknown nivel %q", ErrInvalidConfiguration, c.Nivel)
	}
	return nil
}

// Phase is the lifecycle position of a quiz session.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseActive   Phase = "active"
	PhaseRevealed Phase = "revealed"
	PhaseFinished Phase = "finished"
)

// AnswerRecord exists only while the answered question is displayed.
type AnswerRecord struct {
	SelectedID         string `json:"selectedId"`
	Correct            bool   `json:"correct"`
	ExplanationVisible bool   `json:"explanationVisible"`
}

// Summary is frozen when a session finishes.
type Summary struct {
	Answered       int     `json:"answered"`
	Correct        int     `json:"correct"`
	Target         int     `json:"target"`
	Accuracy       float64 `json:"accuracy"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
	AverageSeconds float64 `json:"averageSeconds"`
	TimedOut       bool    `json:"timedOut"`
}

// QuestionView is the client-facing form of a question. Answer and explanation
// stay empty until the question is revealed.
type QuestionView struct {
	ID              string   `json:"id"`
	Banca           Banca    `json:"banca"`
	Materia         Materia  `json:"materia"`
	Nivel           Nivel    `json:"nivel"`
	Statement       string   `json:"statement"`
	Options         []Option `json:"options"`
	CorrectAnswerID string   `json:"correctAnswerId,omitempty"`
	Explanation     string   `json:"explanation,omitempty"`
}

// NewQuestionView hides the answer unless revealed is set.
func NewQuestionView(q Question, revealed bool) *QuestionView {
	view := &QuestionView{
		ID:        q.ID,
		Banca:     q.Banca,
		Materia:   q.Materia,
		Nivel:     q.Nivel,
		Statement: q.Statement,
		Options:   append([]Option(nil), q.Options...),
	}
	if revealed {
		view.CorrectAnswerID = q.CorrectAnswerID
		view.Explanation = q.Explanation
	}
	return view
}

// SessionView is a snapshot of a session, broadcast after every transition and tick.
type SessionView struct {
	SessionID        string         `json:"sessionId"`
	Phase            Phase          `json:"phase"`
	Config           *SessionConfig `json:"config,omitempty"`
	Question         *QuestionView  `json:"question,omitempty"`
	Answer           *AnswerRecord  `json:"answer,omitempty"`
	Answered         int            `json:"answered"`
	Correct          int            `json:"correct"`
	RemainingSeconds int            `json:"remainingSeconds"`
	NextReady        bool           `json:"nextReady"`
	Summary          *Summary       `json:"summary,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// SubjectStat aggregates answers for one subject.
type SubjectStat struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Accuracy returns correct/total, or 0 when nothing was answered.
func (s SubjectStat) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Performance is the durable cross-session aggregate stored in one key-value slot.
type Performance struct {
	TotalAnswered  int                    `json:"totalAnswered"`
	CorrectAnswers int                    `json:"correctAnswers"`
	SubjectStats   map[string]SubjectStat `json:"subjectStats"`
	XP             int                    `json:"xp"`
	Level          int                    `json:"level"`
}

// Accuracy returns the overall correct/answered ratio.
func (p Performance) Accuracy() float64 {
	return SubjectStat{Total: p.TotalAnswered, Correct: p.CorrectAnswers}.Accuracy()
}

// Clone returns a deep copy safe to hand out to readers.
func (p Performance) Clone() Performance {
	out := p
	out.SubjectStats = make(map[string]SubjectStat, len(p.SubjectStats))
	for subject, stat := range p.SubjectStats {
		out.SubjectStats[subject] = stat
	}
	return out
}
