package memory

import (
	"context"
	"errors"
	"sync"

	"concurso-study-service/internal/domain"
	"github.com/google/uuid"
)

// ErrEmptyQuestionBank is returned when the bank holds no questions at all.
var ErrEmptyQuestionBank = errors.New("question bank is empty")

// QuestionBank is an offline question source cycling through seeded questions.
// Every served question gets a fresh id; content repeats, identity never does.
type QuestionBank struct {
	mu     sync.Mutex
	seeds  []domain.Question
	cursor map[domain.Materia]int
}

// NewQuestionBank uses DefaultSeeds when seeds is nil.
func NewQuestionBank(seeds []domain.Question) *QuestionBank {
	if seeds == nil {
		seeds = DefaultSeeds()
	}
	return &QuestionBank{seeds: seeds, cursor: make(map[domain.Materia]int)}
}

// Generate prefers seeds of the requested subject and falls back to any seed.
func (b *QuestionBank) Generate(ctx context.Context, filter domain.Filter) (domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return domain.Question{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.seeds) == 0 {
		return domain.Question{}, ErrEmptyQuestionBank
	}

	candidates := make([]domain.Question, 0, len(b.seeds))
	for _, q := range b.seeds {
		if q.Materia == filter.Materia {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = b.seeds
	}

	idx := b.cursor[filter.Materia] % len(candidates)
	b.cursor[filter.Materia]++

	q := candidates[idx]
	q.ID = "Q-" + uuid.NewString()
	q.Options = append([]domain.Option(nil), q.Options...)
	if filter.Banca != "" {
		q.Banca = filter.Banca
	}
	if filter.Nivel != "" {
		q.Nivel = filter.Nivel
	}
	return q, nil
}

// DefaultSeeds is a minimal set of questions for demos without an API key.
func DefaultSeeds() []domain.Question {
	return []domain.Question{
		{
			Materia:   "Língua Portuguesa",
			Statement: "Assinale a alternativa em que a crase foi empregada corretamente.",
			Options: []domain.Option{
				{ID: "A", Text: "Refiro-me à pessoas que chegaram."},
				{ID: "B", Text: "Fomos à praia ontem."},
				{ID: "C", Text: "Ele começou à trabalhar cedo."},
				{ID: "D", Text: "Entregue o documento à ele."},
				{ID: "E", Text: "Vendemos à prazo."},
			},
			CorrectAnswerID: "B",
			Explanation:     "Ir a + a praia: há fusão da preposição com o artigo feminino.",
		},
		{
			Materia:   "Matemática",
			Statement: "Um produto de R$ 200,00 sofre aumento de 10% e depois desconto de 10%. O preço final é:",
			Options: []domain.Option{
				{ID: "A", Text: "R$ 200,00"},
				{ID: "B", Text: "R$ 202,00"},
				{ID: "C", Text: "R$ 198,00"},
				{ID: "D", Text: "R$ 196,00"},
				{ID: "E", Text: "R$ 220,00"},
			},
			CorrectAnswerID: "C",
			Explanation:     "200 × 1,1 × 0,9 = 198.",
		},
		{
			Materia:   "Direito Constitucional",
			Statement: "São princípios expressos da administração pública no art. 37 da Constituição Federal:",
			Options: []domain.Option{
				{ID: "A", Text: "Legalidade, impessoalidade, moralidade, publicidade e eficiência."},
				{ID: "B", Text: "Legalidade, razoabilidade, moralidade, publicidade e eficiência."},
				{ID: "C", Text: "Supremacia do interesse público e indisponibilidade."},
				{ID: "D", Text: "Legalidade, impessoalidade, motivação e publicidade."},
				{ID: "E", Text: "Moralidade, proporcionalidade e eficiência."},
			},
			CorrectAnswerID: "A",
			Explanation:     "O caput do art. 37 enumera LIMPE.",
		},
		{
			Materia:   "Raciocínio Lógico",
			Statement: "A negação de \"Todo servidor é pontual\" é:",
			Options: []domain.Option{
				{ID: "A", Text: "Nenhum servidor é pontual."},
				{ID: "B", Text: "Algum servidor não é pontual."},
				{ID: "C", Text: "Todo servidor é impontual."},
				{ID: "D", Text: "Algum servidor é pontual."},
				{ID: "E", Text: "Nenhum servidor é impontual."},
			},
			CorrectAnswerID: "B",
			Explanation:     "A negação de um universal afirmativo é um particular negativo.",
		},
	}
}
