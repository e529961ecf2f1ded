package gemini

import (
	"context"

	"concurso-study-service/internal/domain"
)

// Disabled stands in for the client when no API key is configured. Every
// tool call fails with ErrMissingAPIKey.
type Disabled struct{}

func (Disabled) Mnemonic(context.Context, domain.Materia) (domain.Mnemonic, error) {
	return domain.Mnemonic{}, ErrMissingAPIKey
}

func (Disabled) EssayTheme(context.Context, domain.Banca) (string, error) {
	return "", ErrMissingAPIKey
}

func (Disabled) EssayTips(context.Context, string, domain.Banca) ([]string, error) {
	return nil, ErrMissingAPIKey
}

func (Disabled) EvaluateEssay(context.Context, domain.Media, string, domain.Banca) (domain.EssayFeedback, error) {
	return domain.EssayFeedback{}, ErrMissingAPIKey
}

func (Disabled) Flashcards(context.Context, domain.Materia) ([]domain.Flashcard, error) {
	return nil, ErrMissingAPIKey
}

func (Disabled) StudyPlan(context.Context, domain.Materia, int) ([]domain.StudyPlanItem, error) {
	return nil, ErrMissingAPIKey
}

func (Disabled) MindMap(context.Context, string) (domain.Media, error) {
	return domain.Media{}, ErrMissingAPIKey
}

func (Disabled) LatestNews(context.Context, string) (domain.NewsDigest, error) {
	return domain.NewsDigest{}, ErrMissingAPIKey
}

func (Disabled) EditImage(context.Context, domain.Media, string) (domain.Media, error) {
	return domain.Media{}, ErrMissingAPIKey
}

func (Disabled) SummarizeAudio(context.Context, domain.Media) (string, error) {
	return "", ErrMissingAPIKey
}
