package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"concurso-study-service/internal/domain"
)

// StudyGenerator produces the generative study aids.
type StudyGenerator interface {
	Mnemonic(ctx context.Context, materia domain.Materia) (domain.Mnemonic, error)
	EssayTheme(ctx context.Context, banca domain.Banca) (string, error)
	EssayTips(ctx context.Context, theme string, banca domain.Banca) ([]string, error)
	EvaluateEssay(ctx context.Context, image domain.Media, theme string, banca domain.Banca) (domain.EssayFeedback, error)
	Flashcards(ctx context.Context, materia domain.Materia) ([]domain.Flashcard, error)
	StudyPlan(ctx context.Context, materia domain.Materia, hours int) ([]domain.StudyPlanItem, error)
	MindMap(ctx context.Context, description string) (domain.Media, error)
	LatestNews(ctx context.Context, query string) (domain.NewsDigest, error)
	EditImage(ctx context.Context, image domain.Media, instruction string) (domain.Media, error)
	SummarizeAudio(ctx context.Context, audio domain.Media) (string, error)
}

// ToolCache remembers generated payloads per key (memory or Redis).
type ToolCache interface {
	Remember(ctx context.Context, key string, load func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

const (
	defaultImageMIMEType = "image/jpeg"
	defaultAudioMIMEType = "audio/webm"
	maxStudyHours        = 16
)

var dataURLPrefix = regexp.MustCompile(`^data:([a-z]+/[a-zA-Z0-9.+-]+)(?:;[a-zA-Z0-9=._-]+)*;base64,`)

// ToolsService validates study tool requests and delegates them to the generator.
type ToolsService struct {
	generator StudyGenerator
	cache     ToolCache
}

// NewToolsService builds the service. A nil cache disables caching.
func NewToolsService(generator StudyGenerator, cache ToolCache) *ToolsService {
	return &ToolsService{generator: generator, cache: cache}
}

func (s *ToolsService) Mnemonic(ctx context.Context, materia domain.Materia) (domain.Mnemonic, error) {
	if !materia.Valid() {
		return domain.Mnemonic{}, fmt.Errorf("%w: unknown materia %q", domain.ErrInvalidToolRequest, materia)
	}
	m, err := s.generator.Mnemonic(ctx, materia)
	if err != nil {
		return domain.Mnemonic{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return m, nil
}

func (s *ToolsService) EssayTheme(ctx context.Context, banca domain.Banca) (string, error) {
	if !banca.Valid() {
		return "", fmt.Errorf("%w: unknown banca %q", domain.ErrInvalidToolRequest, banca)
	}
	theme, err := s.generator.EssayTheme(ctx, banca)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return theme, nil
}

// EssayTips returns writing tips for a theme. Results are cached per banca and theme.
func (s *ToolsService) EssayTips(ctx context.Context, theme string, banca domain.Banca) ([]string, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, fmt.Errorf("%w: theme is required", domain.ErrInvalidToolRequest)
	}
	if !banca.Valid() {
		return nil, fmt.Errorf("%w: unknown banca %q", domain.ErrInvalidToolRequest, banca)
	}
	return remember(ctx, s.cache, tipsKey(theme, banca), func(ctx context.Context) ([]string, error) {
		return s.generator.EssayTips(ctx, theme, banca)
	})
}

// EvaluateEssay grades a photo of a handwritten essay. image.Data may be a
// data URL; its embedded MIME type wins over image.MIMEType.
func (s *ToolsService) EvaluateEssay(ctx context.Context, image domain.Media, theme string, banca domain.Banca) (domain.EssayFeedback, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return domain.EssayFeedback{}, fmt.Errorf("%w: theme is required", domain.ErrInvalidToolRequest)
	}
	if !banca.Valid() {
		return domain.EssayFeedback{}, fmt.Errorf("%w: unknown banca %q", domain.ErrInvalidToolRequest, banca)
	}
	image, err := NormalizeMedia(image, "image", defaultImageMIMEType)
	if err != nil {
		return domain.EssayFeedback{}, err
	}

	feedback, err := s.generator.EvaluateEssay(ctx, image, theme, banca)
	if err != nil {
		return domain.EssayFeedback{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return feedback, nil
}

// Flashcards returns a fresh deck on every call.
func (s *ToolsService) Flashcards(ctx context.Context, materia domain.Materia) ([]domain.Flashcard, error) {
	if !materia.Valid() {
		return nil, fmt.Errorf("%w: unknown materia %q", domain.ErrInvalidToolRequest, materia)
	}
	cards, err := s.generator.Flashcards(ctx, materia)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return cards, nil
}

// StudyPlan builds a daily cycle for the available hours. Plans are cached
// per subject and hours.
func (s *ToolsService) StudyPlan(ctx context.Context, materia domain.Materia, hours int) ([]domain.StudyPlanItem, error) {
	if !materia.Valid() {
		return nil, fmt.Errorf("%w: unknown materia %q", domain.ErrInvalidToolRequest, materia)
	}
	if hours < 1 || hours > maxStudyHours {
		return nil, fmt.Errorf("%w: hours must be between 1 and %d", domain.ErrInvalidToolRequest, maxStudyHours)
	}
	key := fmt.Sprintf("plan:%s:%d", materia, hours)
	return remember(ctx, s.cache, key, func(ctx context.Context) ([]domain.StudyPlanItem, error) {
		return s.generator.StudyPlan(ctx, materia, hours)
	})
}

func (s *ToolsService) MindMap(ctx context.Context, description string) (domain.Media, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Media{}, fmt.Errorf("%w: description is required", domain.ErrInvalidToolRequest)
	}
	img, err := s.generator.MindMap(ctx, description)
	if err != nil {
		return domain.Media{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return img, nil
}

// LatestNews searches for open and requested exams. Digests are cached per query.
func (s *ToolsService) LatestNews(ctx context.Context, query string) (domain.NewsDigest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.NewsDigest{}, fmt.Errorf("%w: query is required", domain.ErrInvalidToolRequest)
	}
	return remember(ctx, s.cache, "news:"+strings.ToLower(query), func(ctx context.Context) (domain.NewsDigest, error) {
		return s.generator.LatestNews(ctx, query)
	})
}

func (s *ToolsService) EditImage(ctx context.Context, image domain.Media, instruction string) (domain.Media, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return domain.Media{}, fmt.Errorf("%w: instruction is required", domain.ErrInvalidToolRequest)
	}
	image, err := NormalizeMedia(image, "image", "image/png")
	if err != nil {
		return domain.Media{}, err
	}
	edited, err := s.generator.EditImage(ctx, image, instruction)
	if err != nil {
		return domain.Media{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return edited, nil
}

// SummarizeAudio transcribes a recording and outlines its main points.
func (s *ToolsService) SummarizeAudio(ctx context.Context, audio domain.Media) (string, error) {
	audio, err := NormalizeMedia(audio, "audio", defaultAudioMIMEType)
	if err != nil {
		return "", err
	}
	summary, err := s.generator.SummarizeAudio(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return summary, nil
}

// NormalizeMedia strips a data URL prefix, checks the payload is base64 and
// that the MIME type belongs to kind ("image", "audio").
func NormalizeMedia(media domain.Media, kind, defaultMIMEType string) (domain.Media, error) {
	data := strings.TrimSpace(media.Data)
	if m := dataURLPrefix.FindStringSubmatch(data); m != nil {
		media.MIMEType = m[1]
		data = data[len(m[0]):]
	}
	if data == "" {
		return domain.Media{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidToolRequest, kind)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return domain.Media{}, fmt.Errorf("%w: %s is not base64: %v", domain.ErrInvalidToolRequest, kind, err)
	}
	if media.MIMEType == "" {
		media.MIMEType = defaultMIMEType
	}
	if !strings.HasPrefix(media.MIMEType, kind+"/") {
		return domain.Media{}, fmt.Errorf("%w: %s expected, got %q", domain.ErrInvalidToolRequest, kind, media.MIMEType)
	}
	media.Data = data
	return media, nil
}

// remember runs load through the cache as JSON. Without a cache it just loads.
func remember[T any](ctx context.Context, cache ToolCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	encode := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	var (
		raw []byte
		err error
	)
	if cache != nil {
		raw, err = cache.Remember(ctx, key, encode)
	} else {
		raw, err = encode(ctx)
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: decode cached %s: %v", domain.ErrGenerationFailed, key, err)
	}
	return out, nil
}

func tipsKey(theme string, banca domain.Banca) string {
	return "tips:" + string(banca) + ":" + strings.ToLower(theme)
}
