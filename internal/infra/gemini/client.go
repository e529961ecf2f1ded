package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"concurso-study-service/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

const (
	DefaultModel      = "gemini-3-flash-preview"
	DefaultThemeModel = "gemini-3-pro-preview"
	DefaultImageModel = "gemini-2.5-flash-image"
)

var (
	// ErrMissingAPIKey is returned by NewClient when no key is configured.
	ErrMissingAPIKey = errors.New("gemini api key not configured")
	// ErrEmptyResponse is returned when the model answered without the expected part.
	ErrEmptyResponse = errors.New("gemini returned no content")
)

type Config struct {
	APIKey string
	// BaseURL overrides the SDK endpoint; empty keeps the public API.
	BaseURL    string
	Model      string
	ThemeModel string
	ImageModel string
}

// Client wraps the genai SDK. It is the production question source and
// study generator.
type Client struct {
	cfg    Config
	models *genai.Models
	logger *slog.Logger
}

// NewClient builds an SDK client for the Gemini API backend. httpClient may be
// nil to use the SDK default.
func NewClient(ctx context.Context, cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.ThemeModel) == "" {
		cfg.ThemeModel = DefaultThemeModel
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = DefaultImageModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base
	}
	sdk, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{cfg: cfg, models: sdk.Models, logger: logger.With("component", "gemini")}, nil
}

var questionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"statement": {Type: genai.TypeString},
		"options": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":   {Type: genai.TypeString},
					"text": {Type: genai.TypeString},
				},
			},
		},
		"correctAnswerId": {Type: genai.TypeString},
		"explanation":     {Type: genai.TypeString},
	},
	Required: []string{"statement", "options", "correctAnswerId", "explanation"},
}

// Generate asks the model for one unseen multiple-choice question.
func (c *Client) Generate(ctx context.Context, filter domain.Filter) (domain.Question, error) {
	prompt := fmt.Sprintf(`Gere uma questão de múltipla escolha inédita.
BANCA: "%s"
MATÉRIA: "%s"
NÍVEL: "%s"

Estilo: Fiel à banca. 5 alternativas (A-E). Responda apenas JSON puro.`, filter.Banca, filter.Materia, filter.Nivel)

	var q domain.Question
	if err := c.generateJSON(ctx, c.cfg.Model, prompt, questionSchema, &q); err != nil {
		return domain.Question{}, err
	}
	q.ID = "Q-" + uuid.NewString()
	q.Banca = filter.Banca
	q.Materia = filter.Materia
	q.Nivel = filter.Nivel
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (c *Client) generate(ctx context.Context, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("generateContent failed", "model", model, "error", err)
		}
		return nil, fmt.Errorf("gemini %s: %w", model, err)
	}
	return resp, nil
}

// generateText returns the joined text of the first candidate.
func (c *Client) generateText(ctx context.Context, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, *genai.GenerateContentResponse, error) {
	resp, err := c.generate(ctx, model, parts, config)
	if err != nil {
		return "", nil, err
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", resp, ErrEmptyResponse
	}
	return text, resp, nil
}

// generateJSON runs a prompt in JSON mode and decodes the reply into out.
func (c *Client) generateJSON(ctx context.Context, model, prompt string, schema *genai.Schema, out any) error {
	text, _, err := c.generateText(ctx, model, []*genai.Part{genai.NewPartFromText(prompt)}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode %s reply: %w", model, err)
	}
	return nil
}

func firstCandidate(resp *genai.GenerateContentResponse) *genai.Candidate {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0]
}

func responseText(resp *genai.GenerateContentResponse) string {
	cand := firstCandidate(resp)
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// responseImage returns the first inline data part of the first candidate.
func responseImage(resp *genai.GenerateContentResponse) *genai.Blob {
	cand := firstCandidate(resp)
	if cand == nil || cand.Content == nil {
		return nil
	}
	for _, p := range cand.Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}
