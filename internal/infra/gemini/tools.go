package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"concurso-study-service/internal/domain"
	"google.golang.org/genai"
)

const (
	fallbackEssayTheme = "Importância da ética no serviço público"
	mindMapMIMEType    = "image/png"
)

var stringList = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

func (c *Client) Mnemonic(ctx context.Context, materia domain.Materia) (domain.Mnemonic, error) {
	prompt := fmt.Sprintf(`Crie um mnemônico criativo e eficaz para ajudar a memorizar um conceito fundamental da matéria "%s" em concursos públicos.
A resposta deve conter:
1. A frase mnemônica (ex: LIMPE).
2. O que cada letra ou parte significa.
3. Uma explicação breve do conceito.
Retorne apenas JSON.`, materia)

	var m domain.Mnemonic
	err := c.generateJSON(ctx, c.cfg.Model, prompt, &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"phrase":      {Type: genai.TypeString},
			"meaning":     {Type: genai.TypeString},
			"explanation": {Type: genai.TypeString},
		},
		Required: []string{"phrase", "meaning", "explanation"},
	}, &m)
	return m, err
}

// EssayTheme returns a plain theme sentence; an empty answer falls back to a classic theme.
func (c *Client) EssayTheme(ctx context.Context, banca domain.Banca) (string, error) {
	prompt := fmt.Sprintf(`Gere um tema de redação inédito e atualizado, típico da banca "%s". O tema deve ser relevante para concursos de nível médio ou superior. Retorne apenas o título/frase temática.`, banca)

	text, _, err := c.generateText(ctx, c.cfg.ThemeModel, []*genai.Part{genai.NewPartFromText(prompt)}, nil)
	if errors.Is(err, ErrEmptyResponse) {
		return fallbackEssayTheme, nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// EssayTips fails on an empty reply so callers never cache an empty list.
func (c *Client) EssayTips(ctx context.Context, theme string, banca domain.Banca) ([]string, error) {
	prompt := fmt.Sprintf(`Como professor especialista na banca %s, forneça 4 dicas muito simples, claras e fáceis de entender para o tema: "%s".
Use uma linguagem "pé no chão", sem termos técnicos complicados.
As dicas devem ser:
1. Como começar o texto (Introdução) de um jeito simples.
2. O que colocar no meio do texto (Desenvolvimento) para ganhar pontos.
3. Como terminar o texto (Conclusão) sem erro.
4. Troca de palavras: 3 exemplos de palavras comuns que podem ser trocadas por outras mais bonitas de forma fácil.

Retorne apenas um array JSON com 4 strings curtas e diretas.`, banca, theme)

	var tips []string
	if err := c.generateJSON(ctx, c.cfg.Model, prompt, stringList, &tips); err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, ErrEmptyResponse
	}
	return tips, nil
}

// EvaluateEssay sends the essay photo inline together with the grading instructions.
func (c *Client) EvaluateEssay(ctx context.Context, image domain.Media, theme string, banca domain.Banca) (domain.EssayFeedback, error) {
	prompt := fmt.Sprintf(`Você é um avaliador de redações nível mestre para a banca %s.
Analise a foto da redação manuscrita para o tema: "%s".
Dê um feedback honesto e técnico no formato JSON.

Campos obrigatórios:
- grade: Nota de 0 a 100 baseada nos critérios da banca.
- pros: Array de pontos fortes.
- cons: Array de erros e melhorias.
- tips: Uma dica para a próxima.
- fullAnalysis: Texto detalhado explicando a nota.`, banca, theme)

	media, err := mediaPart(image)
	if err != nil {
		return domain.EssayFeedback{}, err
	}
	text, _, err := c.generateText(ctx, c.cfg.Model, []*genai.Part{media, genai.NewPartFromText(prompt)}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"grade":        {Type: genai.TypeString},
				"pros":         stringList,
				"cons":         stringList,
				"tips":         {Type: genai.TypeString},
				"fullAnalysis": {Type: genai.TypeString},
			},
			Required: []string{"grade", "pros", "cons", "tips", "fullAnalysis"},
		},
	})
	if err != nil {
		return domain.EssayFeedback{}, err
	}
	var feedback domain.EssayFeedback
	if err := json.Unmarshal([]byte(text), &feedback); err != nil {
		return domain.EssayFeedback{}, fmt.Errorf("decode essay feedback: %w", err)
	}
	return feedback, nil
}

func (c *Client) Flashcards(ctx context.Context, materia domain.Materia) ([]domain.Flashcard, error) {
	prompt := fmt.Sprintf(`Crie 8 flashcards de revisão ativa sobre pontos muito cobrados de "%s" em concursos públicos.
Frente: uma pergunta curta. Verso: a resposta objetiva, com base legal quando houver.
Retorne apenas um array JSON.`, materia)

	var cards []domain.Flashcard
	err := c.generateJSON(ctx, c.cfg.Model, prompt, &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"front": {Type: genai.TypeString},
				"back":  {Type: genai.TypeString},
			},
			Required: []string{"front", "back"},
		},
	}, &cards)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrEmptyResponse
	}
	return cards, nil
}

func (c *Client) StudyPlan(ctx context.Context, materia domain.Materia, hours int) ([]domain.StudyPlanItem, error) {
	prompt := fmt.Sprintf(`Monte um ciclo de estudos diário para "%s" com %d horas disponíveis, priorizando os tópicos de maior incidência em editais.
Divida o dia em blocos com período (ex: "08:00-09:30"), atividade (teoria, questões, revisão) e foco (tópico do edital).
Retorne apenas um array JSON.`, materia, hours)

	var plan []domain.StudyPlanItem
	err := c.generateJSON(ctx, c.cfg.Model, prompt, &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"period":   {Type: genai.TypeString},
				"activity": {Type: genai.TypeString},
				"focus":    {Type: genai.TypeString},
			},
			Required: []string{"period", "activity", "focus"},
		},
	}, &plan)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, ErrEmptyResponse
	}
	return plan, nil
}

// MindMap draws a mind map image with the image model.
func (c *Client) MindMap(ctx context.Context, description string) (domain.Media, error) {
	prompt := fmt.Sprintf(`Crie um mapa mental profissional, limpo e didático em português sobre: %s. O mapa deve ter cores sóbrias, ser organizado e fácil de ler. Use fontes legíveis.`, description)

	resp, err := c.generate(ctx, c.cfg.ImageModel, []*genai.Part{genai.NewPartFromText(prompt)}, nil)
	if err != nil {
		return domain.Media{}, err
	}
	return imageMedia(resp, mindMapMIMEType)
}

// LatestNews answers from a Google Search grounded generation and returns the
// web sources the model cited.
func (c *Client) LatestNews(ctx context.Context, query string) (domain.NewsDigest, error) {
	prompt := fmt.Sprintf(`Pesquise e organize as informações mais recentes e editais oficiais sobre: %s.
A sua resposta DEVE ser estritamente organizada em duas seções principais usando títulos Markdown (##):
1. ## Concursos Abertos
2. ## Concursos Solicitados

Para cada concurso, seja objetivo e destaque a banca (se houver), vagas e salários. Use listas com marcadores.
Mantenha o tom profissional e direto.`, query)

	text, resp, err := c.generateText(ctx, c.cfg.Model, []*genai.Part{genai.NewPartFromText(prompt)}, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return domain.NewsDigest{}, err
	}
	digest := domain.NewsDigest{Text: text, Sources: []domain.NewsSource{}}
	if cand := firstCandidate(resp); cand != nil && cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			digest.Sources = append(digest.Sources, domain.NewsSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return digest, nil
}

// EditImage returns the edited image, keeping the uploaded MIME type when the
// model does not name one.
func (c *Client) EditImage(ctx context.Context, image domain.Media, instruction string) (domain.Media, error) {
	media, err := mediaPart(image)
	if err != nil {
		return domain.Media{}, err
	}
	prompt := fmt.Sprintf("Aprimore esta imagem de estudo: %s. Retorne a imagem editada.", instruction)
	resp, err := c.generate(ctx, c.cfg.ImageModel, []*genai.Part{media, genai.NewPartFromText(prompt)}, nil)
	if err != nil {
		return domain.Media{}, err
	}
	return imageMedia(resp, image.MIMEType)
}

func (c *Client) SummarizeAudio(ctx context.Context, audio domain.Media) (string, error) {
	media, err := mediaPart(audio)
	if err != nil {
		return "", err
	}
	prompt := "Transcreva este áudio e organize os pontos principais em um resumo estruturado para criar um mapa mental."
	text, _, err := c.generateText(ctx, c.cfg.Model, []*genai.Part{media, genai.NewPartFromText(prompt)}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func mediaPart(m domain.Media) (*genai.Part, error) {
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", m.MIMEType, err)
	}
	return genai.NewPartFromBytes(data, m.MIMEType), nil
}

func imageMedia(resp *genai.GenerateContentResponse, fallbackMIMEType string) (domain.Media, error) {
	blob := responseImage(resp)
	if blob == nil {
		return domain.Media{}, ErrEmptyResponse
	}
	mime := blob.MIMEType
	if mime == "" {
		mime = fallbackMIMEType
	}
	return domain.Media{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(blob.Data)}, nil
}
