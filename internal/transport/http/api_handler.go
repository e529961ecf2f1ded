package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"concurso-study-service/internal/app"
	"concurso-study-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 10 << 20

// APIHandler exposes the quiz and study tool use cases as JSON endpoints.
type APIHandler struct {
	quiz    *app.QuizService
	tools   *app.ToolsService
	ws      *WSHandler
	catalog domain.Catalog
	logger  *slog.Logger
}

func NewAPIHandler(quiz *app.QuizService, tools *app.ToolsService, ws *WSHandler, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{quiz: quiz, tools: tools, ws: ws, catalog: domain.DefaultCatalog(), logger: logger}
}

// RegisterRoutes mounts every /api route on r.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.getCatalog)
		r.Get("/performance", h.getPerformance)

		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.closeSession)
			r.Post("/start", h.startSession)
			r.Post("/answer", h.answer)
			r.Post("/advance", h.advance)
			r.Post("/reset", h.reset)
			if h.ws != nil {
				r.Get("/ws", h.ws.ServeWS)
			}
		})

		r.Route("/tools", func(r chi.Router) {
			r.Post("/mnemonic", h.mnemonic)
			r.Post("/essay-theme", h.essayTheme)
			r.Post("/essay-tips", h.essayTips)
			r.Post("/essay-evaluation", h.essayEvaluation)
			r.Post("/flashcards", h.flashcards)
			r.Post("/study-plan", h.studyPlan)
			r.Post("/mind-map", h.mindMap)
			r.Post("/news", h.news)
			r.Post("/image-edit", h.imageEdit)
			r.Post("/audio-summary", h.audioSummary)
		})
	})
}

type answerRequest struct {
	OptionID string `json:"optionId"`
}

type mnemonicRequest struct {
	Materia domain.Materia `json:"materia"`
}

type themeRequest struct {
	Banca domain.Banca `json:"banca"`
}

type tipsRequest struct {
	Theme string       `json:"theme"`
	Banca domain.Banca `json:"banca"`
}

type evaluationRequest struct {
	Theme    string       `json:"theme"`
	Banca    domain.Banca `json:"banca"`
	Image    string       `json:"image"`
	MIMEType string       `json:"mimeType"`
}

type studyPlanRequest struct {
	Materia domain.Materia `json:"materia"`
	Hours   int            `json:"hours"`
}

type mindMapRequest struct {
	Description string `json:"description"`
}

type newsRequest struct {
	Query string `json:"query"`
}

type imageEditRequest struct {
	Image       string `json:"image"`
	MIMEType    string `json:"mimeType"`
	Instruction string `json:"instruction"`
}

type audioRequest struct {
	Audio    string `json:"audio"`
	MIMEType string `json:"mimeType"`
}

func (h *APIHandler) getCatalog(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.catalog)
}

func (h *APIHandler) getPerformance(w http.ResponseWriter, r *http.Request) {
	perf := h.quiz.Performance(r.Context())
	JSON(w, http.StatusOK, map[string]any{
		"performance": perf,
		"accuracy":    perf.Accuracy(),
	})
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusCreated, h.quiz.Create(r.Context()))
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.quiz.View(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, view, err)
}

func (h *APIHandler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.quiz.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var cfg domain.SessionConfig
	if !decode(w, r, &cfg) {
		return
	}
	view, err := h.quiz.Start(r.Context(), chi.URLParam(r, "id"), cfg)
	h.respond(w, view, err)
}

func (h *APIHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.quiz.Answer(r.Context(), chi.URLParam(r, "id"), req.OptionID)
	h.respond(w, view, err)
}

func (h *APIHandler) advance(w http.ResponseWriter, r *http.Request) {
	view, err := h.quiz.Advance(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, view, err)
}

func (h *APIHandler) reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.quiz.Reset(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, view, err)
}

func (h *APIHandler) mnemonic(w http.ResponseWriter, r *http.Request) {
	var req mnemonicRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.tools.Mnemonic(r.Context(), req.Materia)
	h.respond(w, m, err)
}

func (h *APIHandler) essayTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decode(w, r, &req) {
		return
	}
	theme, err := h.tools.EssayTheme(r.Context(), req.Banca)
	h.respond(w, map[string]string{"theme": theme}, err)
}

func (h *APIHandler) essayTips(w http.ResponseWriter, r *http.Request) {
	var req tipsRequest
	if !decode(w, r, &req) {
		return
	}
	tips, err := h.tools.EssayTips(r.Context(), req.Theme, req.Banca)
	h.respond(w, map[string][]string{"tips": tips}, err)
}

func (h *APIHandler) essayEvaluation(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if !decode(w, r, &req) {
		return
	}
	image := domain.Media{MIMEType: req.MIMEType, Data: req.Image}
	feedback, err := h.tools.EvaluateEssay(r.Context(), image, req.Theme, req.Banca)
	h.respond(w, feedback, err)
}

func (h *APIHandler) flashcards(w http.ResponseWriter, r *http.Request) {
	var req mnemonicRequest
	if !decode(w, r, &req) {
		return
	}
	cards, err := h.tools.Flashcards(r.Context(), req.Materia)
	h.respond(w, map[string][]domain.Flashcard{"flashcards": cards}, err)
}

func (h *APIHandler) studyPlan(w http.ResponseWriter, r *http.Request) {
	var req studyPlanRequest
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.tools.StudyPlan(r.Context(), req.Materia, req.Hours)
	h.respond(w, map[string][]domain.StudyPlanItem{"plan": plan}, err)
}

func (h *APIHandler) mindMap(w http.ResponseWriter, r *http.Request) {
	var req mindMapRequest
	if !decode(w, r, &req) {
		return
	}
	img, err := h.tools.MindMap(r.Context(), req.Description)
	h.respond(w, img, err)
}

func (h *APIHandler) news(w http.ResponseWriter, r *http.Request) {
	var req newsRequest
	if !decode(w, r, &req) {
		return
	}
	digest, err := h.tools.LatestNews(r.Context(), req.Query)
	h.respond(w, digest, err)
}

func (h *APIHandler) imageEdit(w http.ResponseWriter, r *http.Request) {
	var req imageEditRequest
	if !decode(w, r, &req) {
		return
	}
	image := domain.Media{MIMEType: req.MIMEType, Data: req.Image}
	edited, err := h.tools.EditImage(r.Context(), image, req.Instruction)
	h.respond(w, edited, err)
}

func (h *APIHandler) audioSummary(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if !decode(w, r, &req) {
		return
	}
	audio := domain.Media{MIMEType: req.MIMEType, Data: req.Audio}
	summary, err := h.tools.SummarizeAudio(r.Context(), audio)
	h.respond(w, map[string]string{"summary": summary}, err)
}

func (h *APIHandler) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	Error(w, status, err.Error())
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrInvalidToolRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAnswerNotAccepted),
		errors.Is(err, domain.ErrSessionRunning),
		errors.Is(err, domain.ErrSessionSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
