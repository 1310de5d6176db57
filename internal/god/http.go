package god

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/despesahub/api/internal/http/middleware"
)

type godRepository interface {
	Metricas(ctx context.Context) (Metricas, error)
	RegistrarAcesso(ctx context.Context, a Acesso) error
	ListAcessos(ctx context.Context, limit int) ([]Acesso, error)
}

// Handler expõe as rotas do painel.
type Handler struct {
	repo godRepository
}

// NewHandler cria o handler do painel.
func NewHandler(repo godRepository) *Handler {
	return &Handler{repo: repo}
}

// Mount registra as rotas; o guard RequireGod fica no router principal.
func Mount(r chi.Router, h *Handler) {
	r.Get("/metrics", h.Metrics)
	r.Get("/logs", h.Logs)
	r.Post("/logs", h.RegistrarLog)
}

// auditar grava a trilha do acesso; falha de auditoria não bloqueia a
// resposta, apenas é logada.
func (h *Handler) auditar(r *http.Request, acao string) {
	err := h.repo.RegistrarAcesso(r.Context(), Acesso{
		PessoaID: middleware.GetPessoaID(r.Context()),
		Acao:     acao,
		Recurso:  r.URL.Path,
		IP:       r.RemoteAddr,
	})
	if err != nil {
		log.Warn().Err(err).Str("acao", acao).Msg("falha ao auditar acesso god")
	}
}

// Metrics devolve contadores globais da plataforma.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.auditar(r, "METRICS")

	m, err := h.repo.Metricas(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("falha ao coletar métricas")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Logs lista a trilha de auditoria mais recente.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	h.auditar(r, "LOGS")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "limit inválido")
			return
		}
		limit = parsed
	}

	acessos, err := h.repo.ListAcessos(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("falha ao listar acessos")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
		return
	}
	writeJSON(w, http.StatusOK, acessos)
}

// RegistrarLog permite anotar manualmente uma entrada na trilha.
func (h *Handler) RegistrarLog(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Acao     string          `json:"acao"`
		Recurso  string          `json:"recurso"`
		Detalhes json.RawMessage `json:"detalhes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Acao == "" {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "acao obrigatória")
		return
	}

	err := h.repo.RegistrarAcesso(r.Context(), Acesso{
		PessoaID: middleware.GetPessoaID(r.Context()),
		Acao:     payload.Acao,
		Recurso:  payload.Recurso,
		Detalhes: payload.Detalhes,
		IP:       r.RemoteAddr,
	})
	if err != nil {
		log.Error().Err(err).Msg("falha ao registrar acesso")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"registrado": true})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "error": nil})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
