package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/despesahub/api/internal/http/middleware"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/util"
)

type membroView struct {
	PessoaID       string    `json:"pessoaId"`
	Nome           string    `json:"nome"`
	Email          string    `json:"email"`
	Papel          string    `json:"papel"`
	PoliticaAcesso string    `json:"politicaAcesso"`
	MembroDesde    time.Time `json:"membroDesde"`
}

// HubAtual retorna dados do hub selecionado.
func (h *Handler) HubAtual(w http.ResponseWriter, r *http.Request) {
	hubCtx := middleware.GetHub(r.Context())

	hub, err := h.repo.GetHub(r.Context(), hubCtx.HubID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, hubView{
		ID:             hub.ID.String(),
		Nome:           hub.Nome,
		Papel:          hubCtx.Papel,
		PoliticaAcesso: hubCtx.PoliticaAcesso,
	})
}

// RenameHub altera o nome do hub atual.
func (h *Handler) RenameHub(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}
	if err := util.RequireString(payload.Nome, "nome"); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error(), nil)
		return
	}

	hubCtx := middleware.GetHub(r.Context())
	if err := h.repo.RenameHub(r.Context(), hubCtx.HubID, payload.Nome); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CreateHub cria hub adicional para a pessoa autenticada; o cliente deve
// chamar select-hub em seguida para obter token no novo contexto.
func (h *Handler) CreateHub(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}
	if err := util.RequireString(payload.Nome, "nome"); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error(), nil)
		return
	}

	hub, err := h.repo.CreateHub(r.Context(), payload.Nome, middleware.GetPessoaID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, hubView{
		ID:    hub.ID.String(),
		Nome:  hub.Nome,
		Papel: repo.PapelProprietario,
	})
}

// ListMembros lista membros ativos do hub atual.
func (h *Handler) ListMembros(w http.ResponseWriter, r *http.Request) {
	hubCtx := middleware.GetHub(r.Context())
	membros, err := h.membros.ListMembros(r.Context(), hubCtx.HubID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]membroView, 0, len(membros))
	for _, m := range membros {
		views = append(views, membroView{
			PessoaID:       m.PessoaID.String(),
			Nome:           m.Nome,
			Email:          m.Email,
			Papel:          m.Papel,
			PoliticaAcesso: m.PoliticaAcesso,
			MembroDesde:    m.CriadoEm,
		})
	}
	WriteJSON(w, http.StatusOK, views)
}

// ConvidarMembro cria vínculo e dispara convite quando necessário.
func (h *Handler) ConvidarMembro(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome           string `json:"nome"`
		Email          string `json:"email"`
		Papel          string `json:"papel"`
		PoliticaAcesso string `json:"politicaAcesso"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	hubCtx := middleware.GetHub(r.Context())
	membro, err := h.membros.Convidar(r.Context(), hubCtx.HubID, payload.Nome, payload.Email, payload.Papel, payload.PoliticaAcesso)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"pessoaId":       membro.PessoaID.String(),
		"papel":          membro.Papel,
		"politicaAcesso": membro.PoliticaAcesso,
	})
}

// AtualizarMembro altera papel/política de um membro.
func (h *Handler) AtualizarMembro(w http.ResponseWriter, r *http.Request) {
	pessoaID, err := uuid.Parse(chi.URLParam(r, "pessoaID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "pessoaId inválido", nil)
		return
	}

	var payload struct {
		Papel          string `json:"papel"`
		PoliticaAcesso string `json:"politicaAcesso"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	hubCtx := middleware.GetHub(r.Context())
	if err := h.membros.AtualizarMembro(r.Context(), hubCtx.HubID, pessoaID, payload.Papel, payload.PoliticaAcesso); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// RemoverMembro desativa o vínculo de um membro.
func (h *Handler) RemoverMembro(w http.ResponseWriter, r *http.Request) {
	pessoaID, err := uuid.Parse(chi.URLParam(r, "pessoaID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "pessoaId inválido", nil)
		return
	}

	hubCtx := middleware.GetHub(r.Context())
	if err := h.membros.RemoverMembro(r.Context(), hubCtx.HubID, pessoaID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
