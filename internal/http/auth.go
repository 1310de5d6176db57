package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/despesahub/api/internal/http/middleware"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/util"
)

type usuarioView struct {
	ID              string `json:"id"`
	Nome            string `json:"nome"`
	Email           string `json:"email"`
	EmailVerificado bool   `json:"emailVerificado"`
}

type hubView struct {
	ID             string `json:"id"`
	Nome           string `json:"nome"`
	Papel          string `json:"papel"`
	PoliticaAcesso string `json:"politicaAcesso,omitempty"`
}

func viewPessoa(p repo.Pessoa) usuarioView {
	return usuarioView{
		ID:              p.ID.String(),
		Nome:            p.Nome,
		Email:           p.Email,
		EmailVerificado: p.EmailVerificado,
	}
}

func viewHubs(hubs []repo.HubComPapel) []hubView {
	out := make([]hubView, 0, len(hubs))
	for _, h := range hubs {
		out = append(out, hubView{
			ID:             h.HubID.String(),
			Nome:           h.Nome,
			Papel:          h.Papel,
			PoliticaAcesso: h.PoliticaAcesso,
		})
	}
	return out
}

// Login realiza a primeira etapa: credenciais → refresh token + hubs.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":         viewPessoa(result.Pessoa),
		"hubs":         viewHubs(result.Hubs),
		"refreshToken": result.RefreshToken,
	})
}

// SelectHub realiza a segunda etapa: refresh token + hub → access token.
func (h *Handler) SelectHub(w http.ResponseWriter, r *http.Request) {
	rawRefresh, ok := bearerToken(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "TOKEN_INVALIDO", "refresh token ausente", nil)
		return
	}

	var payload struct {
		HubID string `json:"hubId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	hubID, err := uuid.Parse(payload.HubID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "hubId inválido", nil)
		return
	}

	sel, err := h.authService.SelectHub(r.Context(), rawRefresh, hubID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": sel.AccessToken,
		"hubContext": hubView{
			ID:             sel.Hub.HubID.String(),
			Nome:           sel.Hub.Nome,
			Papel:          sel.Hub.Papel,
			PoliticaAcesso: sel.Hub.PoliticaAcesso,
		},
	})
}

// Refresh reemite access token para o hub informado.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rawRefresh, ok := bearerToken(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "TOKEN_INVALIDO", "refresh token ausente", nil)
		return
	}

	var payload struct {
		HubID string `json:"hubId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	hubID, err := uuid.Parse(payload.HubID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "hubId inválido", nil)
		return
	}

	sel, err := h.authService.Refresh(r.Context(), rawRefresh, hubID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"accessToken": sel.AccessToken})
}

// Logout revoga o refresh token apresentado.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rawRefresh, _ := bearerToken(r)
	if err := h.authService.Logout(r.Context(), rawRefresh); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Register cria pessoa + hub inicial e dispara verificação de e-mail.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome    string `json:"nome"`
		Email   string `json:"email"`
		Senha   string `json:"senha"`
		NomeHub string `json:"nomeHub"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	details := map[string]string{}
	if err := util.RequireString(payload.Nome, "nome"); err != nil {
		details["nome"] = err.Error()
	}
	if err := util.ValidateEmail(payload.Email); err != nil {
		details["email"] = err.Error()
	}
	if err := util.RequireString(payload.NomeHub, "nomeHub"); err != nil {
		details["nomeHub"] = err.Error()
	}
	if len(details) > 0 {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "dados inválidos", details)
		return
	}

	pessoa, err := h.authService.Register(r.Context(), payload.Nome, payload.Email, payload.Senha, payload.NomeHub)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"user": viewPessoa(*pessoa)})
}

// VerifyEmail consome o token de verificação.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), payload.Token); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"verificado": true})
}

// ResendVerification reenvia o e-mail de confirmação. Sempre responde 200
// para não revelar quais e-mails existem.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}
	if err := util.ValidateEmail(payload.Email); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error(), nil)
		return
	}

	if err := h.authService.ResendVerification(r.Context(), payload.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AtivarConvite define a senha do convidado e ativa a conta.
func (h *Handler) AtivarConvite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token     string `json:"token"`
		NovaSenha string `json:"novaSenha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	pessoa, err := h.authService.AtivarConvite(r.Context(), payload.Token, payload.NovaSenha)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": viewPessoa(*pessoa)})
}

// RequestPasswordReset inicia redefinição de senha; resposta sempre 200.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}
	if err := util.ValidateEmail(payload.Email); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error(), nil)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ResetPassword consome o token de redefinição e derruba as sessões.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token     string `json:"token"`
		NovaSenha string `json:"novaSenha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "JSON inválido", nil)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), payload.Token, payload.NovaSenha); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me retorna perfil e vínculos da pessoa autenticada.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	pessoa, hubs, err := h.authService.GetMe(r.Context(), middleware.GetPessoaID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user": viewPessoa(pessoa),
		"hubs": viewHubs(hubs),
	})
}

// UpdateMe altera o nome de exibição.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
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

	if err := h.authService.UpdateMe(r.Context(), middleware.GetPessoaID(r.Context()), payload.Nome); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
