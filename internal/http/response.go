package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/service"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// writeServiceError traduz erros conhecidos dos serviços em códigos estáveis.
// Erros inesperados são logados e viram 500 genérico, sem vazar detalhes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "CREDENCIAIS_INVALIDAS", "e-mail ou senha incorretos", nil)
	case errors.Is(err, service.ErrEmailNaoVerificado):
		WriteError(w, http.StatusUnauthorized, "EMAIL_NAO_VERIFICADO", "confirme seu e-mail antes de entrar", nil)
	case errors.Is(err, service.ErrContaBloqueada):
		WriteError(w, http.StatusUnauthorized, "CONTA_BLOQUEADA", "conta bloqueada temporariamente por excesso de tentativas", nil)
	case errors.Is(err, service.ErrRefreshInvalid):
		WriteError(w, http.StatusUnauthorized, "TOKEN_INVALIDO", "sessão inválida ou expirada", nil)
	case errors.Is(err, service.ErrNaoMembro):
		WriteError(w, http.StatusForbidden, "NAO_MEMBRO", "você não participa deste hub", nil)
	case errors.Is(err, service.ErrTokenInvalido):
		WriteError(w, http.StatusBadRequest, "TOKEN_INVALIDO", "token inválido, expirado ou já utilizado", nil)
	case errors.Is(err, service.ErrSenhaFraca):
		WriteError(w, http.StatusBadRequest, "SENHA_FRACA", "senha deve ter ao menos 8 caracteres com letras e números", nil)
	case errors.Is(err, service.ErrJaMembro):
		WriteError(w, http.StatusConflict, "DADOS_INVALIDOS", "pessoa já é membro deste hub", nil)
	case errors.Is(err, service.ErrPapelInvalido), errors.Is(err, service.ErrPoliticaInvalida), errors.Is(err, service.ErrEmailInvalido):
		WriteError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error(), nil)
	case errors.Is(err, service.ErrUltimoProprietario):
		WriteError(w, http.StatusConflict, "DADOS_INVALIDOS", "hub precisa de ao menos um proprietário", nil)
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado", nil)
	case errors.Is(err, repo.ErrEmailEmUso):
		WriteError(w, http.StatusConflict, "EMAIL_EM_USO", "e-mail já cadastrado", nil)
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	default:
		log.Error().Err(err).Msg("erro inesperado")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
