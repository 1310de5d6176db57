package transacao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/despesahub/api/internal/http/middleware"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/service"
)

// Uploader grava arquivos (comprovantes) e devolve a URL pública.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Handler expõe as rotas de transações, pagamentos, tags e dashboard.
type Handler struct {
	svc      *Service
	uploader Uploader
}

// NewHandler cria o handler HTTP do domínio de transações.
func NewHandler(svc *Service, uploader Uploader) *Handler {
	return &Handler{svc: svc, uploader: uploader}
}

// Mount registra as rotas sob o router recebido. Todas exigem hub
// selecionado; o guard fica no router principal.
func Mount(r chi.Router, h *Handler) {
	r.Get("/transacoes", h.List)
	r.Post("/transacoes", h.Create)
	r.Get("/transacoes/{transacaoID}", h.Get)
	r.Put("/transacoes/{transacaoID}", h.Update)
	r.Delete("/transacoes/{transacaoID}", h.Delete)
	r.Post("/transacoes/{transacaoID}/comprovante", h.UploadComprovante)
	r.Post("/transacoes/{transacaoID}/pagamentos", h.RegistrarPagamento)

	r.Get("/tags", h.ListTags)
	r.Post("/tags", h.CreateTag)
	r.Delete("/tags/{tagID}", h.DeleteTag)

	r.Get("/dashboard", h.Dashboard)
}

func escopoFrom(r *http.Request) (uuid.UUID, Escopo, bool) {
	hub := middleware.GetHub(r.Context())
	if hub == nil {
		return uuid.Nil, Escopo{}, false
	}
	return hub.HubID, Escopo{
		PessoaID:       middleware.GetPessoaID(r.Context()),
		Papel:          hub.Papel,
		PoliticaAcesso: hub.PoliticaAcesso,
	}, true
}

type transacaoPayload struct {
	Tipo               string `json:"tipo"`
	Descricao          string `json:"descricao"`
	ValorTotalCentavos int64  `json:"valorTotalCentavos"`
	Data               string `json:"data"`
	Participantes      []struct {
		PessoaID      string `json:"pessoaId"`
		ValorCentavos int64  `json:"valorCentavos"`
	} `json:"participantes"`
	Tags []string `json:"tags"`
}

// List devolve transações do hub com filtros opcionais de querystring.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	filtro, err := filtroFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error())
		return
	}

	itens, err := h.svc.List(r.Context(), hubID, escopo, filtro)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itens)
}

// Get devolve uma transação com participantes, pagamentos e tags.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "transacaoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	t, err := h.svc.Get(r.Context(), hubID, escopo, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create registra nova transação com divisão entre participantes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}
	if !service.PodeEscrever(escopo.Papel) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão de escrita")
		return
	}

	var payload transacaoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "json inválido")
		return
	}

	nova, err := payloadToNova(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error())
		return
	}

	t, err := h.svc.Create(r.Context(), hubID, escopo, nova)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Update altera descrição e data da transação.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}
	if !service.PodeEscrever(escopo.Papel) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão de escrita")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "transacaoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	var payload struct {
		Descricao string `json:"descricao"`
		Data      string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "json inválido")
		return
	}

	var data time.Time
	if payload.Data != "" {
		data, err = time.Parse(time.RFC3339, payload.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "data inválida, use RFC3339")
			return
		}
	}

	if err := h.svc.Update(r.Context(), hubID, escopo, id, payload.Descricao, data); err != nil {
		writeDomainError(w, err)
		return
	}

	t, err := h.svc.Get(r.Context(), hubID, escopo, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete remove a transação e seus vínculos.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "transacaoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	if err := h.svc.Delete(r.Context(), hubID, escopo, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removida": true})
}

// UploadComprovante recebe o arquivo, envia ao storage e grava a URL.
func (h *Handler) UploadComprovante(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}
	if !service.PodeEscrever(escopo.Papel) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão de escrita")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "transacaoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "multipart inválido")
		return
	}
	file, header, err := r.FormFile("arquivo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "campo 'arquivo' obrigatório")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "falha ao ler arquivo")
		return
	}

	key := fmt.Sprintf("comprovantes/%s/%s-%s", hubID, id, header.Filename)
	url, err := h.uploader.Upload(r.Context(), key, header.Header.Get("Content-Type"), data)
	if err != nil {
		log.Error().Err(err).Msg("upload de comprovante falhou")
		writeError(w, http.StatusBadGateway, "STORAGE", "falha ao enviar comprovante")
		return
	}

	if err := h.svc.AnexarComprovante(r.Context(), hubID, escopo, id, url); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"comprovanteUrl": url})
}

// RegistrarPagamento quita parcial ou totalmente a cota de um participante.
func (h *Handler) RegistrarPagamento(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}
	if !service.PodeEscrever(escopo.Papel) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão de escrita")
		return
	}

	transacaoID, err := uuid.Parse(chi.URLParam(r, "transacaoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	var payload struct {
		PessoaID      string `json:"pessoaId"`
		ValorCentavos int64  `json:"valorCentavos"`
		PagoEm        string `json:"pagoEm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "json inválido")
		return
	}

	pessoaID := middleware.GetPessoaID(r.Context())
	if payload.PessoaID != "" {
		pessoaID, err = uuid.Parse(payload.PessoaID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "pessoaId inválido")
			return
		}
	}

	var pagoEm time.Time
	if payload.PagoEm != "" {
		pagoEm, err = time.Parse(time.RFC3339, payload.PagoEm)
		if err != nil {
			writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "pagoEm inválido, use RFC3339")
			return
		}
	}

	pagamento, err := h.svc.RegistrarPagamento(r.Context(), hubID, escopo, transacaoID, pessoaID, payload.ValorCentavos, pagoEm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pagamento)
}

// ListTags devolve as tags do hub.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	hubID, _, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	tags, err := h.svc.ListTags(r.Context(), hubID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// CreateTag cria tag para categorização de transações.
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}
	if !service.PodeEscrever(escopo.Papel) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão de escrita")
		return
	}

	var payload struct {
		Nome string `json:"nome"`
		Cor  string `json:"cor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "json inválido")
		return
	}

	tag, err := h.svc.CreateTag(r.Context(), hubID, payload.Nome, payload.Cor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// DeleteTag remove tag; vínculos com transações caem em cascata.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", "id inválido")
		return
	}

	if err := h.svc.DeleteTag(r.Context(), hubID, escopo, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removida": true})
}

// Dashboard devolve o resumo agregado do período.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	hubID, escopo, ok := escopoFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
		return
	}

	inicio, fim, err := periodoFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error())
		return
	}

	resumo, err := h.svc.Dashboard(r.Context(), hubID, escopo, inicio, fim)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumo)
}

func payloadToNova(p transacaoPayload) (NovaTransacao, error) {
	nova := NovaTransacao{
		Tipo:               p.Tipo,
		Descricao:          p.Descricao,
		ValorTotalCentavos: p.ValorTotalCentavos,
	}

	if p.Data != "" {
		data, err := time.Parse(time.RFC3339, p.Data)
		if err != nil {
			return NovaTransacao{}, errors.New("data inválida, use RFC3339")
		}
		nova.Data = data
	}

	for _, item := range p.Participantes {
		pessoaID, err := uuid.Parse(item.PessoaID)
		if err != nil {
			return NovaTransacao{}, errors.New("pessoaId inválido em participantes")
		}
		nova.Participantes = append(nova.Participantes, SplitItem{
			PessoaID:      pessoaID,
			ValorCentavos: item.ValorCentavos,
		})
	}

	for _, raw := range p.Tags {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			return NovaTransacao{}, errors.New("tag inválida")
		}
		nova.TagIDs = append(nova.TagIDs, tagID)
	}

	return nova, nil
}

func filtroFromQuery(r *http.Request) (Filtro, error) {
	filtro := Filtro{Limit: 50}
	q := r.URL.Query()

	if tipo := q.Get("tipo"); tipo != "" {
		filtro.Tipo = tipo
	}
	if raw := q.Get("tagId"); raw != "" {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			return Filtro{}, errors.New("tagId inválido")
		}
		filtro.TagID = &tagID
	}

	inicio, fim, err := periodoFromQuery(r)
	if err != nil {
		return Filtro{}, err
	}
	filtro.DataInicio = inicio
	filtro.DataFim = fim

	if raw := q.Get("limit"); raw != "" {
		var limit int
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 || limit > 200 {
			return Filtro{}, errors.New("limit inválido")
		}
		filtro.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		var offset int
		if _, err := fmt.Sscanf(raw, "%d", &offset); err != nil || offset < 0 {
			return Filtro{}, errors.New("offset inválido")
		}
		filtro.Offset = offset
	}

	return filtro, nil
}

func periodoFromQuery(r *http.Request) (*time.Time, *time.Time, error) {
	var inicio, fim *time.Time
	q := r.URL.Query()

	if raw := q.Get("inicio"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.New("inicio inválido, use RFC3339")
		}
		inicio = &t
	}
	if raw := q.Get("fim"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.New("fim inválido, use RFC3339")
		}
		fim = &t
	}
	return inicio, fim, nil
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

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTipoInvalido),
		errors.Is(err, ErrValorInvalido),
		errors.Is(err, ErrDivisaoInvalida),
		errors.Is(err, ErrNaoParticipante),
		errors.Is(err, ErrDescricaoObrigatoria),
		errors.Is(err, ErrNomeTagObrigatorio):
		writeError(w, http.StatusBadRequest, "DADOS_INVALIDOS", err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado")
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado")
	default:
		log.Error().Err(err).Msg("erro inesperado em transações")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
	}
}
