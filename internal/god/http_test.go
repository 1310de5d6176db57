package god

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/despesahub/api/internal/http/middleware"
)

type stubGodRepo struct {
	metricas Metricas
	acessos  []Acesso
}

func (s *stubGodRepo) Metricas(ctx context.Context) (Metricas, error) {
	return s.metricas, nil
}

func (s *stubGodRepo) RegistrarAcesso(ctx context.Context, a Acesso) error {
	s.acessos = append(s.acessos, a)
	return nil
}

func (s *stubGodRepo) ListAcessos(ctx context.Context, limit int) ([]Acesso, error) {
	if limit < len(s.acessos) {
		return s.acessos[:limit], nil
	}
	return s.acessos, nil
}

func requisicaoGod(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := httpmiddleware.WithAuth(req.Context(), &httpmiddleware.AuthContext{PessoaID: uuid.New()})
	return req.WithContext(ctx)
}

func TestMetricsRegistraAuditoria(t *testing.T) {
	repoStub := &stubGodRepo{
		metricas: Metricas{TotalPessoas: 10, TotalHubs: 3, TotalTransacoes: 42, VolumeCentavos: 123400, SessoesAtivas: 5},
	}
	r := chi.NewRouter()
	Mount(r, NewHandler(repoStub))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requisicaoGod(http.MethodGet, "/metrics", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("esperava 200, veio %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data Metricas `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decodificar: %v", err)
	}
	if resp.Data.TotalTransacoes != 42 {
		t.Fatalf("métricas inesperadas: %+v", resp.Data)
	}

	if len(repoStub.acessos) != 1 || repoStub.acessos[0].Acao != "METRICS" {
		t.Fatalf("esperava 1 acesso auditado METRICS, veio %+v", repoStub.acessos)
	}
}

func TestRegistrarLogManual(t *testing.T) {
	repoStub := &stubGodRepo{}
	r := chi.NewRouter()
	Mount(r, NewHandler(repoStub))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requisicaoGod(http.MethodPost, "/logs", `{"acao":"INSPECAO","recurso":"hubs"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("esperava 201, veio %d: %s", rec.Code, rec.Body.String())
	}
	if len(repoStub.acessos) != 1 || repoStub.acessos[0].Acao != "INSPECAO" {
		t.Fatalf("esperava acesso INSPECAO, veio %+v", repoStub.acessos)
	}

	recInvalido := httptest.NewRecorder()
	r.ServeHTTP(recInvalido, requisicaoGod(http.MethodPost, "/logs", `{}`))
	if recInvalido.Code != http.StatusBadRequest {
		t.Fatalf("esperava 400 sem acao, veio %d", recInvalido.Code)
	}
}

func TestLogsComLimite(t *testing.T) {
	repoStub := &stubGodRepo{
		acessos: []Acesso{{Acao: "A"}, {Acao: "B"}, {Acao: "C"}},
	}
	r := chi.NewRouter()
	Mount(r, NewHandler(repoStub))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requisicaoGod(http.MethodGet, "/logs?limit=2", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("esperava 200, veio %d", rec.Code)
	}

	var resp struct {
		Data []Acesso `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decodificar: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("esperava 2 entradas, veio %d", len(resp.Data))
	}
}
