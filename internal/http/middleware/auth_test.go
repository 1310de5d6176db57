package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/repo"
)

func ecoAuth(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := GetAuth(r.Context())
		if ac == nil {
			t.Fatal("esperava AuthContext no contexto")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareComHub(t *testing.T) {
	mgr := auth.NewJWTManager(strings.Repeat("x", 32), time.Minute)
	pessoaID := uuid.New()
	hubID := uuid.New()

	token, _, err := mgr.GenerateAccessToken(pessoaID.String(), hubID.String(), repo.PapelColaborador, repo.PoliticaIndividual)
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	var capturado *AuthContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturado = GetAuth(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Auth(mgr)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("esperava 200, veio %d", rec.Code)
	}
	if capturado == nil || capturado.PessoaID != pessoaID {
		t.Fatalf("AuthContext inesperado: %+v", capturado)
	}
	if capturado.Hub == nil || capturado.Hub.HubID != hubID || capturado.Hub.Papel != repo.PapelColaborador {
		t.Fatalf("HubContext inesperado: %+v", capturado.Hub)
	}
}

func TestAuthMiddlewareSemHub(t *testing.T) {
	mgr := auth.NewJWTManager(strings.Repeat("x", 32), time.Minute)

	token, _, err := mgr.GenerateAccessToken(uuid.NewString(), "", "", "")
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Auth(mgr)(RequireHub(ecoAuth(t))).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("esperava 403 sem hub, veio %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HUB_NAO_SELECIONADO") {
		t.Fatalf("esperava HUB_NAO_SELECIONADO, veio %s", rec.Body.String())
	}
}

func TestAuthMiddlewareTokenInvalido(t *testing.T) {
	mgr := auth.NewJWTManager(strings.Repeat("x", 32), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer lixo")
	rec := httptest.NewRecorder()
	Auth(mgr)(ecoAuth(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("esperava 401, veio %d", rec.Code)
	}
}

func TestRequirePapeis(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithAuth(req.Context(), &AuthContext{
		PessoaID: uuid.New(),
		Hub:      &HubContext{HubID: uuid.New(), Papel: repo.PapelVisualizador},
	})

	rec := httptest.NewRecorder()
	RequirePapeis(repo.PapelProprietario, repo.PapelAdministrador)(ecoAuth(t)).ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("esperava 403 para visualizador, veio %d", rec.Code)
	}

	ctxAdmin := WithAuth(req.Context(), &AuthContext{
		PessoaID: uuid.New(),
		Hub:      &HubContext{HubID: uuid.New(), Papel: repo.PapelAdministrador},
	})
	recAdmin := httptest.NewRecorder()
	RequirePapeis(repo.PapelProprietario, repo.PapelAdministrador)(ecoAuth(t)).ServeHTTP(recAdmin, req.WithContext(ctxAdmin))

	if recAdmin.Code != http.StatusOK {
		t.Fatalf("esperava 200 para administrador, veio %d", recAdmin.Code)
	}
}
