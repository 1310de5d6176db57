package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/service"
)

type contextKey string

const contextKeyAuth contextKey = "auth"

// HubContext é o contexto de hub embutido no token de acesso.
type HubContext struct {
	HubID          uuid.UUID
	Papel          string
	PoliticaAcesso string
}

// AuthContext distingue os dois estados pós-autenticação: identidade
// resolvida com ou sem hub selecionado (Hub == nil).
type AuthContext struct {
	PessoaID uuid.UUID
	Hub      *HubContext
}

// Auth valida o JWT de acesso e injeta AuthContext no contexto da requisição.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			pessoaID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			ac := &AuthContext{PessoaID: pessoaID}
			if claims.TemHub() {
				hubID, err := uuid.Parse(claims.HubID)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "AUTH", "hub inválido")
					return
				}
				ac.Hub = &HubContext{
					HubID:          hubID,
					Papel:          claims.Papel,
					PoliticaAcesso: claims.PoliticaAcesso,
				}
			}

			ctx := context.WithValue(r.Context(), contextKeyAuth, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuth recupera o AuthContext; nil quando a rota não passou pelo Auth.
func GetAuth(ctx context.Context) *AuthContext {
	val, _ := ctx.Value(contextKeyAuth).(*AuthContext)
	return val
}

// GetPessoaID recupera o subject autenticado.
func GetPessoaID(ctx context.Context) uuid.UUID {
	if ac := GetAuth(ctx); ac != nil {
		return ac.PessoaID
	}
	return uuid.Nil
}

// GetHub recupera o contexto de hub; nil antes da seleção.
func GetHub(ctx context.Context) *HubContext {
	if ac := GetAuth(ctx); ac != nil {
		return ac.Hub
	}
	return nil
}

// WithAuth injeta AuthContext manualmente; destinado a testes.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, contextKeyAuth, ac)
}

// RequireHub garante que o token carrega contexto de hub.
func RequireHub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetHub(r.Context()) == nil {
			writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePapeis garante que o papel do hub atual está entre os exigidos.
func RequirePapeis(papeis ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub := GetHub(r.Context())
			if hub == nil {
				writeError(w, http.StatusForbidden, "HUB_NAO_SELECIONADO", "selecione um hub antes de continuar")
				return
			}
			if !service.Autorizado(hub.Papel, papeis...) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem permissão para esta operação")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdministrador exige PROPRIETARIO ou ADMINISTRADOR.
func RequireAdministrador(next http.Handler) http.Handler {
	return RequirePapeis(repo.PapelProprietario, repo.PapelAdministrador)(next)
}

// RequireProprietario exige PROPRIETARIO.
func RequireProprietario(next http.Handler) http.Handler {
	return RequirePapeis(repo.PapelProprietario)(next)
}

type godChecker interface {
	GetPessoaByID(ctx context.Context, id uuid.UUID) (repo.Pessoa, error)
}

// RequireGod restringe o painel administrativo a contas com is_god.
func RequireGod(pessoas godChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pessoaID := GetPessoaID(r.Context())
			if pessoaID == uuid.Nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}
			pessoa, err := pessoas.GetPessoaByID(r.Context(), pessoaID)
			if err != nil || !pessoa.IsGod {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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
