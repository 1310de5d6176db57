package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	mgr := NewJWTManager(strings.Repeat("s", 32), time.Minute)
	pessoaID := uuid.NewString()
	hubID := uuid.NewString()

	token, jti, err := mgr.GenerateAccessToken(pessoaID, hubID, "COLABORADOR", "INDIVIDUAL")
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}
	if jti == "" {
		t.Fatal("esperava jti preenchido")
	}

	claims, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validar token: %v", err)
	}
	if claims.Subject != pessoaID {
		t.Fatalf("subject: esperava %s, veio %s", pessoaID, claims.Subject)
	}
	if claims.HubID != hubID || claims.Papel != "COLABORADOR" || claims.PoliticaAcesso != "INDIVIDUAL" {
		t.Fatalf("claims de hub inesperadas: %+v", claims)
	}
	if !claims.TemHub() {
		t.Fatal("esperava TemHub() true")
	}
}

func TestTokenSemHub(t *testing.T) {
	mgr := NewJWTManager(strings.Repeat("s", 32), time.Minute)

	token, _, err := mgr.GenerateAccessToken(uuid.NewString(), "", "", "")
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	claims, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validar token: %v", err)
	}
	if claims.TemHub() {
		t.Fatal("token sem hub não deveria reportar TemHub()")
	}
}

func TestParseRejeitaTokenExpirado(t *testing.T) {
	mgr := NewJWTManager(strings.Repeat("s", 32), -time.Minute)

	token, _, err := mgr.GenerateAccessToken(uuid.NewString(), "", "", "")
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	if _, err := mgr.ParseAndValidate(token); err == nil {
		t.Fatal("esperava erro para token expirado")
	}
}

func TestParseRejeitaSegredoErrado(t *testing.T) {
	a := NewJWTManager(strings.Repeat("a", 32), time.Minute)
	b := NewJWTManager(strings.Repeat("b", 32), time.Minute)

	token, _, err := a.GenerateAccessToken(uuid.NewString(), "", "", "")
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	if _, err := b.ParseAndValidate(token); err == nil {
		t.Fatal("esperava erro para assinatura inválida")
	}
}

func TestHashTokenDeterministico(t *testing.T) {
	raw, hashed, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}
	if raw == hashed {
		t.Fatal("hash não deveria ser igual ao token cru")
	}
	if HashToken(raw) != hashed {
		t.Fatal("HashToken deveria ser determinístico")
	}
}
