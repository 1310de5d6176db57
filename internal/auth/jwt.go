package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims representa as informações presentes em um JWT de acesso.
// hub_id, papel e politica_acesso só existem após a seleção de hub.
type Claims struct {
	HubID          string `json:"hub_id,omitempty"`
	Papel          string `json:"papel,omitempty"`
	PoliticaAcesso string `json:"politica_acesso,omitempty"`
	jwt.RegisteredClaims
}

// TemHub informa se o token carrega contexto de hub.
func (c *Claims) TemHub() bool {
	return c.HubID != ""
}

// JWTManager encapsula geração e validação de tokens de acesso.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccessToken cria um JWT HS256 vinculado a pessoa+hub+papel.
func (m *JWTManager) GenerateAccessToken(pessoaID, hubID, papel, politica string) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	claims := Claims{
		HubID:          hubID,
		Papel:          papel,
		PoliticaAcesso: politica,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pessoaID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// ParseAndValidate verifica assinatura e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}
