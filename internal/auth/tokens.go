package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateOpaqueToken cria token aleatório seguro e seu hash persistível.
// Usado tanto para refresh tokens quanto para tokens de ação
// (verificação de e-mail, convite, reset de senha).
func GenerateOpaqueToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashToken(raw)
	return raw, hashed, nil
}

// HashToken produz hash SHA-256 base64 de um token opaco.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey monta chave única para guardar estado do refresh.
func RefreshRedisKey(hash string) string {
	return fmt.Sprintf("refresh:%s", hash)
}

// LoginFailKey monta chave do contador de falhas de login por e-mail.
func LoginFailKey(email string) string {
	return fmt.Sprintf("login:falhas:%s", email)
}

// LockoutKey monta chave do bloqueio temporário de conta.
func LockoutKey(email string) string {
	return fmt.Sprintf("login:bloqueio:%s", email)
}
