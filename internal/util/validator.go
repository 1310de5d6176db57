package util

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha: ao menos 8
// caracteres com letra e dígito.
func ValidatePassword(senha string) error {
	if len(senha) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	var temLetra, temDigito bool
	for _, r := range senha {
		switch {
		case unicode.IsLetter(r):
			temLetra = true
		case unicode.IsDigit(r):
			temDigito = true
		}
	}
	if !temLetra || !temDigito {
		return errors.New("senha deve conter letras e números")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}
