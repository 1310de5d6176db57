package service

import (
	"errors"
	"strings"

	"github.com/despesahub/api/internal/repo"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

// NormalizePapel padroniza a grafia de papéis.
func NormalizePapel(papel string) string {
	return strings.ToUpper(strings.TrimSpace(papel))
}

// PapelValido informa se o papel pertence ao conjunto conhecido.
func PapelValido(papel string) bool {
	switch NormalizePapel(papel) {
	case repo.PapelProprietario, repo.PapelAdministrador, repo.PapelColaborador, repo.PapelVisualizador:
		return true
	}
	return false
}

// PoliticaValida informa se a política de acesso é conhecida.
func PoliticaValida(politica string) bool {
	switch strings.ToUpper(strings.TrimSpace(politica)) {
	case repo.PoliticaGlobal, repo.PoliticaIndividual:
		return true
	}
	return false
}

// Autorizado verifica se o papel está entre os exigidos.
func Autorizado(papel string, exigidos ...string) bool {
	papel = NormalizePapel(papel)
	if papel == "" {
		return false
	}
	for _, exigido := range exigidos {
		if papel == NormalizePapel(exigido) {
			return true
		}
	}
	return false
}

// EhProprietario informa se o papel é PROPRIETARIO.
func EhProprietario(papel string) bool {
	return Autorizado(papel, repo.PapelProprietario)
}

// EhAdministrador informa se o papel administra o hub.
func EhAdministrador(papel string) bool {
	return Autorizado(papel, repo.PapelProprietario, repo.PapelAdministrador)
}

// PodeEscrever informa se o papel pode criar/alterar transações.
func PodeEscrever(papel string) bool {
	return Autorizado(papel, repo.PapelProprietario, repo.PapelAdministrador, repo.PapelColaborador)
}
