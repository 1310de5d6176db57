package service

import (
	"testing"

	"github.com/despesahub/api/internal/repo"
)

func TestAutorizado(t *testing.T) {
	cases := []struct {
		nome     string
		papel    string
		exigidos []string
		quer     bool
	}{
		{"proprietario em admin", repo.PapelProprietario, []string{repo.PapelProprietario, repo.PapelAdministrador}, true},
		{"colaborador fora de admin", repo.PapelColaborador, []string{repo.PapelProprietario, repo.PapelAdministrador}, false},
		{"case insensitive", "administrador", []string{repo.PapelAdministrador}, true},
		{"papel vazio", "", []string{repo.PapelVisualizador}, false},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if got := Autorizado(tc.papel, tc.exigidos...); got != tc.quer {
				t.Fatalf("Autorizado(%q, %v) = %v, quer %v", tc.papel, tc.exigidos, got, tc.quer)
			}
		})
	}
}

func TestPodeEscrever(t *testing.T) {
	if PodeEscrever(repo.PapelVisualizador) {
		t.Fatal("VISUALIZADOR não deveria escrever")
	}
	if !PodeEscrever(repo.PapelColaborador) {
		t.Fatal("COLABORADOR deveria escrever")
	}
}

func TestPoliticaValida(t *testing.T) {
	if !PoliticaValida("individual") || !PoliticaValida(repo.PoliticaGlobal) {
		t.Fatal("políticas conhecidas deveriam validar")
	}
	if PoliticaValida("TOTAL") {
		t.Fatal("política desconhecida não deveria validar")
	}
}
