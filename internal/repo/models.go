package repo

import (
	"time"

	"github.com/google/uuid"
)

// Papéis de membro dentro de um hub, do mais ao menos privilegiado.
const (
	PapelProprietario  = "PROPRIETARIO"
	PapelAdministrador = "ADMINISTRADOR"
	PapelColaborador   = "COLABORADOR"
	PapelVisualizador  = "VISUALIZADOR"
)

// Políticas de acesso a dados para COLABORADOR.
const (
	PoliticaGlobal     = "GLOBAL"
	PoliticaIndividual = "INDIVIDUAL"
)

// Pessoa representa um usuário do sistema.
type Pessoa struct {
	ID              uuid.UUID
	Nome            string
	Email           string
	SenhaHash       *string
	EhAdministrador bool
	IsGod           bool
	EmailVerificado bool
	Ativo           bool
	CriadoEm        time.Time
}

// Hub representa o limite de tenant sob o qual pessoas e transações vivem.
type Hub struct {
	ID        uuid.UUID
	Nome      string
	CriadorID uuid.UUID
	CriadoEm  time.Time
}

// Membro vincula pessoa ao hub com papel e política de acesso.
type Membro struct {
	PessoaID       uuid.UUID
	HubID          uuid.UUID
	Papel          string
	PoliticaAcesso string
	Ativo          bool
	CriadoEm       time.Time
}

// HubComPapel agrega hub com o papel da pessoa, retornado no login.
type HubComPapel struct {
	HubID          uuid.UUID
	Nome           string
	Papel          string
	PoliticaAcesso string
}

// TokenRefresh modela a tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	PessoaID  uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos de criação de refresh token.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	PessoaID  uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}
