// Package god concentra o painel administrativo global: métricas da
// plataforma e trilha de auditoria dos acessos a essas rotas.
package god

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Metricas agrega contadores globais da plataforma.
type Metricas struct {
	TotalPessoas       int64 `json:"totalPessoas"`
	TotalHubs          int64 `json:"totalHubs"`
	TotalTransacoes    int64 `json:"totalTransacoes"`
	VolumeCentavos     int64 `json:"volumeCentavos"`
	SessoesAtivas      int64 `json:"sessoesAtivas"`
	PessoasVerificadas int64 `json:"pessoasVerificadas"`
}

// Acesso é uma entrada da trilha de auditoria do painel.
type Acesso struct {
	ID       uuid.UUID       `json:"id"`
	PessoaID uuid.UUID       `json:"pessoaId"`
	Acao     string          `json:"acao"`
	Recurso  string          `json:"recurso"`
	Detalhes json.RawMessage `json:"detalhes,omitempty"`
	IP       string          `json:"ip"`
	CriadoEm time.Time       `json:"criadoEm"`
}

// Repository consulta métricas e persiste acessos no Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria o repositório do painel.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const consultaMetricas = `
	SELECT
		(SELECT COUNT(*) FROM pessoas),
		(SELECT COUNT(*) FROM pessoas WHERE email_verificado),
		(SELECT COUNT(*) FROM hubs),
		(SELECT COUNT(*) FROM transacoes),
		(SELECT COALESCE(SUM(valor_total_centavos), 0) FROM transacoes),
		(SELECT COUNT(*) FROM tokens_refresh WHERE NOT revogado AND expiracao > now())
`

// Metricas coleta os contadores globais em uma única query.
func (r *Repository) Metricas(ctx context.Context) (Metricas, error) {
	var m Metricas
	err := r.pool.QueryRow(ctx, consultaMetricas).Scan(
		&m.TotalPessoas,
		&m.PessoasVerificadas,
		&m.TotalHubs,
		&m.TotalTransacoes,
		&m.VolumeCentavos,
		&m.SessoesAtivas,
	)
	return m, err
}

// RegistrarAcesso grava uma entrada de auditoria.
func (r *Repository) RegistrarAcesso(ctx context.Context, a Acesso) error {
	detalhes := a.Detalhes
	if len(detalhes) == 0 {
		detalhes = json.RawMessage("{}")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO acessos_god (id, pessoa_id, acao, recurso, detalhes, ip, criado_em)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, uuid.New(), a.PessoaID, a.Acao, a.Recurso, detalhes, a.IP)
	return err
}

// ListAcessos devolve as entradas mais recentes da trilha.
func (r *Repository) ListAcessos(ctx context.Context, limit int) ([]Acesso, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, pessoa_id, acao, recurso, detalhes, ip, criado_em
		FROM acessos_god
		ORDER BY criado_em DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acessos []Acesso
	for rows.Next() {
		var a Acesso
		if err := rows.Scan(&a.ID, &a.PessoaID, &a.Acao, &a.Recurso, &a.Detalhes, &a.IP, &a.CriadoEm); err != nil {
			return nil, err
		}
		acessos = append(acessos, a)
	}
	return acessos, rows.Err()
}
