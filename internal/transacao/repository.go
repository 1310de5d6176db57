package transacao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/despesahub/api/internal/db"
	"github.com/despesahub/api/internal/repo"
)

// Repository fornece acesso às transações, pagamentos e tags do hub.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria o repositório sobre o pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transacaoCols = `t.id, t.hub_id, t.tipo, t.descricao, t.valor_total_centavos, t.data, t.criado_por, t.comprovante_url, t.criado_em`

func scanTransacao(row pgx.Row) (Transacao, error) {
	var t Transacao
	err := row.Scan(&t.ID, &t.HubID, &t.Tipo, &t.Descricao, &t.ValorTotalCentavos, &t.Data, &t.CriadoPor, &t.ComprovanteURL, &t.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transacao{}, repo.ErrNotFound
		}
		return Transacao{}, err
	}
	return t, nil
}

// List devolve transações do hub respeitando o filtro, com participantes
// e status agregados.
func (r *Repository) List(ctx context.Context, hubID uuid.UUID, filtro Filtro) ([]Transacao, error) {
	query := `SELECT ` + transacaoCols + ` FROM transacoes t WHERE t.hub_id = $1`
	args := []any{hubID}

	if filtro.ApenasPessoa != nil {
		args = append(args, *filtro.ApenasPessoa)
		query += fmt.Sprintf(" AND t.criado_por = $%d", len(args))
	}
	if filtro.Tipo != "" {
		args = append(args, filtro.Tipo)
		query += fmt.Sprintf(" AND t.tipo = $%d", len(args))
	}
	if filtro.TagID != nil {
		args = append(args, *filtro.TagID)
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM transacao_tags tt WHERE tt.transacao_id = t.id AND tt.tag_id = $%d)", len(args))
	}
	if filtro.DataInicio != nil {
		args = append(args, *filtro.DataInicio)
		query += fmt.Sprintf(" AND t.data >= $%d", len(args))
	}
	if filtro.DataFim != nil {
		args = append(args, *filtro.DataFim)
		query += fmt.Sprintf(" AND t.data < $%d", len(args))
	}

	query += " ORDER BY t.data DESC, t.criado_em DESC"
	if filtro.Limit > 0 {
		args = append(args, filtro.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filtro.Offset > 0 {
		args = append(args, filtro.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transacoes []Transacao
	for rows.Next() {
		t, err := scanTransacao(rows)
		if err != nil {
			return nil, err
		}
		transacoes = append(transacoes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range transacoes {
		if err := r.carregaDetalhes(ctx, &transacoes[i]); err != nil {
			return nil, err
		}
	}
	return transacoes, nil
}

// Get devolve a transação do hub com participantes, pagamentos e tags.
func (r *Repository) Get(ctx context.Context, hubID, id uuid.UUID) (Transacao, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transacaoCols+` FROM transacoes t WHERE t.id = $1 AND t.hub_id = $2`, id, hubID)
	t, err := scanTransacao(row)
	if err != nil {
		return Transacao{}, err
	}
	if err := r.carregaDetalhes(ctx, &t); err != nil {
		return Transacao{}, err
	}
	return t, nil
}

func (r *Repository) carregaDetalhes(ctx context.Context, t *Transacao) error {
	rows, err := r.pool.Query(ctx, `
        SELECT tp.pessoa_id, p.nome, tp.valor_devido_centavos,
               COALESCE((SELECT SUM(pg.valor_centavos) FROM pagamentos pg
                         WHERE pg.transacao_id = tp.transacao_id AND pg.pessoa_id = tp.pessoa_id), 0)
        FROM transacao_participantes tp
        JOIN pessoas p ON p.id = tp.pessoa_id
        WHERE tp.transacao_id = $1
        ORDER BY p.nome ASC`,
		t.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	t.Participantes = nil
	for rows.Next() {
		var p Participante
		if err := rows.Scan(&p.PessoaID, &p.Nome, &p.ValorDevidoCentavos, &p.ValorPagoCentavos); err != nil {
			return err
		}
		p.Status = statusParticipante(p.ValorDevidoCentavos, p.ValorPagoCentavos)
		t.Participantes = append(t.Participantes, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.Status = statusTransacao(t.Participantes)

	tagRows, err := r.pool.Query(ctx, `
        SELECT tg.id, tg.nome, tg.cor
        FROM transacao_tags tt
        JOIN tags tg ON tg.id = tt.tag_id
        WHERE tt.transacao_id = $1
        ORDER BY tg.nome ASC`,
		t.ID,
	)
	if err != nil {
		return err
	}
	defer tagRows.Close()

	t.Tags = nil
	for tagRows.Next() {
		var tag Tag
		if err := tagRows.Scan(&tag.ID, &tag.Nome, &tag.Cor); err != nil {
			return err
		}
		t.Tags = append(t.Tags, tag)
	}
	return tagRows.Err()
}

// Create insere transação, cotas e vínculos de tag em uma transação.
func (r *Repository) Create(ctx context.Context, hubID, criadoPor uuid.UUID, nova NovaTransacao) (uuid.UUID, error) {
	id := uuid.New()
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO transacoes (id, hub_id, tipo, descricao, valor_total_centavos, data, criado_por)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, hubID, nova.Tipo, strings.TrimSpace(nova.Descricao), nova.ValorTotalCentavos, nova.Data, criadoPor,
		)
		if err != nil {
			return err
		}

		for _, item := range nova.Participantes {
			if _, err := tx.Exec(ctx, `
                INSERT INTO transacao_participantes (transacao_id, pessoa_id, valor_devido_centavos)
                VALUES ($1, $2, $3)`,
				id, item.PessoaID, item.ValorCentavos,
			); err != nil {
				return err
			}
		}

		for _, tagID := range nova.TagIDs {
			if _, err := tx.Exec(ctx, `
                INSERT INTO transacao_tags (transacao_id, tag_id)
                SELECT $1, id FROM tags WHERE id = $2 AND hub_id = $3`,
				id, tagID, hubID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// Update altera descrição e data da transação.
func (r *Repository) Update(ctx context.Context, hubID, id uuid.UUID, descricao string, data time.Time) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE transacoes SET descricao = $3, data = $4
        WHERE id = $1 AND hub_id = $2`,
		id, hubID, strings.TrimSpace(descricao), data,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Delete remove transação com cotas e pagamentos (FK em cascata).
func (r *Repository) Delete(ctx context.Context, hubID, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM transacoes WHERE id = $1 AND hub_id = $2`, id, hubID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// SetComprovante grava a URL do comprovante enviado.
func (r *Repository) SetComprovante(ctx context.Context, hubID, id uuid.UUID, url string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE transacoes SET comprovante_url = $3
        WHERE id = $1 AND hub_id = $2`,
		id, hubID, url,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// EhParticipante verifica se a pessoa possui cota na transação.
func (r *Repository) EhParticipante(ctx context.Context, transacaoID, pessoaID uuid.UUID) (bool, error) {
	var existe bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS(SELECT 1 FROM transacao_participantes WHERE transacao_id = $1 AND pessoa_id = $2)`,
		transacaoID, pessoaID,
	).Scan(&existe)
	return existe, err
}

// RegistrarPagamento insere pagamento contra a cota de um participante.
func (r *Repository) RegistrarPagamento(ctx context.Context, p Pagamento) (Pagamento, error) {
	err := r.pool.QueryRow(ctx, `
        INSERT INTO pagamentos (id, transacao_id, pessoa_id, valor_centavos, pago_em, registrado_por)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`,
		uuid.New(), p.TransacaoID, p.PessoaID, p.ValorCentavos, p.PagoEm, p.RegistradoPor,
	).Scan(&p.ID)
	return p, err
}

// ListTags devolve as tags do hub.
func (r *Repository) ListTags(ctx context.Context, hubID uuid.UUID) ([]Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nome, cor FROM tags WHERE hub_id = $1 ORDER BY nome ASC`, hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Nome, &t.Cor); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateTag cria tag do hub; nome único por hub.
func (r *Repository) CreateTag(ctx context.Context, hubID uuid.UUID, nome, cor string) (Tag, error) {
	t := Tag{Nome: strings.TrimSpace(nome), Cor: cor}
	err := r.pool.QueryRow(ctx, `
        INSERT INTO tags (id, hub_id, nome, cor)
        VALUES ($1, $2, $3, $4)
        RETURNING id`,
		uuid.New(), hubID, t.Nome, cor,
	).Scan(&t.ID)
	return t, err
}

// DeleteTag remove a tag e seus vínculos.
func (r *Repository) DeleteTag(ctx context.Context, hubID, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1 AND hub_id = $2`, id, hubID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ResumoDashboard agrega números do período para o painel do hub.
type ResumoDashboard struct {
	TotalGastosCentavos   int64       `json:"totalGastosCentavos"`
	TotalReceitasCentavos int64       `json:"totalReceitasCentavos"`
	SaldoCentavos         int64       `json:"saldoCentavos"`
	PendenteCentavos      int64       `json:"pendenteCentavos"`
	PorTag                []TagTotal  `json:"porTag"`
	Recentes              []Transacao `json:"recentes"`
}

// TagTotal acumula gastos por tag.
type TagTotal struct {
	Tag           string `json:"tag"`
	TotalCentavos int64  `json:"totalCentavos"`
}

// Dashboard calcula o resumo do período respeitando o escopo da política.
func (r *Repository) Dashboard(ctx context.Context, hubID uuid.UUID, filtro Filtro) (ResumoDashboard, error) {
	var resumo ResumoDashboard

	query := `
        SELECT
            COALESCE(SUM(valor_total_centavos) FILTER (WHERE tipo = 'GASTO'), 0),
            COALESCE(SUM(valor_total_centavos) FILTER (WHERE tipo = 'RECEITA'), 0)
        FROM transacoes t
        WHERE t.hub_id = $1`
	args := []any{hubID}
	if filtro.ApenasPessoa != nil {
		args = append(args, *filtro.ApenasPessoa)
		query += fmt.Sprintf(" AND t.criado_por = $%d", len(args))
	}
	if filtro.DataInicio != nil {
		args = append(args, *filtro.DataInicio)
		query += fmt.Sprintf(" AND t.data >= $%d", len(args))
	}
	if filtro.DataFim != nil {
		args = append(args, *filtro.DataFim)
		query += fmt.Sprintf(" AND t.data < $%d", len(args))
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&resumo.TotalGastosCentavos, &resumo.TotalReceitasCentavos); err != nil {
		return ResumoDashboard{}, err
	}
	resumo.SaldoCentavos = resumo.TotalReceitasCentavos - resumo.TotalGastosCentavos

	pendQuery := `
        SELECT COALESCE(SUM(tp.valor_devido_centavos), 0) -
               COALESCE(SUM((SELECT COALESCE(SUM(pg.valor_centavos), 0) FROM pagamentos pg
                             WHERE pg.transacao_id = tp.transacao_id AND pg.pessoa_id = tp.pessoa_id)), 0)
        FROM transacao_participantes tp
        JOIN transacoes t ON t.id = tp.transacao_id
        WHERE t.hub_id = $1`
	pendArgs := []any{hubID}
	if filtro.ApenasPessoa != nil {
		pendArgs = append(pendArgs, *filtro.ApenasPessoa)
		pendQuery += fmt.Sprintf(" AND tp.pessoa_id = $%d", len(pendArgs))
	}
	if err := r.pool.QueryRow(ctx, pendQuery, pendArgs...).Scan(&resumo.PendenteCentavos); err != nil {
		return ResumoDashboard{}, err
	}
	if resumo.PendenteCentavos < 0 {
		resumo.PendenteCentavos = 0
	}

	tagQuery := `
        SELECT tg.nome, COALESCE(SUM(t.valor_total_centavos), 0)
        FROM transacoes t
        JOIN transacao_tags tt ON tt.transacao_id = t.id
        JOIN tags tg ON tg.id = tt.tag_id
        WHERE t.hub_id = $1 AND t.tipo = 'GASTO'`
	tagArgs := []any{hubID}
	if filtro.ApenasPessoa != nil {
		tagArgs = append(tagArgs, *filtro.ApenasPessoa)
		tagQuery += fmt.Sprintf(" AND t.criado_por = $%d", len(tagArgs))
	}
	tagQuery += " GROUP BY tg.nome ORDER BY 2 DESC LIMIT 10"

	rows, err := r.pool.Query(ctx, tagQuery, tagArgs...)
	if err != nil {
		return ResumoDashboard{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tt TagTotal
		if err := rows.Scan(&tt.Tag, &tt.TotalCentavos); err != nil {
			return ResumoDashboard{}, err
		}
		resumo.PorTag = append(resumo.PorTag, tt)
	}
	if err := rows.Err(); err != nil {
		return ResumoDashboard{}, err
	}

	recentes, err := r.List(ctx, hubID, Filtro{ApenasPessoa: filtro.ApenasPessoa, Limit: 5})
	if err != nil {
		return ResumoDashboard{}, err
	}
	resumo.Recentes = recentes

	return resumo, nil
}
