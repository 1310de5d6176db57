package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/despesahub/api/internal/db"
)

// Queries fornece acesso aos dados de pessoas, hubs e sessões.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria o repositório sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const pessoaCols = `id, nome, email, senha_hash, eh_administrador, is_god, email_verificado, ativo, criado_em`

func scanPessoa(row pgx.Row) (Pessoa, error) {
	var p Pessoa
	err := row.Scan(&p.ID, &p.Nome, &p.Email, &p.SenhaHash, &p.EhAdministrador, &p.IsGod, &p.EmailVerificado, &p.Ativo, &p.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pessoa{}, ErrNotFound
		}
		return Pessoa{}, err
	}
	return p, nil
}

// GetPessoaByEmail recupera pessoa pelo e-mail normalizado.
func (q *Queries) GetPessoaByEmail(ctx context.Context, email string) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+pessoaCols+` FROM pessoas WHERE email = $1`, normalizeEmail(email))
	return scanPessoa(row)
}

// GetPessoaByID recupera pessoa pelo ID.
func (q *Queries) GetPessoaByID(ctx context.Context, id uuid.UUID) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+pessoaCols+` FROM pessoas WHERE id = $1`, id)
	return scanPessoa(row)
}

// UpdatePessoaNome altera o nome de exibição.
func (q *Queries) UpdatePessoaNome(ctx context.Context, id uuid.UUID, nome string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE pessoas SET nome = $2 WHERE id = $1`, id, strings.TrimSpace(nome))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePessoaComHubParams agrupa os dados do registro inicial.
type CreatePessoaComHubParams struct {
	Nome                   string
	Email                  string
	SenhaHash              string
	NomeHub                string
	TokenVerificacaoHash   string
	TokenVerificacaoExpira time.Time
}

// CreatePessoaComHub cria pessoa, hub e vínculo PROPRIETARIO em uma transação.
func (q *Queries) CreatePessoaComHub(ctx context.Context, arg CreatePessoaComHubParams) (Pessoa, Hub, error) {
	var pessoa Pessoa
	var hub Hub

	err := db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO pessoas (id, nome, email, senha_hash, email_verificado, token_verificacao_hash, token_verificacao_expira, ativo)
            VALUES ($1, $2, $3, $4, false, $5, $6, true)
            RETURNING `+pessoaCols,
			uuid.New(), strings.TrimSpace(arg.Nome), normalizeEmail(arg.Email), arg.SenhaHash,
			arg.TokenVerificacaoHash, arg.TokenVerificacaoExpira,
		)
		p, err := scanPessoa(row)
		if err != nil {
			return err
		}
		pessoa = p

		if err := tx.QueryRow(ctx, `
            INSERT INTO hubs (id, nome, criador_id)
            VALUES ($1, $2, $3)
            RETURNING id, nome, criador_id, criado_em`,
			uuid.New(), strings.TrimSpace(arg.NomeHub), pessoa.ID,
		).Scan(&hub.ID, &hub.Nome, &hub.CriadorID, &hub.CriadoEm); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO membros (pessoa_id, hub_id, papel, politica_acesso, ativo)
            VALUES ($1, $2, $3, $4, true)`,
			pessoa.ID, hub.ID, PapelProprietario, PoliticaGlobal,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Pessoa{}, Hub{}, ErrEmailEmUso
		}
		return Pessoa{}, Hub{}, err
	}

	return pessoa, hub, nil
}

// CreatePessoaConvidada insere pessoa inativa aguardando ativação por convite.
func (q *Queries) CreatePessoaConvidada(ctx context.Context, nome, email, tokenHash string, expira time.Time) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `
        INSERT INTO pessoas (id, nome, email, senha_hash, email_verificado, token_convite_hash, token_convite_expira, ativo)
        VALUES ($1, $2, $3, NULL, false, $4, $5, false)
        RETURNING `+pessoaCols,
		uuid.New(), strings.TrimSpace(nome), normalizeEmail(email), tokenHash, expira,
	)
	p, err := scanPessoa(row)
	if err != nil && isUniqueViolation(err) {
		return Pessoa{}, ErrEmailEmUso
	}
	return p, err
}

// SetTokenVerificacao grava novo token de verificação de e-mail.
func (q *Queries) SetTokenVerificacao(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE pessoas SET token_verificacao_hash = $2, token_verificacao_expira = $3
        WHERE id = $1 AND email_verificado = false`,
		pessoaID, hash, expira,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumirTokenVerificacao marca e-mail verificado e limpa o token em uma única
// escrita condicional: de duas chamadas concorrentes, apenas uma encontra a linha.
func (q *Queries) ConsumirTokenVerificacao(ctx context.Context, hash string) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `
        UPDATE pessoas
        SET email_verificado = true, token_verificacao_hash = NULL, token_verificacao_expira = NULL
        WHERE token_verificacao_hash = $1 AND token_verificacao_expira > now()
        RETURNING `+pessoaCols,
		hash,
	)
	p, err := scanPessoa(row)
	if errors.Is(err, ErrNotFound) {
		return Pessoa{}, ErrTokenConsumido
	}
	return p, err
}

// SetTokenConvite grava token de convite em pessoa existente ainda não ativada.
func (q *Queries) SetTokenConvite(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE pessoas SET token_convite_hash = $2, token_convite_expira = $3
        WHERE id = $1 AND ativo = false`,
		pessoaID, hash, expira,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumirTokenConvite ativa a pessoa convidada definindo a senha escolhida.
func (q *Queries) ConsumirTokenConvite(ctx context.Context, hash, senhaHash string) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `
        UPDATE pessoas
        SET senha_hash = $2, ativo = true, email_verificado = true,
            token_convite_hash = NULL, token_convite_expira = NULL
        WHERE token_convite_hash = $1 AND token_convite_expira > now()
        RETURNING `+pessoaCols,
		hash, senhaHash,
	)
	p, err := scanPessoa(row)
	if errors.Is(err, ErrNotFound) {
		return Pessoa{}, ErrTokenConsumido
	}
	return p, err
}

// SetTokenReset grava token de redefinição de senha.
func (q *Queries) SetTokenReset(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE pessoas SET token_reset_hash = $2, token_reset_expira = $3 WHERE id = $1`,
		pessoaID, hash, expira,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumirTokenReset troca a senha e limpa o token condicionalmente.
func (q *Queries) ConsumirTokenReset(ctx context.Context, hash, senhaHash string) (Pessoa, error) {
	row := q.pool.QueryRow(ctx, `
        UPDATE pessoas
        SET senha_hash = $2, token_reset_hash = NULL, token_reset_expira = NULL
        WHERE token_reset_hash = $1 AND token_reset_expira > now()
        RETURNING `+pessoaCols,
		hash, senhaHash,
	)
	p, err := scanPessoa(row)
	if errors.Is(err, ErrNotFound) {
		return Pessoa{}, ErrTokenConsumido
	}
	return p, err
}

// GetHub recupera hub pelo ID.
func (q *Queries) GetHub(ctx context.Context, id uuid.UUID) (Hub, error) {
	var h Hub
	err := q.pool.QueryRow(ctx, `SELECT id, nome, criador_id, criado_em FROM hubs WHERE id = $1`, id).
		Scan(&h.ID, &h.Nome, &h.CriadorID, &h.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hub{}, ErrNotFound
		}
		return Hub{}, err
	}
	return h, nil
}

// CreateHub cria hub adicional com vínculo PROPRIETARIO do criador.
func (q *Queries) CreateHub(ctx context.Context, nome string, criadorID uuid.UUID) (Hub, error) {
	var hub Hub
	err := db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
            INSERT INTO hubs (id, nome, criador_id)
            VALUES ($1, $2, $3)
            RETURNING id, nome, criador_id, criado_em`,
			uuid.New(), strings.TrimSpace(nome), criadorID,
		).Scan(&hub.ID, &hub.Nome, &hub.CriadorID, &hub.CriadoEm); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO membros (pessoa_id, hub_id, papel, politica_acesso, ativo)
            VALUES ($1, $2, $3, $4, true)`,
			criadorID, hub.ID, PapelProprietario, PoliticaGlobal,
		)
		return err
	})
	return hub, err
}

// RenameHub altera o nome do hub (identidade imutável, nome não).
func (q *Queries) RenameHub(ctx context.Context, id uuid.UUID, nome string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE hubs SET nome = $2 WHERE id = $1`, id, strings.TrimSpace(nome))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHubsByPessoa retorna hubs com papel da pessoa, usado no login.
func (q *Queries) ListHubsByPessoa(ctx context.Context, pessoaID uuid.UUID) ([]HubComPapel, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT h.id, h.nome, m.papel, m.politica_acesso
        FROM membros m
        JOIN hubs h ON h.id = m.hub_id
        WHERE m.pessoa_id = $1 AND m.ativo = true
        ORDER BY h.criado_em ASC`,
		pessoaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hubs []HubComPapel
	for rows.Next() {
		var h HubComPapel
		if err := rows.Scan(&h.HubID, &h.Nome, &h.Papel, &h.PoliticaAcesso); err != nil {
			return nil, err
		}
		hubs = append(hubs, h)
	}
	return hubs, rows.Err()
}

// GetMembro recupera o vínculo ativo pessoa↔hub.
func (q *Queries) GetMembro(ctx context.Context, pessoaID, hubID uuid.UUID) (Membro, error) {
	var m Membro
	err := q.pool.QueryRow(ctx, `
        SELECT pessoa_id, hub_id, papel, politica_acesso, ativo, criado_em
        FROM membros
        WHERE pessoa_id = $1 AND hub_id = $2 AND ativo = true`,
		pessoaID, hubID,
	).Scan(&m.PessoaID, &m.HubID, &m.Papel, &m.PoliticaAcesso, &m.Ativo, &m.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membro{}, ErrNotFound
		}
		return Membro{}, err
	}
	return m, nil
}

// MembroComPessoa agrega vínculo com dados básicos da pessoa.
type MembroComPessoa struct {
	Membro
	Nome  string
	Email string
}

// ListMembrosByHub lista membros ativos do hub.
func (q *Queries) ListMembrosByHub(ctx context.Context, hubID uuid.UUID) ([]MembroComPessoa, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT m.pessoa_id, m.hub_id, m.papel, m.politica_acesso, m.ativo, m.criado_em, p.nome, p.email
        FROM membros m
        JOIN pessoas p ON p.id = m.pessoa_id
        WHERE m.hub_id = $1 AND m.ativo = true
        ORDER BY m.criado_em ASC`,
		hubID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var membros []MembroComPessoa
	for rows.Next() {
		var m MembroComPessoa
		if err := rows.Scan(&m.PessoaID, &m.HubID, &m.Papel, &m.PoliticaAcesso, &m.Ativo, &m.CriadoEm, &m.Nome, &m.Email); err != nil {
			return nil, err
		}
		membros = append(membros, m)
	}
	return membros, rows.Err()
}

// CreateMembro cria vínculo pessoa↔hub; única linha por par.
func (q *Queries) CreateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) (Membro, error) {
	var m Membro
	err := q.pool.QueryRow(ctx, `
        INSERT INTO membros (pessoa_id, hub_id, papel, politica_acesso, ativo)
        VALUES ($1, $2, $3, $4, true)
        RETURNING pessoa_id, hub_id, papel, politica_acesso, ativo, criado_em`,
		pessoaID, hubID, papel, politica,
	).Scan(&m.PessoaID, &m.HubID, &m.Papel, &m.PoliticaAcesso, &m.Ativo, &m.CriadoEm)
	return m, err
}

// UpdateMembro altera papel e política do vínculo.
func (q *Queries) UpdateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE membros SET papel = $3, politica_acesso = $4
        WHERE pessoa_id = $1 AND hub_id = $2 AND ativo = true`,
		pessoaID, hubID, papel, politica,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DesativarMembro remove logicamente o vínculo.
func (q *Queries) DesativarMembro(ctx context.Context, pessoaID, hubID uuid.UUID) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE membros SET ativo = false
        WHERE pessoa_id = $1 AND hub_id = $2 AND ativo = true`,
		pessoaID, hubID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertRefreshToken persiste novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
        INSERT INTO tokens_refresh (id, pessoa_id, token_hash, expiracao, criado_em, revogado)
        VALUES ($1, $2, $3, $4, $5, false)
        RETURNING id, pessoa_id, token_hash, expiracao, criado_em, revogado`,
		arg.ID, arg.PessoaID, arg.TokenHash, arg.Expiracao, arg.CriadoEm,
	).Scan(&t.ID, &t.PessoaID, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	return t, err
}

// GetRefreshTokenByHash recupera refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
        SELECT id, pessoa_id, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh
        WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.ID, &t.PessoaID, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return t, nil
}

// RevokeRefreshToken revoga o token pelo hash.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE tokens_refresh SET revogado = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllRefreshTokens revoga todas as sessões da pessoa (troca de senha).
func (q *Queries) RevokeAllRefreshTokens(ctx context.Context, pessoaID uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `
        UPDATE tokens_refresh SET revogado = true
        WHERE pessoa_id = $1 AND revogado = false`,
		pessoaID,
	)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
