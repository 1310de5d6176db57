package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/util"
)

var (
	// ErrJaMembro indica que já existe vínculo ativo para o par pessoa/hub.
	ErrJaMembro = errors.New("pessoa já é membro do hub")
	// ErrPapelInvalido indica papel fora do conjunto conhecido.
	ErrPapelInvalido = errors.New("papel inválido")
	// ErrPoliticaInvalida indica política de acesso desconhecida.
	ErrPoliticaInvalida = errors.New("política de acesso inválida")
	// ErrUltimoProprietario impede remover ou rebaixar o único proprietário.
	ErrUltimoProprietario = errors.New("hub precisa de ao menos um proprietário")
	// ErrEmailInvalido indica e-mail ausente ou malformado no convite.
	ErrEmailInvalido = errors.New("e-mail inválido")
)

type membroRepository interface {
	GetPessoaByEmail(ctx context.Context, email string) (repo.Pessoa, error)
	CreatePessoaConvidada(ctx context.Context, nome, email, tokenHash string, expira time.Time) (repo.Pessoa, error)
	SetTokenConvite(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error
	GetHub(ctx context.Context, id uuid.UUID) (repo.Hub, error)
	GetMembro(ctx context.Context, pessoaID, hubID uuid.UUID) (repo.Membro, error)
	ListMembrosByHub(ctx context.Context, hubID uuid.UUID) ([]repo.MembroComPessoa, error)
	CreateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) (repo.Membro, error)
	UpdateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) error
	DesativarMembro(ctx context.Context, pessoaID, hubID uuid.UUID) error
}

// MembroService concentra convites e gestão de vínculos do hub.
type MembroService struct {
	repo       membroRepository
	mailer     Mailer
	conviteTTL time.Duration
	appBaseURL string
}

// NewMembroService cria nova instância.
func NewMembroService(r membroRepository, mailer Mailer, conviteTTL time.Duration, appBaseURL string) *MembroService {
	if conviteTTL <= 0 {
		conviteTTL = 7 * 24 * time.Hour
	}
	return &MembroService{repo: r, mailer: mailer, conviteTTL: conviteTTL, appBaseURL: appBaseURL}
}

// ListMembros retorna membros ativos do hub.
func (s *MembroService) ListMembros(ctx context.Context, hubID uuid.UUID) ([]repo.MembroComPessoa, error) {
	return s.repo.ListMembrosByHub(ctx, hubID)
}

// Convidar cria (ou reaproveita) a pessoa e o vínculo com o hub. Pessoas
// novas ou ainda não ativadas recebem e-mail com token de convite.
func (s *MembroService) Convidar(ctx context.Context, hubID uuid.UUID, nome, email, papel, politica string) (*repo.Membro, error) {
	if err := util.ValidateEmail(email); err != nil {
		return nil, ErrEmailInvalido
	}
	papel = NormalizePapel(papel)
	if !PapelValido(papel) || papel == repo.PapelProprietario {
		return nil, ErrPapelInvalido
	}
	if politica == "" {
		politica = repo.PoliticaGlobal
	}
	if !PoliticaValida(politica) {
		return nil, ErrPoliticaInvalida
	}

	hub, err := s.repo.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}

	pessoa, err := s.repo.GetPessoaByEmail(ctx, email)
	precisaConvite := false
	switch {
	case errors.Is(err, repo.ErrNotFound):
		rawToken, tokenHash, gerr := auth.GenerateOpaqueToken()
		if gerr != nil {
			return nil, gerr
		}
		pessoa, err = s.repo.CreatePessoaConvidada(ctx, nome, email, tokenHash, util.Now().Add(s.conviteTTL))
		if err != nil {
			return nil, err
		}
		precisaConvite = true
		s.enviarConvite(pessoa, hub, rawToken)
	case err != nil:
		return nil, err
	case !pessoa.Ativo:
		// Pessoa convidada anteriormente que nunca ativou: renova o token.
		rawToken, tokenHash, gerr := auth.GenerateOpaqueToken()
		if gerr != nil {
			return nil, gerr
		}
		if err := s.repo.SetTokenConvite(ctx, pessoa.ID, tokenHash, util.Now().Add(s.conviteTTL)); err != nil {
			return nil, err
		}
		precisaConvite = true
		s.enviarConvite(pessoa, hub, rawToken)
	}

	if _, err := s.repo.GetMembro(ctx, pessoa.ID, hubID); err == nil {
		return nil, ErrJaMembro
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	membro, err := s.repo.CreateMembro(ctx, pessoa.ID, hubID, papel, politica)
	if err != nil {
		return nil, err
	}

	if !precisaConvite {
		log.Info().Str("hub", hub.Nome).Msg("membro existente adicionado sem convite")
	}

	return &membro, nil
}

// AtualizarMembro altera papel/política de um vínculo existente.
func (s *MembroService) AtualizarMembro(ctx context.Context, hubID, pessoaID uuid.UUID, papel, politica string) error {
	papel = NormalizePapel(papel)
	if !PapelValido(papel) {
		return ErrPapelInvalido
	}
	if politica == "" {
		politica = repo.PoliticaGlobal
	}
	if !PoliticaValida(politica) {
		return ErrPoliticaInvalida
	}

	atual, err := s.repo.GetMembro(ctx, pessoaID, hubID)
	if err != nil {
		return err
	}
	if atual.Papel == repo.PapelProprietario && papel != repo.PapelProprietario {
		if err := s.garanteOutroProprietario(ctx, hubID, pessoaID); err != nil {
			return err
		}
	}

	return s.repo.UpdateMembro(ctx, pessoaID, hubID, papel, politica)
}

// RemoverMembro desativa o vínculo, preservando histórico de transações.
func (s *MembroService) RemoverMembro(ctx context.Context, hubID, pessoaID uuid.UUID) error {
	atual, err := s.repo.GetMembro(ctx, pessoaID, hubID)
	if err != nil {
		return err
	}
	if atual.Papel == repo.PapelProprietario {
		if err := s.garanteOutroProprietario(ctx, hubID, pessoaID); err != nil {
			return err
		}
	}
	return s.repo.DesativarMembro(ctx, pessoaID, hubID)
}

func (s *MembroService) garanteOutroProprietario(ctx context.Context, hubID, pessoaID uuid.UUID) error {
	membros, err := s.repo.ListMembrosByHub(ctx, hubID)
	if err != nil {
		return err
	}
	for _, m := range membros {
		if m.Papel == repo.PapelProprietario && m.PessoaID != pessoaID {
			return nil
		}
	}
	return ErrUltimoProprietario
}

func (s *MembroService) enviarConvite(pessoa repo.Pessoa, hub repo.Hub, rawToken string) {
	link := fmt.Sprintf("%s/ativar-convite?token=%s", s.appBaseURL, rawToken)
	if err := s.mailer.EnviarConvite(pessoa.Email, pessoa.Nome, hub.Nome, link); err != nil {
		log.Warn().Err(err).Msg("convite: falha ao enviar e-mail")
	}
}
