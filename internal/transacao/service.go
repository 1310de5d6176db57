package transacao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/service"
	"github.com/despesahub/api/internal/util"
)

var (
	// ErrTipoInvalido indica tipo de transação desconhecido.
	ErrTipoInvalido = errors.New("tipo de transação inválido")
	// ErrValorInvalido indica valor não positivo.
	ErrValorInvalido = errors.New("valor deve ser positivo")
	// ErrDivisaoInvalida indica cotas que não somam o valor total.
	ErrDivisaoInvalida = errors.New("divisão não corresponde ao valor total")
	// ErrNaoParticipante indica pagamento contra pessoa sem cota.
	ErrNaoParticipante = errors.New("pessoa não participa da transação")
	// ErrDescricaoObrigatoria indica descrição ausente.
	ErrDescricaoObrigatoria = errors.New("descrição obrigatória")
	// ErrNomeTagObrigatorio indica nome de tag ausente.
	ErrNomeTagObrigatorio = errors.New("nome da tag obrigatório")
)

type transacaoRepository interface {
	List(ctx context.Context, hubID uuid.UUID, filtro Filtro) ([]Transacao, error)
	Get(ctx context.Context, hubID, id uuid.UUID) (Transacao, error)
	Create(ctx context.Context, hubID, criadoPor uuid.UUID, nova NovaTransacao) (uuid.UUID, error)
	Update(ctx context.Context, hubID, id uuid.UUID, descricao string, data time.Time) error
	Delete(ctx context.Context, hubID, id uuid.UUID) error
	SetComprovante(ctx context.Context, hubID, id uuid.UUID, url string) error
	EhParticipante(ctx context.Context, transacaoID, pessoaID uuid.UUID) (bool, error)
	RegistrarPagamento(ctx context.Context, p Pagamento) (Pagamento, error)
	ListTags(ctx context.Context, hubID uuid.UUID) ([]Tag, error)
	CreateTag(ctx context.Context, hubID uuid.UUID, nome, cor string) (Tag, error)
	DeleteTag(ctx context.Context, hubID, id uuid.UUID) error
	Dashboard(ctx context.Context, hubID uuid.UUID, filtro Filtro) (ResumoDashboard, error)
}

// Escopo carrega o contexto de autorização do chamador dentro do hub.
type Escopo struct {
	PessoaID       uuid.UUID
	Papel          string
	PoliticaAcesso string
}

// Individual informa se o chamador enxerga apenas os próprios lançamentos.
func (e Escopo) Individual() bool {
	return e.Papel == repo.PapelColaborador && e.PoliticaAcesso == repo.PoliticaIndividual
}

// Service concentra regras de negócio das transações.
type Service struct {
	repo transacaoRepository
}

// NewService cria nova instância.
func NewService(r transacaoRepository) *Service {
	return &Service{repo: r}
}

func aplicaEscopo(escopo Escopo, filtro Filtro) Filtro {
	if escopo.Individual() {
		pessoa := escopo.PessoaID
		filtro.ApenasPessoa = &pessoa
	}
	return filtro
}

// List devolve transações visíveis ao chamador.
func (s *Service) List(ctx context.Context, hubID uuid.UUID, escopo Escopo, filtro Filtro) ([]Transacao, error) {
	return s.repo.List(ctx, hubID, aplicaEscopo(escopo, filtro))
}

// Get devolve uma transação visível ao chamador. Para política INDIVIDUAL,
// lançamentos de terceiros são tratados como inexistentes.
func (s *Service) Get(ctx context.Context, hubID uuid.UUID, escopo Escopo, id uuid.UUID) (Transacao, error) {
	t, err := s.repo.Get(ctx, hubID, id)
	if err != nil {
		return Transacao{}, err
	}
	if escopo.Individual() && t.CriadoPor != escopo.PessoaID {
		return Transacao{}, repo.ErrNotFound
	}
	return t, nil
}

// Create valida e insere nova transação com divisão entre participantes.
func (s *Service) Create(ctx context.Context, hubID uuid.UUID, escopo Escopo, nova NovaTransacao) (Transacao, error) {
	nova.Tipo = strings.ToUpper(strings.TrimSpace(nova.Tipo))
	if nova.Tipo != TipoGasto && nova.Tipo != TipoReceita {
		return Transacao{}, ErrTipoInvalido
	}
	if strings.TrimSpace(nova.Descricao) == "" {
		return Transacao{}, ErrDescricaoObrigatoria
	}
	if nova.ValorTotalCentavos <= 0 {
		return Transacao{}, ErrValorInvalido
	}
	if len(nova.Participantes) == 0 {
		return Transacao{}, ErrDivisaoInvalida
	}

	var soma int64
	vistos := make(map[uuid.UUID]struct{}, len(nova.Participantes))
	for _, item := range nova.Participantes {
		if item.ValorCentavos <= 0 {
			return Transacao{}, ErrDivisaoInvalida
		}
		if _, ok := vistos[item.PessoaID]; ok {
			return Transacao{}, ErrDivisaoInvalida
		}
		vistos[item.PessoaID] = struct{}{}
		soma += item.ValorCentavos
	}
	if soma != nova.ValorTotalCentavos {
		return Transacao{}, ErrDivisaoInvalida
	}

	if nova.Data.IsZero() {
		nova.Data = util.Now()
	}

	id, err := s.repo.Create(ctx, hubID, escopo.PessoaID, nova)
	if err != nil {
		return Transacao{}, err
	}
	return s.repo.Get(ctx, hubID, id)
}

// Update altera descrição/data; apenas administradores ou o autor.
func (s *Service) Update(ctx context.Context, hubID uuid.UUID, escopo Escopo, id uuid.UUID, descricao string, data time.Time) error {
	t, err := s.Get(ctx, hubID, escopo, id)
	if err != nil {
		return err
	}
	if !service.EhAdministrador(escopo.Papel) && t.CriadoPor != escopo.PessoaID {
		return service.ErrForbidden
	}
	if strings.TrimSpace(descricao) == "" {
		return ErrDescricaoObrigatoria
	}
	if data.IsZero() {
		data = t.Data
	}
	return s.repo.Update(ctx, hubID, id, descricao, data)
}

// Delete remove a transação; restrito a administradores.
func (s *Service) Delete(ctx context.Context, hubID uuid.UUID, escopo Escopo, id uuid.UUID) error {
	if !service.EhAdministrador(escopo.Papel) {
		return service.ErrForbidden
	}
	return s.repo.Delete(ctx, hubID, id)
}

// AnexarComprovante grava a URL do comprovante enviado ao storage.
func (s *Service) AnexarComprovante(ctx context.Context, hubID uuid.UUID, escopo Escopo, id uuid.UUID, url string) error {
	t, err := s.Get(ctx, hubID, escopo, id)
	if err != nil {
		return err
	}
	if !service.EhAdministrador(escopo.Papel) && t.CriadoPor != escopo.PessoaID {
		return service.ErrForbidden
	}
	return s.repo.SetComprovante(ctx, hubID, id, url)
}

// RegistrarPagamento quita (total ou parcialmente) a cota de um participante.
func (s *Service) RegistrarPagamento(ctx context.Context, hubID uuid.UUID, escopo Escopo, transacaoID, pessoaID uuid.UUID, valorCentavos int64, pagoEm time.Time) (Pagamento, error) {
	if valorCentavos <= 0 {
		return Pagamento{}, ErrValorInvalido
	}

	if _, err := s.Get(ctx, hubID, escopo, transacaoID); err != nil {
		return Pagamento{}, err
	}

	participa, err := s.repo.EhParticipante(ctx, transacaoID, pessoaID)
	if err != nil {
		return Pagamento{}, err
	}
	if !participa {
		return Pagamento{}, ErrNaoParticipante
	}

	if pagoEm.IsZero() {
		pagoEm = util.Now()
	}

	return s.repo.RegistrarPagamento(ctx, Pagamento{
		TransacaoID:   transacaoID,
		PessoaID:      pessoaID,
		ValorCentavos: valorCentavos,
		PagoEm:        pagoEm,
		RegistradoPor: escopo.PessoaID,
	})
}

// ListTags devolve as tags do hub.
func (s *Service) ListTags(ctx context.Context, hubID uuid.UUID) ([]Tag, error) {
	return s.repo.ListTags(ctx, hubID)
}

// CreateTag cria tag do hub.
func (s *Service) CreateTag(ctx context.Context, hubID uuid.UUID, nome, cor string) (Tag, error) {
	if strings.TrimSpace(nome) == "" {
		return Tag{}, ErrNomeTagObrigatorio
	}
	return s.repo.CreateTag(ctx, hubID, nome, cor)
}

// DeleteTag remove tag; restrito a administradores.
func (s *Service) DeleteTag(ctx context.Context, hubID uuid.UUID, escopo Escopo, id uuid.UUID) error {
	if !service.EhAdministrador(escopo.Papel) {
		return service.ErrForbidden
	}
	return s.repo.DeleteTag(ctx, hubID, id)
}

// Dashboard agrega o resumo do período visível ao chamador.
func (s *Service) Dashboard(ctx context.Context, hubID uuid.UUID, escopo Escopo, inicio, fim *time.Time) (ResumoDashboard, error) {
	filtro := aplicaEscopo(escopo, Filtro{DataInicio: inicio, DataFim: fim})
	return s.repo.Dashboard(ctx, hubID, filtro)
}
