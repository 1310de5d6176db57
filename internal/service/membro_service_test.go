package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/despesahub/api/internal/repo"
)

type stubMembroRepo struct {
	hub      repo.Hub
	pessoas  map[string]repo.Pessoa
	membros  map[uuid.UUID]repo.Membro
	convites int
	criados  int
}

func (s *stubMembroRepo) GetPessoaByEmail(ctx context.Context, email string) (repo.Pessoa, error) {
	if pessoa, ok := s.pessoas[email]; ok {
		return pessoa, nil
	}
	return repo.Pessoa{}, repo.ErrNotFound
}

func (s *stubMembroRepo) CreatePessoaConvidada(ctx context.Context, nome, email, tokenHash string, expira time.Time) (repo.Pessoa, error) {
	pessoa := repo.Pessoa{ID: uuid.New(), Nome: nome, Email: email}
	if s.pessoas == nil {
		s.pessoas = make(map[string]repo.Pessoa)
	}
	s.pessoas[email] = pessoa
	s.convites++
	return pessoa, nil
}

func (s *stubMembroRepo) SetTokenConvite(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	s.convites++
	return nil
}

func (s *stubMembroRepo) GetHub(ctx context.Context, id uuid.UUID) (repo.Hub, error) {
	if id == s.hub.ID {
		return s.hub, nil
	}
	return repo.Hub{}, repo.ErrNotFound
}

func (s *stubMembroRepo) GetMembro(ctx context.Context, pessoaID, hubID uuid.UUID) (repo.Membro, error) {
	if membro, ok := s.membros[pessoaID]; ok && membro.HubID == hubID {
		return membro, nil
	}
	return repo.Membro{}, repo.ErrNotFound
}

func (s *stubMembroRepo) ListMembrosByHub(ctx context.Context, hubID uuid.UUID) ([]repo.MembroComPessoa, error) {
	var out []repo.MembroComPessoa
	for _, membro := range s.membros {
		if membro.HubID == hubID && membro.Ativo {
			out = append(out, repo.MembroComPessoa{Membro: membro})
		}
	}
	return out, nil
}

func (s *stubMembroRepo) CreateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) (repo.Membro, error) {
	membro := repo.Membro{PessoaID: pessoaID, HubID: hubID, Papel: papel, PoliticaAcesso: politica, Ativo: true}
	if s.membros == nil {
		s.membros = make(map[uuid.UUID]repo.Membro)
	}
	s.membros[pessoaID] = membro
	s.criados++
	return membro, nil
}

func (s *stubMembroRepo) UpdateMembro(ctx context.Context, pessoaID, hubID uuid.UUID, papel, politica string) error {
	membro, ok := s.membros[pessoaID]
	if !ok {
		return repo.ErrNotFound
	}
	membro.Papel = papel
	membro.PoliticaAcesso = politica
	s.membros[pessoaID] = membro
	return nil
}

func (s *stubMembroRepo) DesativarMembro(ctx context.Context, pessoaID, hubID uuid.UUID) error {
	membro, ok := s.membros[pessoaID]
	if !ok {
		return repo.ErrNotFound
	}
	membro.Ativo = false
	s.membros[pessoaID] = membro
	return nil
}

func novoMembroService(repoStub *stubMembroRepo) (*MembroService, *stubMailer) {
	mailer := &stubMailer{}
	return NewMembroService(repoStub, mailer, 7*24*time.Hour, "http://localhost:3000"), mailer
}

func TestConvidarPessoaNovaCriaVinculoEEnviaEmail(t *testing.T) {
	hubID := uuid.New()
	repoStub := &stubMembroRepo{hub: repo.Hub{ID: hubID, Nome: "Casa"}}
	svc, mailer := novoMembroService(repoStub)

	membro, err := svc.Convidar(context.Background(), hubID, "Bruno", "bruno@example.com", repo.PapelColaborador, repo.PoliticaIndividual)
	if err != nil {
		t.Fatalf("convidar: %v", err)
	}

	if membro.Papel != repo.PapelColaborador || membro.PoliticaAcesso != repo.PoliticaIndividual {
		t.Fatalf("vínculo inesperado: %+v", membro)
	}
	if mailer.convites != 1 {
		t.Fatalf("esperava 1 e-mail de convite, veio %d", mailer.convites)
	}
}

func TestConvidarNaoAceitaProprietario(t *testing.T) {
	hubID := uuid.New()
	repoStub := &stubMembroRepo{hub: repo.Hub{ID: hubID, Nome: "Casa"}}
	svc, _ := novoMembroService(repoStub)

	if _, err := svc.Convidar(context.Background(), hubID, "Bruno", "bruno@example.com", repo.PapelProprietario, ""); !errors.Is(err, ErrPapelInvalido) {
		t.Fatalf("esperava ErrPapelInvalido, veio %v", err)
	}
}

func TestConvidarMembroExistente(t *testing.T) {
	hubID := uuid.New()
	pessoa := repo.Pessoa{ID: uuid.New(), Nome: "Carla", Email: "carla@example.com", Ativo: true}
	repoStub := &stubMembroRepo{
		hub:     repo.Hub{ID: hubID, Nome: "Casa"},
		pessoas: map[string]repo.Pessoa{pessoa.Email: pessoa},
		membros: map[uuid.UUID]repo.Membro{
			pessoa.ID: {PessoaID: pessoa.ID, HubID: hubID, Papel: repo.PapelColaborador, Ativo: true},
		},
	}
	svc, mailer := novoMembroService(repoStub)

	if _, err := svc.Convidar(context.Background(), hubID, "Carla", pessoa.Email, repo.PapelVisualizador, ""); !errors.Is(err, ErrJaMembro) {
		t.Fatalf("esperava ErrJaMembro, veio %v", err)
	}
	if mailer.convites != 0 {
		t.Fatalf("não deveria enviar convite para conta ativa, veio %d", mailer.convites)
	}
}

func TestRemoverUltimoProprietario(t *testing.T) {
	hubID := uuid.New()
	dono := uuid.New()
	repoStub := &stubMembroRepo{
		hub: repo.Hub{ID: hubID, Nome: "Casa"},
		membros: map[uuid.UUID]repo.Membro{
			dono: {PessoaID: dono, HubID: hubID, Papel: repo.PapelProprietario, Ativo: true},
		},
	}
	svc, _ := novoMembroService(repoStub)

	if err := svc.RemoverMembro(context.Background(), hubID, dono); !errors.Is(err, ErrUltimoProprietario) {
		t.Fatalf("esperava ErrUltimoProprietario, veio %v", err)
	}

	// Com um segundo proprietário, a remoção passa.
	outro := uuid.New()
	repoStub.membros[outro] = repo.Membro{PessoaID: outro, HubID: hubID, Papel: repo.PapelProprietario, Ativo: true}
	if err := svc.RemoverMembro(context.Background(), hubID, dono); err != nil {
		t.Fatalf("remover com outro dono: %v", err)
	}
}

func TestRebaixarUltimoProprietario(t *testing.T) {
	hubID := uuid.New()
	dono := uuid.New()
	repoStub := &stubMembroRepo{
		hub: repo.Hub{ID: hubID, Nome: "Casa"},
		membros: map[uuid.UUID]repo.Membro{
			dono: {PessoaID: dono, HubID: hubID, Papel: repo.PapelProprietario, Ativo: true},
		},
	}
	svc, _ := novoMembroService(repoStub)

	if err := svc.AtualizarMembro(context.Background(), hubID, dono, repo.PapelColaborador, ""); !errors.Is(err, ErrUltimoProprietario) {
		t.Fatalf("esperava ErrUltimoProprietario, veio %v", err)
	}
}
