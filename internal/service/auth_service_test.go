package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/config"
	"github.com/despesahub/api/internal/repo"
)

type stubAuthRepo struct {
	pessoa       repo.Pessoa
	hubs         []repo.HubComPapel
	hubsByID     map[uuid.UUID]repo.Hub
	membros      map[uuid.UUID]repo.Membro
	refresh      map[string]repo.TokenRefresh
	conviteHash  string
	conviteUsado bool
	resetHash    string
	resetUsado   bool
	verifHash    string
	verifUsado   bool
	revokeAll    int
	refreshCalls int
}

func (s *stubAuthRepo) GetPessoaByEmail(ctx context.Context, email string) (repo.Pessoa, error) {
	if strings.EqualFold(email, s.pessoa.Email) {
		return s.pessoa, nil
	}
	return repo.Pessoa{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetPessoaByID(ctx context.Context, id uuid.UUID) (repo.Pessoa, error) {
	if id == s.pessoa.ID {
		return s.pessoa, nil
	}
	return repo.Pessoa{}, repo.ErrNotFound
}

func (s *stubAuthRepo) UpdatePessoaNome(ctx context.Context, id uuid.UUID, nome string) error {
	if id != s.pessoa.ID {
		return repo.ErrNotFound
	}
	s.pessoa.Nome = nome
	return nil
}

func (s *stubAuthRepo) CreatePessoaComHub(ctx context.Context, arg repo.CreatePessoaComHubParams) (repo.Pessoa, repo.Hub, error) {
	if strings.EqualFold(arg.Email, s.pessoa.Email) {
		return repo.Pessoa{}, repo.Hub{}, repo.ErrEmailEmUso
	}
	pessoa := repo.Pessoa{ID: uuid.New(), Nome: arg.Nome, Email: arg.Email, Ativo: true}
	hub := repo.Hub{ID: uuid.New(), Nome: arg.NomeHub, CriadorID: pessoa.ID}
	return pessoa, hub, nil
}

func (s *stubAuthRepo) SetTokenVerificacao(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	s.verifHash = hash
	s.verifUsado = false
	return nil
}

func (s *stubAuthRepo) ConsumirTokenVerificacao(ctx context.Context, hash string) (repo.Pessoa, error) {
	if hash != s.verifHash || s.verifUsado {
		return repo.Pessoa{}, repo.ErrTokenConsumido
	}
	s.verifUsado = true
	s.pessoa.EmailVerificado = true
	return s.pessoa, nil
}

func (s *stubAuthRepo) ConsumirTokenConvite(ctx context.Context, hash, senhaHash string) (repo.Pessoa, error) {
	if hash != s.conviteHash || s.conviteUsado {
		return repo.Pessoa{}, repo.ErrTokenConsumido
	}
	s.conviteUsado = true
	s.pessoa.SenhaHash = &senhaHash
	s.pessoa.Ativo = true
	s.pessoa.EmailVerificado = true
	return s.pessoa, nil
}

func (s *stubAuthRepo) SetTokenReset(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error {
	s.resetHash = hash
	s.resetUsado = false
	return nil
}

func (s *stubAuthRepo) ConsumirTokenReset(ctx context.Context, hash, senhaHash string) (repo.Pessoa, error) {
	if hash != s.resetHash || s.resetUsado {
		return repo.Pessoa{}, repo.ErrTokenConsumido
	}
	s.resetUsado = true
	s.pessoa.SenhaHash = &senhaHash
	return s.pessoa, nil
}

func (s *stubAuthRepo) ListHubsByPessoa(ctx context.Context, pessoaID uuid.UUID) ([]repo.HubComPapel, error) {
	return s.hubs, nil
}

func (s *stubAuthRepo) GetMembro(ctx context.Context, pessoaID, hubID uuid.UUID) (repo.Membro, error) {
	if membro, ok := s.membros[hubID]; ok && membro.PessoaID == pessoaID {
		return membro, nil
	}
	return repo.Membro{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetHub(ctx context.Context, id uuid.UUID) (repo.Hub, error) {
	if hub, ok := s.hubsByID[id]; ok {
		return hub, nil
	}
	return repo.Hub{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	s.refreshCalls++
	record := repo.TokenRefresh{
		ID:        arg.ID,
		PessoaID:  arg.PessoaID,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	if s.refresh == nil {
		s.refresh = make(map[string]repo.TokenRefresh)
	}
	s.refresh[arg.TokenHash] = record
	return record, nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	if record, ok := s.refresh[tokenHash]; ok {
		return record, nil
	}
	return repo.TokenRefresh{}, repo.ErrNotFound
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	record, ok := s.refresh[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	record.Revogado = true
	s.refresh[tokenHash] = record
	return nil
}

func (s *stubAuthRepo) RevokeAllRefreshTokens(ctx context.Context, pessoaID uuid.UUID) error {
	s.revokeAll++
	for hash, record := range s.refresh {
		if record.PessoaID == pessoaID {
			record.Revogado = true
			s.refresh[hash] = record
		}
	}
	return nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) ensure() {
	if s.store == nil {
		s.store = make(map[string]string)
	}
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	s.ensure()
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	s.ensure()
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	s.ensure()
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func (s *stubRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	s.ensure()
	var atual int64
	fmt.Sscanf(s.store[key], "%d", &atual)
	atual++
	s.store[key] = fmt.Sprint(atual)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(atual)
	return cmd
}

func (s *stubRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

type stubMailer struct {
	verificacoes int
	convites     int
	resets       int
}

func (m *stubMailer) EnviarVerificacao(destino, nome, link string) error {
	m.verificacoes++
	return nil
}

func (m *stubMailer) EnviarConvite(destino, nome, nomeHub, link string) error {
	m.convites++
	return nil
}

func (m *stubMailer) EnviarResetSenha(destino, nome, link string) error {
	m.resets++
	return nil
}

func novoAuthService(t *testing.T, repoStub *stubAuthRepo, redisStub *stubRedis) *AuthService {
	t.Helper()
	return &AuthService{
		repo:       repoStub,
		redis:      redisStub,
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		mailer:     &stubMailer{},
		refreshTTL: time.Hour,
		actionTTL:  time.Hour,
		lockout: config.LockoutConfig{
			MaxFalhas: 3,
			Janela:    time.Minute,
			Duracao:   time.Minute,
		},
		appBaseURL: "http://localhost:3000",
	}
}

func pessoaComSenha(t *testing.T, senha string) repo.Pessoa {
	t.Helper()
	hash, err := auth.Hash(senha)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return repo.Pessoa{
		ID:              uuid.New(),
		Nome:            "Ana",
		Email:           "ana@example.com",
		SenhaHash:       &hash,
		Ativo:           true,
		EmailVerificado: true,
	}
}

func TestLoginDevolveRefreshEHubs(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	hubA := uuid.New()
	hubB := uuid.New()

	repoStub := &stubAuthRepo{
		pessoa: pessoa,
		hubs: []repo.HubComPapel{
			{HubID: hubA, Nome: "Casa", Papel: repo.PapelProprietario},
			{HubID: hubB, Nome: "República", Papel: repo.PapelColaborador, PoliticaAcesso: repo.PoliticaIndividual},
		},
	}
	redisStub := &stubRedis{}
	svc := novoAuthService(t, repoStub, redisStub)

	result, err := svc.Login(context.Background(), "ana@example.com", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.RefreshToken == "" {
		t.Fatal("esperava refresh token")
	}
	if len(result.Hubs) != 2 {
		t.Fatalf("esperava 2 hubs, veio %d", len(result.Hubs))
	}
	if repoStub.refreshCalls != 1 {
		t.Fatalf("esperava 1 refresh persistido, veio %d", repoStub.refreshCalls)
	}
	marker := auth.RefreshRedisKey(auth.HashToken(result.RefreshToken))
	if redisStub.store[marker] != "ativo" {
		t.Fatalf("esperava marcador ativo no redis, veio %q", redisStub.store[marker])
	}
}

func TestLoginEmailNaoVerificado(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	pessoa.EmailVerificado = false

	svc := novoAuthService(t, &stubAuthRepo{pessoa: pessoa}, &stubRedis{})

	_, err := svc.Login(context.Background(), "ana@example.com", senha)
	if !errors.Is(err, ErrEmailNaoVerificado) {
		t.Fatalf("esperava ErrEmailNaoVerificado, veio %v", err)
	}
}

func TestLoginBloqueiaAposFalhasConsecutivas(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	svc := novoAuthService(t, &stubAuthRepo{pessoa: pessoa}, &stubRedis{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "ana@example.com", "errada123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("tentativa %d: esperava ErrInvalidCredentials, veio %v", i+1, err)
		}
	}

	if _, err := svc.Login(ctx, "ana@example.com", "errada123"); !errors.Is(err, ErrContaBloqueada) {
		t.Fatalf("esperava ErrContaBloqueada na terceira falha, veio %v", err)
	}

	// Mesmo a senha correta fica bloqueada enquanto durar o bloqueio.
	if _, err := svc.Login(ctx, "ana@example.com", senha); !errors.Is(err, ErrContaBloqueada) {
		t.Fatalf("esperava ErrContaBloqueada com senha correta, veio %v", err)
	}
}

func TestLoginContaInativa(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	pessoa.Ativo = false

	svc := novoAuthService(t, &stubAuthRepo{pessoa: pessoa}, &stubRedis{})

	// Conta desativada responde igual a credencial errada, sem expor o
	// estado da conta.
	_, err := svc.Login(context.Background(), "ana@example.com", senha)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("esperava ErrInvalidCredentials para conta inativa, veio %v", err)
	}
}

func TestVerifyEmailUsoUnico(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	pessoa.EmailVerificado = false

	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	repoStub := &stubAuthRepo{pessoa: pessoa, verifHash: hash}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "ana@example.com", senha); !errors.Is(err, ErrEmailNaoVerificado) {
		t.Fatalf("login antes da verificação: esperava ErrEmailNaoVerificado, veio %v", err)
	}

	if err := svc.VerifyEmail(ctx, raw); err != nil {
		t.Fatalf("verificar e-mail: %v", err)
	}
	if !repoStub.pessoa.EmailVerificado {
		t.Fatal("esperava e-mail verificado após consumo do token")
	}

	if _, err := svc.Login(ctx, "ana@example.com", senha); err != nil {
		t.Fatalf("login após verificação: %v", err)
	}

	if err := svc.VerifyEmail(ctx, raw); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("segunda verificação: esperava ErrTokenInvalido, veio %v", err)
	}
	if err := svc.VerifyEmail(ctx, "  "); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("token vazio: esperava ErrTokenInvalido, veio %v", err)
	}
}

func TestResendVerificationSilenciosa(t *testing.T) {
	pessoa := pessoaComSenha(t, "SenhaForte1")
	pessoa.EmailVerificado = false

	repoStub := &stubAuthRepo{pessoa: pessoa}
	mailer := &stubMailer{}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	svc.mailer = mailer
	ctx := context.Background()

	// E-mail desconhecido: resposta silenciosa, nada enviado.
	if err := svc.ResendVerification(ctx, "ninguem@example.com"); err != nil {
		t.Fatalf("reenvio para desconhecido: %v", err)
	}
	if mailer.verificacoes != 0 {
		t.Fatalf("esperava 0 e-mails para desconhecido, veio %d", mailer.verificacoes)
	}

	if err := svc.ResendVerification(ctx, "ana@example.com"); err != nil {
		t.Fatalf("reenvio: %v", err)
	}
	if mailer.verificacoes != 1 {
		t.Fatalf("esperava 1 e-mail de verificação, veio %d", mailer.verificacoes)
	}
	if repoStub.verifHash == "" {
		t.Fatal("esperava novo token de verificação gravado")
	}

	// Conta já verificada: também silencioso, sem novo e-mail.
	repoStub.pessoa.EmailVerificado = true
	if err := svc.ResendVerification(ctx, "ana@example.com"); err != nil {
		t.Fatalf("reenvio para verificada: %v", err)
	}
	if mailer.verificacoes != 1 {
		t.Fatalf("esperava nenhum e-mail extra, veio %d", mailer.verificacoes)
	}
}

func TestSelectHubEmitePapelDoVinculo(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	hubID := uuid.New()

	repoStub := &stubAuthRepo{
		pessoa: pessoa,
		hubs:   []repo.HubComPapel{{HubID: hubID, Nome: "Casa", Papel: repo.PapelAdministrador}},
		hubsByID: map[uuid.UUID]repo.Hub{
			hubID: {ID: hubID, Nome: "Casa", CriadorID: pessoa.ID},
		},
		membros: map[uuid.UUID]repo.Membro{
			hubID: {PessoaID: pessoa.ID, HubID: hubID, Papel: repo.PapelAdministrador, PoliticaAcesso: repo.PoliticaGlobal, Ativo: true},
		},
	}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	ctx := context.Background()

	result, err := svc.Login(ctx, "ana@example.com", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sel, err := svc.SelectHub(ctx, result.RefreshToken, hubID)
	if err != nil {
		t.Fatalf("select-hub: %v", err)
	}

	claims, err := svc.jwt.ParseAndValidate(sel.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Papel != repo.PapelAdministrador {
		t.Fatalf("papel no token: esperava ADMINISTRADOR, veio %s", claims.Papel)
	}
	if claims.HubID != hubID.String() {
		t.Fatalf("hub no token: esperava %s, veio %s", hubID, claims.HubID)
	}

	// Repetir a seleção com o mesmo refresh token continua funcionando: o
	// token não é rotacionado na troca de hub.
	if _, err := svc.SelectHub(ctx, result.RefreshToken, hubID); err != nil {
		t.Fatalf("re-select: %v", err)
	}
}

func TestSelectHubNaoMembro(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)

	svc := novoAuthService(t, &stubAuthRepo{pessoa: pessoa}, &stubRedis{})
	ctx := context.Background()

	result, err := svc.Login(ctx, "ana@example.com", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.SelectHub(ctx, result.RefreshToken, uuid.New()); !errors.Is(err, ErrNaoMembro) {
		t.Fatalf("esperava ErrNaoMembro, veio %v", err)
	}
}

func TestLogoutRevogaRefresh(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)
	hubID := uuid.New()

	repoStub := &stubAuthRepo{
		pessoa:   pessoa,
		hubsByID: map[uuid.UUID]repo.Hub{hubID: {ID: hubID, Nome: "Casa"}},
		membros: map[uuid.UUID]repo.Membro{
			hubID: {PessoaID: pessoa.ID, HubID: hubID, Papel: repo.PapelProprietario, Ativo: true},
		},
	}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	ctx := context.Background()

	result, err := svc.Login(ctx, "ana@example.com", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.SelectHub(ctx, result.RefreshToken, hubID); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("esperava ErrRefreshInvalid após logout, veio %v", err)
	}

	// Logout repetido é inofensivo.
	if err := svc.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("logout idempotente: %v", err)
	}
}

func TestAtivarConviteUsoUnico(t *testing.T) {
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	repoStub := &stubAuthRepo{
		pessoa:      repo.Pessoa{ID: uuid.New(), Nome: "Bruno", Email: "bruno@example.com"},
		conviteHash: hash,
	}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	ctx := context.Background()

	pessoa, err := svc.AtivarConvite(ctx, raw, "NovaSenha1")
	if err != nil {
		t.Fatalf("ativar convite: %v", err)
	}
	if !pessoa.Ativo || !pessoa.EmailVerificado {
		t.Fatal("esperava conta ativa e verificada após ativação")
	}

	if _, err := svc.AtivarConvite(ctx, raw, "OutraSenha1"); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("segunda ativação: esperava ErrTokenInvalido, veio %v", err)
	}
}

func TestResetPasswordDerrubaSessoes(t *testing.T) {
	senha := "SenhaForte1"
	pessoa := pessoaComSenha(t, senha)

	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("gerar token: %v", err)
	}

	repoStub := &stubAuthRepo{pessoa: pessoa, resetHash: hash}
	svc := novoAuthService(t, repoStub, &stubRedis{})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "ana@example.com", senha); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.ResetPassword(ctx, raw, "NovaSenha1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if repoStub.revokeAll != 1 {
		t.Fatalf("esperava revogação de todas as sessões, veio %d chamadas", repoStub.revokeAll)
	}

	if err := svc.ResetPassword(ctx, raw, "NovaSenha2"); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("segundo reset: esperava ErrTokenInvalido, veio %v", err)
	}
}

func TestRegisterSenhaFraca(t *testing.T) {
	svc := novoAuthService(t, &stubAuthRepo{}, &stubRedis{})

	if _, err := svc.Register(context.Background(), "Ana", "ana@example.com", "curta", "Casa"); !errors.Is(err, ErrSenhaFraca) {
		t.Fatalf("esperava ErrSenhaFraca, veio %v", err)
	}
}
