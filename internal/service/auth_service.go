package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/config"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação, cobrindo também
	// contas desativadas para não expor o estado da conta.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrEmailNaoVerificado indica que o e-mail ainda não foi confirmado.
	ErrEmailNaoVerificado = errors.New("e-mail não verificado")
	// ErrContaBloqueada indica bloqueio temporário por excesso de falhas.
	ErrContaBloqueada = errors.New("conta temporariamente bloqueada")
	// ErrRefreshInvalid indica refresh token inválido, expirado ou revogado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrNaoMembro indica ausência de vínculo com o hub solicitado.
	ErrNaoMembro = errors.New("pessoa não é membro do hub")
	// ErrSenhaFraca indica senha fora da política mínima.
	ErrSenhaFraca = errors.New("senha fraca")
	// ErrTokenInvalido indica token de ação inválido, expirado ou já utilizado.
	ErrTokenInvalido = errors.New("token inválido ou já utilizado")
)

type authRepository interface {
	GetPessoaByEmail(ctx context.Context, email string) (repo.Pessoa, error)
	GetPessoaByID(ctx context.Context, id uuid.UUID) (repo.Pessoa, error)
	UpdatePessoaNome(ctx context.Context, id uuid.UUID, nome string) error
	CreatePessoaComHub(ctx context.Context, arg repo.CreatePessoaComHubParams) (repo.Pessoa, repo.Hub, error)
	SetTokenVerificacao(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error
	ConsumirTokenVerificacao(ctx context.Context, hash string) (repo.Pessoa, error)
	ConsumirTokenConvite(ctx context.Context, hash, senhaHash string) (repo.Pessoa, error)
	SetTokenReset(ctx context.Context, pessoaID uuid.UUID, hash string, expira time.Time) error
	ConsumirTokenReset(ctx context.Context, hash, senhaHash string) (repo.Pessoa, error)
	ListHubsByPessoa(ctx context.Context, pessoaID uuid.UUID) ([]repo.HubComPapel, error)
	GetMembro(ctx context.Context, pessoaID, hubID uuid.UUID) (repo.Membro, error)
	GetHub(ctx context.Context, id uuid.UUID) (repo.Hub, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, pessoaID uuid.UUID) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Mailer entrega e-mails transacionais do fluxo de autenticação.
type Mailer interface {
	EnviarVerificacao(destino, nome, link string) error
	EnviarConvite(destino, nome, nomeHub, link string) error
	EnviarResetSenha(destino, nome, link string) error
}

// AuthService concentra regras de autenticação em duas etapas e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	mailer     Mailer
	refreshTTL time.Duration
	actionTTL  time.Duration
	lockout    config.LockoutConfig
	appBaseURL string
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, mailer Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		repo:       r,
		redis:      redisClient,
		jwt:        jwtMgr,
		mailer:     mailer,
		refreshTTL: cfg.JWTRefreshTTL,
		actionTTL:  cfg.ActionTokenTTL,
		lockout:    cfg.Lockout,
		appBaseURL: cfg.AppBaseURL,
	}
}

// JWT expõe o gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa o retorno da primeira etapa da autenticação:
// identidade resolvida e hubs disponíveis, ainda sem contexto de hub.
type LoginResult struct {
	Pessoa        repo.Pessoa
	Hubs          []repo.HubComPapel
	RefreshToken  string
	RefreshExpiry time.Time
}

// HubSelection representa a segunda etapa: token de acesso com contexto do hub.
type HubSelection struct {
	AccessToken string
	Hub         repo.HubComPapel
}

// Login valida credenciais e devolve refresh token + hubs da pessoa.
func (s *AuthService) Login(ctx context.Context, email, senha string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if bloqueada, err := s.contaBloqueada(ctx, email); err != nil {
		return nil, err
	} else if bloqueada {
		return nil, ErrContaBloqueada
	}

	pessoa, err := s.repo.GetPessoaByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: pessoa não encontrada")
			return nil, s.registraFalha(ctx, email)
		}
		return nil, err
	}

	if pessoa.SenhaHash == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := auth.Verify(senha, *pessoa.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, s.registraFalha(ctx, email)
	}

	// Conta desativada responde como credencial inválida para não
	// revelar o estado da conta a quem não está autenticado.
	if !pessoa.Ativo {
		return nil, ErrInvalidCredentials
	}
	if !pessoa.EmailVerificado {
		return nil, ErrEmailNaoVerificado
	}

	_ = s.redis.Del(ctx, auth.LoginFailKey(email)).Err()

	hubs, err := s.repo.ListHubsByPessoa(ctx, pessoa.ID)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, pessoa.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		Pessoa:        pessoa,
		Hubs:          hubs,
		RefreshToken:  rawRefresh,
		RefreshExpiry: expires,
	}, nil
}

// SelectHub valida o refresh token e emite access token para o hub escolhido.
// Reexecutar com o mesmo hub devolve um token equivalente.
func (s *AuthService) SelectHub(ctx context.Context, rawRefresh string, hubID uuid.UUID) (*HubSelection, error) {
	record, err := s.validateRefresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	return s.issueAccessForHub(ctx, record.PessoaID, hubID)
}

// Refresh reemite access token para o hub informado; vínculo é reavaliado,
// portanto mudanças de papel passam a valer no próximo token.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string, hubID uuid.UUID) (*HubSelection, error) {
	return s.SelectHub(ctx, rawRefresh, hubID)
}

func (s *AuthService) validateRefresh(ctx context.Context, rawRefresh string) (repo.TokenRefresh, error) {
	if rawRefresh == "" {
		return repo.TokenRefresh{}, ErrRefreshInvalid
	}

	hash := auth.HashToken(rawRefresh)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.TokenRefresh{}, ErrRefreshInvalid
		}
		return repo.TokenRefresh{}, err
	}

	if record.Revogado || util.Now().After(record.Expiracao) {
		return repo.TokenRefresh{}, ErrRefreshInvalid
	}

	status, err := s.redis.Get(ctx, auth.RefreshRedisKey(hash)).Result()
	if err == redis.Nil {
		return repo.TokenRefresh{}, ErrRefreshInvalid
	}
	if err != nil {
		return repo.TokenRefresh{}, err
	}
	if status != "ativo" {
		return repo.TokenRefresh{}, ErrRefreshInvalid
	}

	return record, nil
}

func (s *AuthService) issueAccessForHub(ctx context.Context, pessoaID, hubID uuid.UUID) (*HubSelection, error) {
	membro, err := s.repo.GetMembro(ctx, pessoaID, hubID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNaoMembro
		}
		return nil, err
	}

	hub, err := s.repo.GetHub(ctx, hubID)
	if err != nil {
		return nil, err
	}

	token, _, err := s.jwt.GenerateAccessToken(pessoaID.String(), hubID.String(), membro.Papel, membro.PoliticaAcesso)
	if err != nil {
		return nil, err
	}

	return &HubSelection{
		AccessToken: token,
		Hub: repo.HubComPapel{
			HubID:          hub.ID,
			Nome:           hub.Nome,
			Papel:          membro.Papel,
			PoliticaAcesso: membro.PoliticaAcesso,
		},
	}, nil
}

// Logout revoga o refresh token atual. Idempotente.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	hash := auth.HashToken(rawRefresh)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Register cria pessoa + hub inicial e dispara verificação de e-mail.
func (s *AuthService) Register(ctx context.Context, nome, email, senha, nomeHub string) (*repo.Pessoa, error) {
	if err := util.ValidatePassword(senha); err != nil {
		return nil, ErrSenhaFraca
	}

	senhaHash, err := auth.Hash(senha)
	if err != nil {
		return nil, err
	}

	rawToken, tokenHash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	pessoa, _, err := s.repo.CreatePessoaComHub(ctx, repo.CreatePessoaComHubParams{
		Nome:                   nome,
		Email:                  email,
		SenhaHash:              senhaHash,
		NomeHub:                nomeHub,
		TokenVerificacaoHash:   tokenHash,
		TokenVerificacaoExpira: util.Now().Add(s.actionTTL),
	})
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/verificar-email?token=%s", s.appBaseURL, rawToken)
	if err := s.mailer.EnviarVerificacao(pessoa.Email, pessoa.Nome, link); err != nil {
		log.Warn().Err(err).Msg("register: falha ao enviar e-mail de verificação")
	}

	return &pessoa, nil
}

// VerifyEmail consome o token de verificação; uso único.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrTokenInvalido
	}
	_, err := s.repo.ConsumirTokenVerificacao(ctx, auth.HashToken(rawToken))
	if errors.Is(err, repo.ErrTokenConsumido) {
		return ErrTokenInvalido
	}
	return err
}

// ResendVerification gera novo token para conta ainda não verificada.
// Resposta silenciosa para e-mails desconhecidos ou já verificados.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	pessoa, err := s.repo.GetPessoaByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	if pessoa.EmailVerificado {
		return nil
	}

	rawToken, tokenHash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetTokenVerificacao(ctx, pessoa.ID, tokenHash, util.Now().Add(s.actionTTL)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}

	link := fmt.Sprintf("%s/verificar-email?token=%s", s.appBaseURL, rawToken)
	return s.mailer.EnviarVerificacao(pessoa.Email, pessoa.Nome, link)
}

// AtivarConvite consome o token de convite definindo a senha do convidado.
// Escrita condicional no banco garante exatamente um vencedor entre chamadas
// concorrentes com o mesmo token.
func (s *AuthService) AtivarConvite(ctx context.Context, rawToken, novaSenha string) (*repo.Pessoa, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrTokenInvalido
	}
	if err := util.ValidatePassword(novaSenha); err != nil {
		return nil, ErrSenhaFraca
	}

	senhaHash, err := auth.Hash(novaSenha)
	if err != nil {
		return nil, err
	}

	pessoa, err := s.repo.ConsumirTokenConvite(ctx, auth.HashToken(rawToken), senhaHash)
	if err != nil {
		if errors.Is(err, repo.ErrTokenConsumido) {
			return nil, ErrTokenInvalido
		}
		return nil, err
	}
	return &pessoa, nil
}

// RequestPasswordReset gera token de redefinição. Silencioso para
// e-mails desconhecidos.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	pessoa, err := s.repo.GetPessoaByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	if !pessoa.Ativo {
		return nil
	}

	rawToken, tokenHash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetTokenReset(ctx, pessoa.ID, tokenHash, util.Now().Add(s.actionTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/redefinir-senha?token=%s", s.appBaseURL, rawToken)
	return s.mailer.EnviarResetSenha(pessoa.Email, pessoa.Nome, link)
}

// ResetPassword troca a senha e derruba todas as sessões da pessoa.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, novaSenha string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrTokenInvalido
	}
	if err := util.ValidatePassword(novaSenha); err != nil {
		return ErrSenhaFraca
	}

	senhaHash, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}

	pessoa, err := s.repo.ConsumirTokenReset(ctx, auth.HashToken(rawToken), senhaHash)
	if err != nil {
		if errors.Is(err, repo.ErrTokenConsumido) {
			return ErrTokenInvalido
		}
		return err
	}

	return s.repo.RevokeAllRefreshTokens(ctx, pessoa.ID)
}

// GetMe retorna perfil e vínculos da pessoa autenticada.
func (s *AuthService) GetMe(ctx context.Context, pessoaID uuid.UUID) (repo.Pessoa, []repo.HubComPapel, error) {
	pessoa, err := s.repo.GetPessoaByID(ctx, pessoaID)
	if err != nil {
		return repo.Pessoa{}, nil, err
	}
	hubs, err := s.repo.ListHubsByPessoa(ctx, pessoaID)
	if err != nil {
		return repo.Pessoa{}, nil, err
	}
	return pessoa, hubs, nil
}

// UpdateMe altera o nome de exibição.
func (s *AuthService) UpdateMe(ctx context.Context, pessoaID uuid.UUID, nome string) error {
	if err := util.RequireString(nome, "nome"); err != nil {
		return err
	}
	return s.repo.UpdatePessoaNome(ctx, pessoaID, nome)
}

func (s *AuthService) persistRefresh(ctx context.Context, pessoaID uuid.UUID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		PessoaID:  pessoaID,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), "ativo", time.Until(expires)).Err()
}

func (s *AuthService) contaBloqueada(ctx context.Context, email string) (bool, error) {
	_, err := s.redis.Get(ctx, auth.LockoutKey(email)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// registraFalha incrementa o contador por e-mail e arma o bloqueio ao
// atingir o limite. Sempre devolve um erro de autenticação.
func (s *AuthService) registraFalha(ctx context.Context, email string) error {
	falhas, err := s.redis.Incr(ctx, auth.LoginFailKey(email)).Result()
	if err != nil {
		return ErrInvalidCredentials
	}
	if falhas == 1 {
		_ = s.redis.Expire(ctx, auth.LoginFailKey(email), s.lockout.Janela).Err()
	}
	if falhas >= int64(s.lockout.MaxFalhas) {
		_ = s.redis.Set(ctx, auth.LockoutKey(email), "1", s.lockout.Duracao).Err()
		_ = s.redis.Del(ctx, auth.LoginFailKey(email)).Err()
		return ErrContaBloqueada
	}
	return ErrInvalidCredentials
}
