// Package hubclient é o SDK de consumo da API: implementa a máquina de
// estados da autenticação em duas etapas (login, seleção de hub) e mantém a
// sessão persistida em um TokenStore plugável.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Estado descreve a posição na máquina de autenticação.
type Estado int

const (
	// EstadoDeslogado indica ausência de sessão.
	EstadoDeslogado Estado = iota
	// EstadoSemHub indica login feito, hub ainda não escolhido.
	EstadoSemHub
	// EstadoHubSelecionado indica sessão completa com access token.
	EstadoHubSelecionado
)

func (e Estado) String() string {
	switch e {
	case EstadoSemHub:
		return "LOGADO_SEM_HUB"
	case EstadoHubSelecionado:
		return "HUB_SELECIONADO"
	default:
		return "DESLOGADO"
	}
}

// Usuario é a identidade autenticada.
type Usuario struct {
	ID              string `json:"id"`
	Nome            string `json:"nome"`
	Email           string `json:"email"`
	EmailVerificado bool   `json:"emailVerificado"`
}

// Hub é um hub acessível pelo usuário, com o papel dele nesse hub.
type Hub struct {
	ID             string `json:"id"`
	Nome           string `json:"nome"`
	Papel          string `json:"papel"`
	PoliticaAcesso string `json:"politicaAcesso,omitempty"`
}

// Sessao é o estado serializável persistido no TokenStore.
type Sessao struct {
	Usuario      Usuario `json:"usuario"`
	Hubs         []Hub   `json:"hubs"`
	RefreshToken string  `json:"refreshToken"`
	AccessToken  string  `json:"accessToken,omitempty"`
	HubAtual     *Hub    `json:"hubAtual,omitempty"`
}

func (s Sessao) estado() Estado {
	switch {
	case s.RefreshToken == "":
		return EstadoDeslogado
	case s.HubAtual == nil || s.AccessToken == "":
		return EstadoSemHub
	default:
		return EstadoHubSelecionado
	}
}

// Client consome a API mantendo a sessão sincronizada com o TokenStore.
// Seguro para uso concorrente.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore

	mu     sync.Mutex
	sessao Sessao
}

// Option customiza o cliente.
type Option func(*Client)

// WithHTTPClient substitui o http.Client padrão.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New cria o cliente e restaura sessão previamente persistida, se houver.
func New(baseURL string, store TokenStore, opts ...Option) (*Client, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}

	sessao, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("hubclient: restaurar sessão: %w", err)
	}
	if ok {
		c.sessao = sessao
	}
	return c, nil
}

// Estado devolve o estado atual da máquina.
func (c *Client) Estado() Estado {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessao.estado()
}

// Usuario devolve a identidade autenticada; zero value quando deslogado.
func (c *Client) Usuario() Usuario {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessao.Usuario
}

// Hubs devolve os hubs retornados no login.
func (c *Client) Hubs() []Hub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Hub(nil), c.sessao.Hubs...)
}

// HubAtual devolve o hub selecionado; nil antes da seleção.
func (c *Client) HubAtual() *Hub {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessao.HubAtual == nil {
		return nil
	}
	hub := *c.sessao.HubAtual
	return &hub
}

// AccessToken devolve o token de acesso vigente, vazio sem hub selecionado.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessao.AccessToken
}

// TemPapel verifica se o papel no hub atual está entre os informados.
func (c *Client) TemPapel(papeis ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessao.HubAtual == nil {
		return false
	}
	for _, p := range papeis {
		if c.sessao.HubAtual.Papel == p {
			return true
		}
	}
	return false
}

// EhProprietario informa se o papel atual é PROPRIETARIO.
func (c *Client) EhProprietario() bool {
	return c.TemPapel("PROPRIETARIO")
}

// EhAdministrador informa se o papel atual permite administração.
func (c *Client) EhAdministrador() bool {
	return c.TemPapel("PROPRIETARIO", "ADMINISTRADOR")
}

// Login executa a primeira etapa da autenticação. Quando o usuário pertence
// a exatamente um hub, a seleção acontece automaticamente.
func (c *Client) Login(ctx context.Context, email, senha string) (Estado, error) {
	var out struct {
		User         Usuario `json:"user"`
		Hubs         []Hub   `json:"hubs"`
		RefreshToken string  `json:"refreshToken"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email,
		"senha": senha,
	}, &out)
	if err != nil {
		return c.Estado(), err
	}

	c.mu.Lock()
	c.sessao = Sessao{
		Usuario:      out.User,
		Hubs:         out.Hubs,
		RefreshToken: out.RefreshToken,
	}
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		return c.Estado(), err
	}

	if len(out.Hubs) == 1 {
		if err := c.SelectHub(ctx, out.Hubs[0].ID); err != nil {
			return c.Estado(), err
		}
	}
	return c.Estado(), nil
}

// SelectHub executa a segunda etapa, trocando refresh token por access token
// para o hub informado.
func (c *Client) SelectHub(ctx context.Context, hubID string) error {
	c.mu.Lock()
	refresh := c.sessao.RefreshToken
	c.mu.Unlock()
	if refresh == "" {
		return ErrSemSessao
	}

	var out struct {
		AccessToken string `json:"accessToken"`
		HubContext  Hub    `json:"hubContext"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/select-hub", refresh, map[string]string{
		"hubId": hubID,
	}, &out)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessao.AccessToken = out.AccessToken
	c.sessao.HubAtual = &out.HubContext
	c.mu.Unlock()

	return c.persist()
}

// Refresh reemite o access token do hub atual com o mesmo refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.sessao.RefreshToken
	hub := c.sessao.HubAtual
	c.mu.Unlock()

	if refresh == "" {
		return ErrSemSessao
	}
	if hub == nil {
		return ErrSemHub
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/refresh", refresh, map[string]string{
		"hubId": hub.ID,
	}, &out)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessao.AccessToken = out.AccessToken
	c.mu.Unlock()

	return c.persist()
}

// Logout revoga a sessão no servidor e limpa o estado local. A limpeza local
// acontece mesmo quando a revogação remota falha.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.sessao.RefreshToken
	c.mu.Unlock()

	var remoteErr error
	if refresh != "" {
		remoteErr = c.call(ctx, http.MethodPost, "/api/auth/logout", refresh, nil, nil)
	}

	if err := c.LogoutSilencioso(); err != nil {
		return err
	}
	return remoteErr
}

// LogoutSilencioso limpa sessão e store sem chamar o servidor.
func (c *Client) LogoutSilencioso() error {
	c.mu.Lock()
	c.sessao = Sessao{}
	c.mu.Unlock()
	return c.store.Clear()
}

func (c *Client) persist() error {
	c.mu.Lock()
	sessao := c.sessao
	c.mu.Unlock()
	if err := c.store.Save(sessao); err != nil {
		return fmt.Errorf("hubclient: persistir sessão: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("hubclient: resposta inválida (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || envelope.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: "INTERNAL", Message: "erro desconhecido"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("hubclient: decodificar data: %w", err)
		}
	}
	return nil
}
