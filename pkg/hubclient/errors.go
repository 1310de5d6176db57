package hubclient

import (
	"errors"
	"fmt"
)

var (
	// ErrCredenciaisInvalidas corresponde ao código CREDENCIAIS_INVALIDAS.
	ErrCredenciaisInvalidas = errors.New("credenciais inválidas")
	// ErrEmailNaoVerificado corresponde ao código EMAIL_NAO_VERIFICADO.
	ErrEmailNaoVerificado = errors.New("e-mail não verificado")
	// ErrContaBloqueada corresponde ao código CONTA_BLOQUEADA.
	ErrContaBloqueada = errors.New("conta bloqueada temporariamente")
	// ErrNaoMembro corresponde ao código NAO_MEMBRO.
	ErrNaoMembro = errors.New("não é membro do hub")
	// ErrTokenInvalido corresponde ao código TOKEN_INVALIDO.
	ErrTokenInvalido = errors.New("token inválido ou expirado")
	// ErrSemSessao indica operação que exige login prévio.
	ErrSemSessao = errors.New("nenhuma sessão ativa")
	// ErrSemHub indica operação que exige hub selecionado.
	ErrSemHub = errors.New("nenhum hub selecionado")
)

var codigoParaErro = map[string]error{
	"CREDENCIAIS_INVALIDAS": ErrCredenciaisInvalidas,
	"EMAIL_NAO_VERIFICADO":  ErrEmailNaoVerificado,
	"CONTA_BLOQUEADA":       ErrContaBloqueada,
	"NAO_MEMBRO":            ErrNaoMembro,
	"TOKEN_INVALIDO":        ErrTokenInvalido,
}

// APIError carrega o erro normalizado devolvido pelo servidor. Códigos
// conhecidos desembrulham para os sentinelas deste pacote, permitindo
// errors.Is no chamador.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubclient: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if sentinel, ok := codigoParaErro[e.Code]; ok {
		return sentinel
	}
	return nil
}
