package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrEmailEmUso é retornado quando o e-mail já pertence a outra pessoa.
	ErrEmailEmUso = errors.New("e-mail já cadastrado")
	// ErrTokenConsumido é retornado quando um token de ação já foi usado ou expirou.
	ErrTokenConsumido = errors.New("token inválido ou já utilizado")
)
