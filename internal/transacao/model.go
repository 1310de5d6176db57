package transacao

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de transação.
const (
	TipoGasto   = "GASTO"
	TipoReceita = "RECEITA"
)

// Status de pagamento, por participante e agregado da transação.
const (
	StatusPendente = "PENDENTE"
	StatusParcial  = "PARCIAL"
	StatusPago     = "PAGO"
)

// Transacao representa gasto ou receita do hub, com divisão entre participantes.
type Transacao struct {
	ID                 uuid.UUID      `json:"id"`
	HubID              uuid.UUID      `json:"hubId"`
	Tipo               string         `json:"tipo"`
	Descricao          string         `json:"descricao"`
	ValorTotalCentavos int64          `json:"valorTotalCentavos"`
	Data               time.Time      `json:"data"`
	CriadoPor          uuid.UUID      `json:"criadoPor"`
	ComprovanteURL     *string        `json:"comprovanteUrl,omitempty"`
	CriadoEm           time.Time      `json:"criadoEm"`
	Status             string         `json:"status"`
	Participantes      []Participante `json:"participantes,omitempty"`
	Tags               []Tag          `json:"tags,omitempty"`
}

// Participante carrega a cota devida e o total já pago por pessoa.
type Participante struct {
	PessoaID            uuid.UUID `json:"pessoaId"`
	Nome                string    `json:"nome,omitempty"`
	ValorDevidoCentavos int64     `json:"valorDevidoCentavos"`
	ValorPagoCentavos   int64     `json:"valorPagoCentavos"`
	Status              string    `json:"status"`
}

// Pagamento registra quitação (total ou parcial) de uma cota.
type Pagamento struct {
	ID            uuid.UUID `json:"id"`
	TransacaoID   uuid.UUID `json:"transacaoId"`
	PessoaID      uuid.UUID `json:"pessoaId"`
	ValorCentavos int64     `json:"valorCentavos"`
	PagoEm        time.Time `json:"pagoEm"`
	RegistradoPor uuid.UUID `json:"registradoPor"`
}

// Tag rotula transações dentro do hub.
type Tag struct {
	ID   uuid.UUID `json:"id"`
	Nome string    `json:"nome"`
	Cor  string    `json:"cor,omitempty"`
}

// SplitItem descreve a cota de um participante na criação da transação.
type SplitItem struct {
	PessoaID      uuid.UUID `json:"pessoaId"`
	ValorCentavos int64     `json:"valorCentavos"`
}

// NovaTransacao agrupa os dados de criação.
type NovaTransacao struct {
	Tipo               string      `json:"tipo"`
	Descricao          string      `json:"descricao"`
	ValorTotalCentavos int64       `json:"valorTotalCentavos"`
	Data               time.Time   `json:"data"`
	Participantes      []SplitItem `json:"participantes"`
	TagIDs             []uuid.UUID `json:"tagIds"`
}

// Filtro restringe listagens e agregações.
type Filtro struct {
	ApenasPessoa *uuid.UUID
	Tipo         string
	TagID        *uuid.UUID
	DataInicio   *time.Time
	DataFim      *time.Time
	Limit        int
	Offset       int
}

// statusParticipante deriva o status da cota a partir dos valores.
func statusParticipante(devido, pago int64) string {
	switch {
	case pago <= 0:
		return StatusPendente
	case pago < devido:
		return StatusParcial
	default:
		return StatusPago
	}
}

// statusTransacao agrega o status dos participantes: PAGO quando todas as
// cotas estão quitadas, PENDENTE quando nada foi pago, PARCIAL no restante.
func statusTransacao(participantes []Participante) string {
	if len(participantes) == 0 {
		return StatusPago
	}
	todosPagos := true
	algumPago := false
	for _, p := range participantes {
		switch p.Status {
		case StatusPago:
			algumPago = true
		case StatusParcial:
			algumPago = true
			todosPagos = false
		default:
			todosPagos = false
		}
	}
	if todosPagos {
		return StatusPago
	}
	if algumPago {
		return StatusParcial
	}
	return StatusPendente
}
