package transacao

import "testing"

func TestStatusParticipante(t *testing.T) {
	cases := []struct {
		nome   string
		devido int64
		pago   int64
		quer   string
	}{
		{"nada pago", 1000, 0, StatusPendente},
		{"pago parcial", 1000, 400, StatusParcial},
		{"pago exato", 1000, 1000, StatusPago},
		{"pago a mais", 1000, 1200, StatusPago},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if got := statusParticipante(tc.devido, tc.pago); got != tc.quer {
				t.Fatalf("statusParticipante(%d, %d) = %s, quer %s", tc.devido, tc.pago, got, tc.quer)
			}
		})
	}
}

func TestStatusTransacao(t *testing.T) {
	cases := []struct {
		nome          string
		participantes []Participante
		quer          string
	}{
		{"todos pagos", []Participante{{Status: StatusPago}, {Status: StatusPago}}, StatusPago},
		{"nenhum pago", []Participante{{Status: StatusPendente}, {Status: StatusPendente}}, StatusPendente},
		{"um pago um pendente", []Participante{{Status: StatusPago}, {Status: StatusPendente}}, StatusParcial},
		{"cota parcial", []Participante{{Status: StatusParcial}}, StatusParcial},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if got := statusTransacao(tc.participantes); got != tc.quer {
				t.Fatalf("statusTransacao = %s, quer %s", got, tc.quer)
			}
		})
	}
}
