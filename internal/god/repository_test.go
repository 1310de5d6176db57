package god

import (
	"strings"
	"testing"
)

// A subconsulta de sessões ativas roda contra tokens_refresh, cujo schema
// usa as colunas revogado e expiracao.
func TestConsultaMetricasFiltraSessoesAtivas(t *testing.T) {
	if !strings.Contains(consultaMetricas, "FROM tokens_refresh WHERE NOT revogado AND expiracao > now()") {
		t.Fatalf("subconsulta de sessões não bate com o schema de tokens_refresh:\n%s", consultaMetricas)
	}
}
