// Package storage armazena comprovantes de transações em backends
// compatíveis com S3, ou descarta quando nenhum backend está configurado.
package storage

import "context"

// Uploader grava um blob e devolve a URL pública do objeto.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}
