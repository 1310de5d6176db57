package storage

import (
	"context"
	"errors"
)

// ErrNaoConfigurado indica backend de storage ausente.
var ErrNaoConfigurado = errors.New("storage: uploader não configurado")

// NoopUploader responde com erro para qualquer upload.
type NoopUploader struct{}

func (NoopUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return "", ErrNaoConfigurado
}
