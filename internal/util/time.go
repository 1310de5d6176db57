package util

import "time"

// Now retorna o instante atual em UTC; todo timestamp persistido passa por aqui.
func Now() time.Time {
	return time.Now().UTC()
}
