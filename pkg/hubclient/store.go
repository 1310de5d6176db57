package hubclient

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// TokenStore persiste a sessão entre execuções do cliente. Abstrai onde o
// chamador guarda tokens (memória, arquivo, keychain).
type TokenStore interface {
	Save(s Sessao) error
	Load() (Sessao, bool, error)
	Clear() error
}

// MemoryStore guarda a sessão apenas em memória.
type MemoryStore struct {
	mu     sync.Mutex
	sessao Sessao
	ok     bool
}

// NewMemoryStore cria um store volátil.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(s Sessao) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessao = s
	m.ok = true
	return nil
}

func (m *MemoryStore) Load() (Sessao, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessao, m.ok, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessao = Sessao{}
	m.ok = false
	return nil
}

// FileStore persiste a sessão como JSON em disco, com permissão restrita.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore cria um store baseado em arquivo.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(s Sessao) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Load() (Sessao, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Sessao{}, false, nil
	}
	if err != nil {
		return Sessao{}, false, err
	}

	var s Sessao
	if err := json.Unmarshal(data, &s); err != nil {
		return Sessao{}, false, err
	}
	return s, s.RefreshToken != "", nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
