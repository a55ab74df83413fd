// Package sdk provides a Go client for the Darasa API.
package sdk

import "sync"

// Token store keys, scoped per portal so one process can hold several
// sessions at once.
const (
	TokenKeyAdmin   = "darasa.token.admin"
	TokenKeyTeacher = "darasa.token.teacher"
	TokenKeyStudent = "darasa.token.student"
)

// TokenStore holds API tokens between calls.
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, token string)
	Clear(key string)
}

type memoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

var _ TokenStore = (*memoryTokenStore)(nil)

func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]string)}
}

func (s *memoryTokenStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	return token, ok
}

func (s *memoryTokenStore) Set(key, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
}

func (s *memoryTokenStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
}
