// Package secrets stores the API key used for LLM classification.
package secrets

import (
	"sync"
)

// Provider is the key store consumed by the LLM strategies.
type Provider interface {
	HasKey() bool
	GetKey() (string, bool)
	SetKey(key string) error
	DeleteKey() error
}

// Memory keeps the key in process memory. Useful in tests.
type Memory struct {
	key string
	mu  sync.RWMutex
}

// NewMemory returns a store holding key, which may be empty.
func NewMemory(key string) *Memory {
	return &Memory{key: key}
}

// HasKey reports whether a key is set.
func (m *Memory) HasKey() bool {
	_, ok := m.GetKey()
	return ok
}

// GetKey returns the key.
func (m *Memory) GetKey() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key, m.key != ""
}

// SetKey replaces the key.
func (m *Memory) SetKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

// DeleteKey clears the key.
func (m *Memory) DeleteKey() error {
	return m.SetKey("")
}

type fallbackProvider struct {
	primary  Provider
	fallback Provider
}

// WithFallback reads from primary first and then fallback. Writes and
// deletes go to primary only.
func WithFallback(primary, fallback Provider) Provider {
	return &fallbackProvider{primary: primary, fallback: fallback}
}

func (f *fallbackProvider) HasKey() bool {
	return f.primary.HasKey() || f.fallback.HasKey()
}

func (f *fallbackProvider) GetKey() (string, bool) {
	if key, ok := f.primary.GetKey(); ok {
		return key, true
	}
	return f.fallback.GetKey()
}

func (f *fallbackProvider) SetKey(key string) error {
	return f.primary.SetKey(key)
}

func (f *fallbackProvider) DeleteKey() error {
	return f.primary.DeleteKey()
}

// Env reads the key from an environment variable. It cannot be written.
type Env struct {
	lookup func(string) (string, bool)
	name   string
}

// Source names where a key was found, for status output.
func Source(p Provider) string {
	switch v := p.(type) {
	case *File:
		if v.HasKey() {
			return "file " + v.Path()
		}
	case *Env:
		if v.HasKey() {
			return "environment variable " + v.name
		}
	case *Memory:
		if v.HasKey() {
			return "memory"
		}
	case *fallbackProvider:
		if v.primary.HasKey() {
			return Source(v.primary)
		}
		return Source(v.fallback)
	}
	return ""
}
