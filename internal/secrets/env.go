package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

// DefaultEnvVar is the environment variable checked for the Gemini key.
const DefaultEnvVar = "GEMINI_API_KEY"

// NewEnv reads the key from the named variable.
func NewEnv(name string) *Env {
	if name == "" {
		name = DefaultEnvVar
	}
	return &Env{name: name, lookup: os.LookupEnv}
}

// HasKey reports whether the variable is set and non-empty.
func (e *Env) HasKey() bool {
	_, ok := e.GetKey()
	return ok
}

// GetKey returns the trimmed value of the variable.
func (e *Env) GetKey() (string, bool) {
	v, ok := e.lookup(e.name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// SetKey always fails.
func (e *Env) SetKey(string) error {
	return fmt.Errorf("%s: %w", e.name, common.ErrReadOnly)
}

// DeleteKey always fails.
func (e *Env) DeleteKey() error {
	return fmt.Errorf("%s: %w", e.name, common.ErrReadOnly)
}
