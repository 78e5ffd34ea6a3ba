// Package generator defines the synthetic data model contract and the named
// registry that run configs select implementations from.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
)

// ErrNotFitted is returned by Generate when Fit has not completed
// successfully on this instance.
var ErrNotFitted = errors.New("generator is not fitted")

// Request parameterizes one sampling pass.
type Request struct {
	// Count is the number of rows to produce.
	Count int

	// Conditions pins columns to fixed values (conditional generation).
	Conditions map[string]string

	// Rand is the random source; a nil Rand is an error so runs stay
	// reproducible by construction.
	Rand *rand.Rand
}

// Generator is a synthetic data model. Fit learns from a loader-wrapped
// dataset; Generate samples new rows. Implementations must return
// ErrNotFitted from Generate before a successful Fit.
type Generator interface {
	Kind() string
	Fit(ctx context.Context, l *dataset.Loader) error
	Generate(ctx context.Context, req Request) (*dataset.Dataset, error)
}

// Stater is implemented by generators whose fitted state can round-trip
// through a byte blob. The fit cache depends on it.
type Stater interface {
	// MarshalState serializes the fitted state. Errors when not fitted.
	MarshalState() ([]byte, error)

	// UnmarshalState restores fitted state from a blob produced by
	// MarshalState on a generator of the same kind.
	UnmarshalState(data []byte) error
}

// Factory builds an unfitted generator from its config section.
type Factory func(spec config.Generator) (Generator, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a Factory under kind. Later registrations win, which
// lets tests swap in fakes.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the generator selected by spec.Kind.
func New(spec config.Generator) (Generator, error) {
	mu.RLock()
	f, ok := factories[spec.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported generator.kind=%s", spec.Kind)
	}
	return f(spec)
}

// ListKinds returns the registered generator kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SaveBlob serializes g's fitted state. Errors when g does not support
// state persistence or is not fitted.
func SaveBlob(g Generator) ([]byte, error) {
	s, ok := g.(Stater)
	if !ok {
		return nil, fmt.Errorf("generator kind=%s does not persist state", g.Kind())
	}
	return s.MarshalState()
}

// LoadBlob restores g's fitted state from a blob written by SaveBlob on the
// same kind.
func LoadBlob(g Generator, data []byte) error {
	s, ok := g.(Stater)
	if !ok {
		return fmt.Errorf("generator kind=%s does not persist state", g.Kind())
	}
	return s.UnmarshalState(data)
}
