// Package parser turns raw source bytes into column-ordered records.
package parser

import (
	"fmt"
	"io"

	"synthpipe/internal/config"
	"synthpipe/pkg/records"
)

// Parser consumes one raw input stream and produces the ordered column
// names, the parsed rows, and the count of rows soft-dropped due to parse
// errors.
type Parser interface {
	Parse(r io.Reader) (columns []string, rows []records.Record, skipped int, err error)
}

// Builder constructs a Parser from the run's parser options.
type Builder func(opt config.Options) (Parser, error)

var builders = map[string]Builder{}

// Register installs a Builder for the given parser kind.
func Register(kind string, b Builder) {
	builders[kind] = b
}

// New resolves a parser declaration into a Parser.
func New(cfg config.Parser) (Parser, error) {
	b, ok := builders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported parser.kind=%s", cfg.Kind)
	}
	return b(cfg.Options)
}
