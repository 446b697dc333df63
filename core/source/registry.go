package source

import (
	"errors"
	"fmt"

	"github.com/kilianp07/energyledger/core/factory"
)

// ErrUnknownSource is returned for unregistered source types.
var ErrUnknownSource = errors.New("source: unknown type")

var registry = factory.NewRegistry[Source]()

// Register adds a source factory identified by name.
func Register(name string, f factory.Factory[Source]) error {
	return registry.Register(name, f)
}

// New builds the configured source.
func New(cfg factory.ModuleConfig) (Source, error) {
	src, err := registry.Create(cfg)
	if errors.Is(err, factory.ErrUnknownType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Type, err)
	}
	return src, nil
}

// Types lists the registered source types.
func Types() []string { return registry.Names() }
