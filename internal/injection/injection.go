// Package injection hands the finished description to the desktop, either
// on the clipboard or typed into the focused field.
package injection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var ErrEmptyText = errors.New("cannot inject empty text")

// Backend is one way of delivering text.
type Backend interface {
	Name() string
	Available() error
	Inject(ctx context.Context, text string, timeout time.Duration) error
}

type Config struct {
	Backends []string // tried in order: "clipboard", "wtype"
	Timeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backends: []string{"clipboard"},
		Timeout:  3 * time.Second,
	}
}

// Injector delivers text with the first backend that works and returns its
// name.
type Injector interface {
	Inject(ctx context.Context, text string) (string, error)
}

type injector struct {
	config   Config
	backends []Backend
}

func knownBackends() map[string]Backend {
	return map[string]Backend{
		"clipboard": NewClipboardBackend(),
		"wtype":     NewWtypeBackend(),
	}
}

// NewInjector resolves the configured backend names.
func NewInjector(config Config) (Injector, error) {
	return newInjector(config, knownBackends())
}

func newInjector(config Config, available map[string]Backend) (*injector, error) {
	if len(config.Backends) == 0 {
		return nil, fmt.Errorf("no injection backends configured")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	backends := make([]Backend, 0, len(config.Backends))
	for _, name := range config.Backends {
		b, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unsupported injection backend: %s", name)
		}
		backends = append(backends, b)
	}
	return &injector{config: config, backends: backends}, nil
}

func (i *injector) Inject(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	var errs []error
	for _, b := range i.backends {
		if err := b.Available(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		if err := b.Inject(ctx, text, i.config.Timeout); err != nil {
			log.Printf("Injection: %s failed: %v", b.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		return b.Name(), nil
	}
	return "", fmt.Errorf("all injection backends failed: %w", errors.Join(errs...))
}
