// Package integration keeps the table of gateway adapters a process can
// instantiate. Adapters register a factory under a stable identifier from
// their init function, the same way database/sql drivers do; configuration
// then refers to adapters by that identifier.
package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/restpay/payments/internal/domain"
	"go.uber.org/zap"
)

var ErrNotRegistered = errors.New("not registered")

// Options is handed to every factory. Keys are opaque and must not be
// logged.
type Options struct {
	StripeAPIKey        string
	StripeWebhookSecret string
	PayPalAPIKey        string
	Logger              *zap.Logger
}

// LoggerOrNop returns the configured logger or a no-op one.
func (o Options) LoggerOrNop() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

type Factory func(opts Options) (domain.Integration, error)

// ErrorHandler receives gateway errors the dispatcher did not expect.
type ErrorHandler func(ctx context.Context, integration string, err error)

type ErrorHandlerFactory func(opts Options) ErrorHandler

type Registry struct {
	mu            sync.RWMutex
	factories     map[string]Factory
	errorHandlers map[string]ErrorHandlerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		factories:     make(map[string]Factory),
		errorHandlers: make(map[string]ErrorHandlerFactory),
	}
	r.RegisterErrorHandler("log", logErrorHandler)
	return r
}

// Register makes a factory available under name. It panics on an empty
// name, a nil factory or a duplicate, since all three are programming
// errors caught at init time.
func (r *Registry) Register(name string, factory Factory) {
	if name == "" || factory == nil {
		panic("integration: Register called with empty name or nil factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("integration: Register called twice for %q", name))
	}
	r.factories[name] = factory
}

func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("integration %q %w", name, ErrNotRegistered)
	}
	return factory, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) RegisterErrorHandler(name string, factory ErrorHandlerFactory) {
	if name == "" || factory == nil {
		panic("integration: RegisterErrorHandler called with empty name or nil factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorHandlers[name] = factory
}

func (r *Registry) LookupErrorHandler(name string) (ErrorHandlerFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.errorHandlers[name]
	if !ok {
		return nil, fmt.Errorf("error handler %q %w", name, ErrNotRegistered)
	}
	return factory, nil
}

// Default is the registry adapters add themselves to.
var Default = NewRegistry()

func Register(name string, factory Factory) {
	Default.Register(name, factory)
}

func RegisterErrorHandler(name string, factory ErrorHandlerFactory) {
	Default.RegisterErrorHandler(name, factory)
}

func logErrorHandler(opts Options) ErrorHandler {
	logger := opts.LoggerOrNop()
	return func(ctx context.Context, integration string, err error) {
		logger.Error("unexpected integration error",
			zap.String("integration", integration),
			zap.Error(err),
		)
	}
}
