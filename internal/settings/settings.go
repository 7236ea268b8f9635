// Package settings resolves the payment subsystem's configuration.
//
// A deployment supplies a mapping (normally the "payments" key of the
// config file). Values it omits fall back to compiled-in defaults, and
// lookups of names outside the recognized set fail with ErrUnknownSetting
// so a typo in deployment configuration cannot go unnoticed.
//
// DEFAULT_INTEGRATION_CLASSES holds integration identifiers rather than
// plain data. Those are turned into live domain.Integration values through
// an integration.Registry on first access, and the result is kept for the
// lifetime of the Settings value. Nothing is ever re-resolved or reloaded.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"github.com/restpay/payments/internal/metrics"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Recognized setting names.
const (
	DefaultIntegrationClasses = "DEFAULT_INTEGRATION_CLASSES"
	StripeAPIKey              = "STRIPE_API_KEY"
	StripeWebhookSecret       = "STRIPE_WEBHOOK_SECRET"
	PayPalAPIKey              = "PAYPAL_API_KEY"
	IntegrationsAutoFallback  = "INTEGRATIONS_AUTO_FALLBACK"
	RegisterModelAdmins       = "REGISTER_MODEL_ADMINS"
	UnexpectedErrorsHandler   = "UNEXPECTED_ERRORS_HANDLER"
)

var ErrUnknownSetting = errors.New("unknown setting")

var defaults = map[string]any{
	DefaultIntegrationClasses: []string{},
	StripeAPIKey:              nil,
	StripeWebhookSecret:       nil,
	PayPalAPIKey:              nil,
	IntegrationsAutoFallback:  true,
	RegisterModelAdmins:       false,
	UnexpectedErrorsHandler:   nil,
}

// importSettings hold integration identifiers resolved through the registry.
var importSettings = map[string]bool{
	DefaultIntegrationClasses: true,
}

// secretSettings must never be logged or echoed.
var secretSettings = map[string]bool{
	StripeAPIKey:        true,
	StripeWebhookSecret: true,
	PayPalAPIKey:        true,
}

// IntegrationLoadError reports an identifier that could not be turned into
// an integration, keeping the configured value and the cause.
type IntegrationLoadError struct {
	Setting string
	Path    string
	Err     error
}

func (e *IntegrationLoadError) Error() string {
	return fmt.Sprintf("could not load %q for setting %s: %v", e.Path, e.Setting, e.Err)
}

func (e *IntegrationLoadError) Unwrap() error { return e.Err }

type Settings struct {
	user     map[string]any
	registry *integration.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	resolved map[string]any
}

type Option func(*Settings)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Settings) { s.logger = logger }
}

// New builds a Settings over the deployment mapping. Extra keys in user are
// kept but can never be read through Get. A nil registry means
// integration.Default.
func New(user map[string]any, registry *integration.Registry, opts ...Option) *Settings {
	if registry == nil {
		registry = integration.Default
	}

	s := &Settings{
		user:     make(map[string]any, len(user)),
		registry: registry,
		logger:   zap.NewNop(),
		resolved: make(map[string]any),
	}
	for k, v := range user {
		s.user[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Names returns the recognized setting names in sorted order.
func Names() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsSecret(name string) bool {
	return secretSettings[name]
}

// Get returns the effective value of a recognized setting. Import settings
// come back resolved: nil stays nil, a single identifier yields one
// domain.Integration and a list yields []domain.Integration in the same
// order. The first successful resolution is cached and returned to every
// later caller; failures are not cached.
func (s *Settings) Get(name string) (any, error) {
	def, known := defaults[name]
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}

	raw, ok := s.user[name]
	if !ok {
		raw = def
	}
	if !importSettings[name] {
		return raw, nil
	}

	s.mu.RLock()
	cached, ok := s.resolved[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	value, err := s.performImport(name, raw)
	if err != nil {
		metrics.IntegrationLoadErrors.Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.resolved[name]; ok {
		return cached, nil
	}
	s.resolved[name] = value

	s.logger.Debug("setting resolved", zap.String("setting", name))
	return value, nil
}

func (s *Settings) performImport(name string, raw any) (any, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return s.importFromString(name, value)
	case []string:
		out := make([]domain.Integration, 0, len(value))
		for _, path := range value {
			resolved, err := s.importFromString(name, path)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	case []any:
		out := make([]domain.Integration, 0, len(value))
		for _, item := range value {
			path, ok := item.(string)
			if !ok {
				return nil, &IntegrationLoadError{
					Setting: name,
					Path:    fmt.Sprint(item),
					Err:     fmt.Errorf("expected identifier string, got %T", item),
				}
			}
			resolved, err := s.importFromString(name, path)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	default:
		return nil, &IntegrationLoadError{
			Setting: name,
			Path:    fmt.Sprint(value),
			Err:     fmt.Errorf("unsupported value type %T", value),
		}
	}
}

func (s *Settings) importFromString(name, path string) (domain.Integration, error) {
	factory, err := s.registry.Lookup(path)
	if err != nil {
		return nil, &IntegrationLoadError{Setting: name, Path: path, Err: err}
	}

	resolved, err := factory(s.integrationOptions())
	if err != nil {
		return nil, &IntegrationLoadError{Setting: name, Path: path, Err: err}
	}
	return resolved, nil
}

func (s *Settings) integrationOptions() integration.Options {
	return integration.Options{
		StripeAPIKey:        s.StripeAPIKey(),
		StripeWebhookSecret: s.StripeWebhookSecret(),
		PayPalAPIKey:        s.PayPalAPIKey(),
		Logger:              s.logger,
	}
}

// Integrations returns DEFAULT_INTEGRATION_CLASSES as an ordered list.
func (s *Settings) Integrations() ([]domain.Integration, error) {
	value, err := s.Get(DefaultIntegrationClasses)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case domain.Integration:
		return []domain.Integration{v}, nil
	case []domain.Integration:
		return v, nil
	}
	return nil, fmt.Errorf("unexpected %s value %T", DefaultIntegrationClasses, value)
}

// AutoFallback reports INTEGRATIONS_AUTO_FALLBACK. Values that do not
// coerce to a bool fall back to the default; Check reports them.
func (s *Settings) AutoFallback() bool {
	return s.boolSetting(IntegrationsAutoFallback)
}

func (s *Settings) RegisterModelAdmins() bool {
	return s.boolSetting(RegisterModelAdmins)
}

func (s *Settings) StripeAPIKey() string {
	return s.stringSetting(StripeAPIKey)
}

func (s *Settings) StripeWebhookSecret() string {
	return s.stringSetting(StripeWebhookSecret)
}

func (s *Settings) PayPalAPIKey() string {
	return s.stringSetting(PayPalAPIKey)
}

// UnexpectedErrorsHandler returns the configured handler, or nil when the
// setting is unset.
func (s *Settings) UnexpectedErrorsHandler() (integration.ErrorHandler, error) {
	name := s.stringSetting(UnexpectedErrorsHandler)
	if name == "" {
		return nil, nil
	}

	factory, err := s.registry.LookupErrorHandler(name)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", UnexpectedErrorsHandler, err)
	}
	return factory(s.integrationOptions()), nil
}

// Check resolves every import setting and validates the typed ones so a
// broken deployment fails at startup rather than mid-request.
func (s *Settings) Check() error {
	var errs []error

	for _, name := range Names() {
		if importSettings[name] {
			if _, err := s.Get(name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, name := range []string{IntegrationsAutoFallback, RegisterModelAdmins} {
		raw, _ := s.Get(name)
		if _, err := cast.ToBoolE(raw); err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", name, err))
		}
	}

	if _, err := s.UnexpectedErrorsHandler(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Settings) boolSetting(name string) bool {
	raw, _ := s.Get(name)
	value, err := cast.ToBoolE(raw)
	if err != nil {
		return defaults[name].(bool)
	}
	return value
}

func (s *Settings) stringSetting(name string) string {
	raw, _ := s.Get(name)
	if raw == nil {
		return ""
	}
	return cast.ToString(raw)
}
