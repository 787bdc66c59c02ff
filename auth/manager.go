package auth

import (
	"errors"
	"strings"

	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
)

// ErrNoEncryption is the panic value raised when encryption or error
// reporting is used before a strategy was selected.
var ErrNoEncryption = errors.New("auth: no encryption strategy selected")

// Base implements Manager. Backends embed *Base, which is how a resolved
// backend keeps every manager-level operation.
type Base struct {
	strategy encryption.Strategy
	selector *encryption.Selector

	// errors holds the accumulated messages. legacyError is set by
	// SetError callers that assign one message instead of appending.
	errors      []string
	legacyError *string

	readOnly bool

	logger  logger.Logger
	metrics metrics.Registry
}

// NewBase creates a Manager with no strategy selected.
func NewBase(deps Dependencies) *Base {
	settings := loadSettings(deps.Config)

	return &Base{
		selector: encryption.NewSelector(encryption.Dependencies{
			Config:    deps.Config,
			Encrypter: deps.Encrypter,
		}),
		readOnly: settings.ReadOnly,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// SelectEncryption resolves name and makes it the current strategy.
func (b *Base) SelectEncryption(name string) encryption.Strategy {
	b.strategy = b.selector.Select(name)

	b.logger.Debug("Encryption strategy selected",
		logger.Field{Key: "strategy", Value: name})
	b.metrics.Counter(metrics.Options{
		Name: "auth.encryption.selected",
		Tags: map[string]string{"strategy": name},
	}).Inc()

	return b.strategy
}

// Selector returns the Selector used by SelectEncryption, for registering
// additional strategies.
func (b *Base) Selector() *encryption.Selector {
	return b.selector
}

// Encryption returns the current strategy.
func (b *Base) Encryption() encryption.Strategy {
	return b.strategy
}

// Encrypt delegates to the current strategy.
func (b *Base) Encrypt(cleartext string) (string, error) {
	return b.mustStrategy().Encrypt(cleartext)
}

// Compare delegates to the current strategy.
func (b *Base) Compare(encrypted, cleartext string) (bool, error) {
	return b.mustStrategy().Compare(encrypted, cleartext)
}

// AddError appends msg to the error list.
func (b *Base) AddError(msg string) {
	b.normalizeErrors()
	b.errors = append(b.errors, msg)
}

// SetError replaces the error list with msg.
func (b *Base) SetError(msg string) {
	b.errors = nil
	b.legacyError = &msg
}

// Errors returns a copy of the error list.
func (b *Base) Errors() []string {
	b.normalizeErrors()
	return append([]string(nil), b.errors...)
}

// ErrorReport joins the error list, one message per line, then appends the
// current strategy's own report.
func (b *Base) ErrorReport() string {
	strategy := b.mustStrategy()
	b.normalizeErrors()

	var sb strings.Builder
	for _, msg := range b.errors {
		sb.WriteString(msg)
		sb.WriteByte('\n')
	}
	sb.WriteString(strategy.ErrorReport())
	return sb.String()
}

// ReadOnly reports the read-only flag.
func (b *Base) ReadOnly() bool {
	return b.readOnly
}

// SetReadOnly sets the read-only flag and returns the previous value, so a
// caller can restore it later.
func (b *Base) SetReadOnly(readOnly bool) bool {
	previous := b.readOnly
	b.readOnly = readOnly
	return previous
}

// Fail records err on the error list and returns it unchanged. Backends use
// it as `return b.Fail(err)`.
func (b *Base) Fail(err error) error {
	if err != nil {
		b.AddError(err.Error())
	}
	return err
}

// Logger returns the logger the manager was built with.
func (b *Base) Logger() logger.Logger {
	return b.logger
}

// Metrics returns the metrics registry the manager was built with.
func (b *Base) Metrics() metrics.Registry {
	return b.metrics
}

// normalizeErrors folds a message assigned through SetError into the list.
func (b *Base) normalizeErrors() {
	if b.legacyError != nil {
		b.errors = []string{*b.legacyError}
		b.legacyError = nil
	}
}

func (b *Base) mustStrategy() encryption.Strategy {
	if b.strategy == nil {
		panic(ErrNoEncryption)
	}
	return b.strategy
}

// Ensure Base implements Manager
var _ Manager = (*Base)(nil)
