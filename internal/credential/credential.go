package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates no secret is stored under the requested
	// name and field.
	ErrNotFound = errors.New("credential not found")

	// ErrUnavailable indicates the backing store cannot be reached,
	// for example a locked or missing OS keyring.
	ErrUnavailable = errors.New("credential store unavailable")
)

// Fields a credential entry may carry.
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// ValidField reports whether field names a supported credential field.
func ValidField(field string) bool {
	return field == FieldUsername || field == FieldPassword
}

// Store is the capability a Resolver needs from a secret backend.
// Production uses the OS keyring; tests use MemStore.
type Store interface {
	// Get returns the secret for (name, field), or ErrNotFound /
	// ErrUnavailable.
	Get(ctx context.Context, name, field string) (*Secret, error)

	// Set stores or replaces the secret for (name, field).
	Set(ctx context.Context, name, field string, value *Secret) error

	// Delete removes all fields stored under name. Deleting a name
	// with no entries is not an error.
	Delete(ctx context.Context, name string) error
}

// Resolver validates lookups and fetches secrets from a Store. It logs
// resolution attempts by name and field only; secret values never reach
// the logger.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver wraps store. A nil logger disables resolution logging.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve fetches the secret for (name, field). The caller owns the
// returned Secret and must Clear it immediately after use.
func (r *Resolver) Resolve(ctx context.Context, name, field string) (*Secret, error) {
	if name == "" {
		return nil, fmt.Errorf("credential name is required")
	}
	if !ValidField(field) {
		return nil, fmt.Errorf("unknown credential field %q", field)
	}

	sec, err := r.store.Get(ctx, name, field)
	if err != nil {
		r.logger.Warn("credential resolution failed",
			"credential", name, "field", field, "error", err)
		return nil, fmt.Errorf("resolve credential %s/%s: %w", name, field, err)
	}

	r.logger.Debug("credential resolved", "credential", name, "field", field)
	return sec, nil
}
