package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service namespace under which secrets live in
// the OS keyring.
const KeyringService = "tapedeck"

// KeyringStore backs Store with the operating system keyring (Keychain
// on macOS, Secret Service on Linux, Credential Manager on Windows).
// Each (name, field) pair maps to one keyring entry.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store rooted at KeyringService. An empty
// service falls back to the default namespace.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = KeyringService
	}
	return &KeyringStore{service: service}
}

func (k *KeyringStore) user(name, field string) string {
	return name + "/" + field
}

// Get implements Store.
func (k *KeyringStore) Get(ctx context.Context, name, field string) (*Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := keyring.Get(k.service, k.user(name, field))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return SecretFromString(val), nil
}

// Set implements Store.
func (k *KeyringStore) Set(ctx context.Context, name, field string, value *Secret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidField(field) {
		return fmt.Errorf("unknown credential field %q", field)
	}
	if err := keyring.Set(k.service, k.user(name, field), string(value.Bytes())); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements Store. It removes every known field for name.
func (k *KeyringStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, field := range []string{FieldUsername, FieldPassword} {
		err := keyring.Delete(k.service, k.user(name, field))
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
