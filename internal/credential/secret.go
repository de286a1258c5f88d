package credential

import "log/slog"

// Redacted is the placeholder emitted anywhere a Secret would otherwise
// appear in formatted output.
const Redacted = "[REDACTED]"

// Secret holds credential material in a mutable buffer so it can be
// zeroed after use. The value never travels through fmt or slog: both
// render the Redacted placeholder regardless of verb or handler.
//
// Callers that inject a Secret must Clear it immediately after the
// injection call returns, on success and failure alike.
type Secret struct {
	buf []byte
}

// NewSecret copies value into a fresh Secret. The caller retains
// ownership of value; mutating it later does not affect the Secret.
func NewSecret(value []byte) *Secret {
	buf := make([]byte, len(value))
	copy(buf, value)
	return &Secret{buf: buf}
}

// SecretFromString copies s into a Secret. The source string itself is
// immutable and cannot be zeroed; prefer NewSecret with a byte slice
// when the material originates outside Go string handling.
func SecretFromString(s string) *Secret {
	return NewSecret([]byte(s))
}

// Bytes exposes the underlying buffer for delivery to an injection
// backend. The slice aliases the Secret's storage: it becomes all-zero
// once Clear is called, so callers must not retain it.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Len reports the secret length in bytes.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// IsCleared reports whether the secret has been zeroed or was empty.
func (s *Secret) IsCleared() bool {
	if s == nil {
		return true
	}
	for _, b := range s.buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// Clear overwrites the buffer with zeros. Safe to call more than once
// and on a nil receiver.
func (s *Secret) Clear() {
	if s == nil {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// String implements fmt.Stringer, always returning the placeholder.
func (s *Secret) String() string {
	return Redacted
}

// LogValue implements slog.LogValuer so a Secret passed to a logger by
// mistake still comes out redacted.
func (s *Secret) LogValue() slog.Value {
	return slog.StringValue(Redacted)
}
