package credential

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_ClearZeroizes(t *testing.T) {
	sec := SecretFromString("hunter2")
	buf := sec.Bytes()
	require.Equal(t, []byte("hunter2"), buf)
	assert.False(t, sec.IsCleared())

	sec.Clear()

	assert.True(t, sec.IsCleared())
	// The alias observed before Clear is zeroed too.
	assert.Equal(t, make([]byte, 7), buf)

	// Clearing twice is harmless.
	sec.Clear()
	assert.True(t, sec.IsCleared())
}

func TestSecret_CopyIsIndependent(t *testing.T) {
	src := []byte("top-secret")
	sec := NewSecret(src)
	src[0] = 'X'
	assert.Equal(t, []byte("top-secret"), sec.Bytes())
}

func TestSecret_FormattingIsRedacted(t *testing.T) {
	sec := SecretFromString("hunter2")

	for _, out := range []string{
		sec.String(),
		fmt.Sprintf("%v", sec),
		fmt.Sprintf("%s", sec),
		fmt.Sprint(sec),
	} {
		assert.Equal(t, Redacted, out)
		assert.NotContains(t, out, "hunter2")
	}
}

func TestSecret_LogOutputIsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sec := SecretFromString("hunter2")
	logger.Info("injecting", "value", sec)

	assert.Contains(t, buf.String(), Redacted)
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestSecret_NilReceiver(t *testing.T) {
	var sec *Secret
	assert.True(t, sec.IsCleared())
	assert.Zero(t, sec.Len())
	assert.Nil(t, sec.Bytes())
	sec.Clear()
}
