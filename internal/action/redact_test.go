package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedact_CompliantRecordingIsNoOp verifies redaction removes nothing from
// a recorder-produced recording: round-tripping through Redact is identity.
func TestRedact_CompliantRecordingIsNoOp(t *testing.T) {
	rec := validRecording()

	got := Redact(rec)
	assert.Equal(t, rec, got)
}

// TestRedact_StripsSecretShapedPayload verifies a non-compliant credential
// action loses its text/key payload but keeps the reference.
func TestRedact_StripsSecretShapedPayload(t *testing.T) {
	rec := validRecording()
	rec.Actions[2].Text = "S3cr3t!"
	rec.Actions[2].Key = "s"

	got := Redact(rec)
	require.Equal(t, TypeCredentialInput, got.Actions[2].Type)
	assert.Empty(t, got.Actions[2].Text)
	assert.Empty(t, got.Actions[2].Key)
	assert.Equal(t, "Portal", got.Actions[2].Credential.Name)

	// The input recording is not mutated.
	assert.Equal(t, "S3cr3t!", rec.Actions[2].Text)
}

// TestRedact_ReturnsIndependentCopy verifies mutating the redacted copy does
// not touch the original action stream.
func TestRedact_ReturnsIndependentCopy(t *testing.T) {
	rec := validRecording()

	got := Redact(rec)
	got.Actions[1].X = 9999
	got.Actions[2].Credential.Name = "Other"

	assert.Equal(t, 40, rec.Actions[1].X)
	assert.Equal(t, "Portal", rec.Actions[2].Credential.Name)
}
