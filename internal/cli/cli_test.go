package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedRecording(t *testing.T, dbPath string) *action.Recording {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &action.Recording{
		ID:        "rec-1",
		Name:      "login flow",
		CreatedAt: created,
		UpdatedAt: created,
		Actions: []action.RecordedAction{
			{ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 10, Y: 20, Button: "left"},
			{ID: "a2", Type: action.TypeCredentialInput, OffsetMS: 500,
				Credential: &action.CredentialRef{Name: "Portal", Field: action.CredentialFieldPassword}},
		},
		VerifyScreenshots: true,
	}
	require.NoError(t, st.SaveRecording(context.Background(), rec))
	return rec
}

func TestListCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tapedeck.db")
	seedRecording(t, dbPath)

	out, err := execute(t, "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "login flow")
}

func TestListCommand_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tapedeck.db")

	out, err := execute(t, "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No recordings.")
}

func TestRunsCommand_NoHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tapedeck.db")
	seedRecording(t, dbPath)

	out, err := execute(t, "runs", "login flow", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs")
}

func TestRunsCommand_UnknownRecording(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tapedeck.db")

	_, err := execute(t, "runs", "nope", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// Export output is redacted, parseable JSON that validates cleanly.
func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tapedeck.db")
	seedRecording(t, dbPath)

	outFile := filepath.Join(dir, "export.json")
	out, err := execute(t, "export", "rec-1", "--db", dbPath, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	rec, err := action.Unmarshal(data)
	require.NoError(t, err)
	require.NoError(t, action.Check(rec))
	assert.Equal(t, "login flow", rec.Name)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tapedeck.db")
	rec := seedRecording(t, dbPath)

	data, err := action.Marshal(rec)
	require.NoError(t, err)
	path := filepath.Join(dir, "rec.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, execErr := execute(t, "validate", path)
	require.NoError(t, execErr)
	assert.Contains(t, out, "valid")
}

func TestValidateCommand_InvalidFile(t *testing.T) {
	dir := t.TempDir()

	// Offsets out of order make the file structurally invalid.
	bad := `{"id":"r","name":"r","actions":[
		{"id":"a1","type":"mouse_click","offset_ms":100,"x":1,"y":1,"button":"left"},
		{"id":"a2","type":"key_press","offset_ms":50,"key":"enter"}],
		"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z",
		"capture_screenshots":false,"verify_screenshots":false}`
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "offset")
}

func TestRemoveCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tapedeck.db")
	seedRecording(t, dbPath)

	out, err := execute(t, "rm", "login flow", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	out, err = execute(t, "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No recordings.")
}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("10,20,300,400")
	require.NoError(t, err)
	assert.Equal(t, 10, r.X)
	assert.Equal(t, 400, r.H)

	_, err = parseRegion("10,20")
	require.Error(t, err)
}
