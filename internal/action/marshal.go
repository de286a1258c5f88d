package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal serializes a recording to indented JSON with HTML escaping
// disabled. Field order is fixed by the struct definitions, so output is
// deterministic and diffs cleanly in version control and golden files.
func Marshal(r *Recording) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("marshal recording %q: %w", r.ID, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a serialized recording and validates it.
// Unknown fields are rejected so a recording file that drifted from the
// model fails loudly instead of silently dropping data.
func Unmarshal(data []byte) (*Recording, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Recording
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("unmarshal recording: %w", err)
	}
	if err := Check(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
