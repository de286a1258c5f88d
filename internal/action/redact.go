package action

// Redact returns a deep copy of the recording with anything secret-shaped
// removed. On a recording produced by a compliant recorder this is a no-op
// copy: credential actions never contain secrets in the first place. The
// pass exists as defense in depth on export and logging paths.
func Redact(r *Recording) *Recording {
	out := r.Clone()
	for i := range out.Actions {
		a := &out.Actions[i]
		if a.Type != TypeCredentialInput {
			continue
		}
		// The reference is the only legal content of a credential action.
		a.Text = ""
		a.Key = ""
	}
	return out
}
