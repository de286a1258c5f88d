// Package action defines the shared vocabulary of recordable and playable
// desktop events: the Recording container, the RecordedAction variants, and
// the screenshot/credential references they carry.
//
// The package is pure data plus two invariant operations:
//
//   - Validate: offset monotonicity and the credential confidentiality
//     invariant (a credential_input action carries only a name/field
//     reference, never a secret value)
//   - Redact: defensive copy that strips anything secret-shaped before a
//     recording crosses an export or logging boundary
//
// Serialization is deterministic JSON so stored recordings diff cleanly and
// golden tests stay stable.
package action
