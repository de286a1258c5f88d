package action

import (
	"errors"
	"fmt"
)

// ValidationError represents a single invariant violation with the field
// path that triggered it.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a recording against the model invariants.
// Returns all violations (not fail-fast).
//
// Checked invariants:
//   - offset_ms is non-decreasing across the action sequence
//   - action types are known, IDs present and unique
//   - credential_input actions carry only a {name, field} reference with a
//     known field, and never a secret-shaped payload (Text or Key set)
//   - no non-credential action claims a credential reference
func Validate(r *Recording) []ValidationError {
	var errs []ValidationError

	if r.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "recording id is required"})
	}
	if r.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "recording name is required"})
	}

	seen := make(map[string]bool, len(r.Actions))
	var prevOffset int64
	for i, a := range r.Actions {
		field := func(name string) string { return fmt.Sprintf("actions[%d].%s", i, name) }

		if !ValidTypes[a.Type] {
			errs = append(errs, ValidationError{
				Field:   field("type"),
				Message: fmt.Sprintf("unknown action type %q", a.Type),
			})
		}
		if a.ID == "" {
			errs = append(errs, ValidationError{Field: field("id"), Message: "action id is required"})
		} else if seen[a.ID] {
			errs = append(errs, ValidationError{
				Field:   field("id"),
				Message: fmt.Sprintf("duplicate action id %q", a.ID),
			})
		}
		seen[a.ID] = true

		if a.OffsetMS < prevOffset {
			errs = append(errs, ValidationError{
				Field:   field("offset_ms"),
				Message: fmt.Sprintf("offset %d decreases below previous offset %d", a.OffsetMS, prevOffset),
			})
		}
		if a.OffsetMS > prevOffset {
			prevOffset = a.OffsetMS
		}

		switch a.Type {
		case TypeCredentialInput:
			errs = append(errs, validateCredential(i, &a)...)
		default:
			if a.Credential != nil {
				errs = append(errs, ValidationError{
					Field:   field("credential"),
					Message: fmt.Sprintf("credential reference on %s action", a.Type),
				})
			}
		}
	}

	return errs
}

// validateCredential enforces the confidentiality invariant on a single
// credential_input action. A secret-shaped payload is any Text or Key value:
// the only legal contents are the name/field reference.
func validateCredential(i int, a *RecordedAction) []ValidationError {
	field := func(name string) string { return fmt.Sprintf("actions[%d].%s", i, name) }
	var errs []ValidationError

	if a.Credential == nil {
		errs = append(errs, ValidationError{
			Field:   field("credential"),
			Message: "credential_input requires a credential reference",
		})
	} else {
		if a.Credential.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field("credential.credential_name"),
				Message: "credential name is required",
			})
		}
		if a.Credential.Field != CredentialFieldUsername && a.Credential.Field != CredentialFieldPassword {
			errs = append(errs, ValidationError{
				Field:   field("credential.credential_field"),
				Message: fmt.Sprintf("field must be %q or %q, got %q", CredentialFieldUsername, CredentialFieldPassword, a.Credential.Field),
			})
		}
	}

	if a.Text != "" {
		errs = append(errs, ValidationError{
			Field:   field("text"),
			Message: "credential_input must not carry a text payload",
		})
	}
	if a.Key != "" {
		errs = append(errs, ValidationError{
			Field:   field("key"),
			Message: "credential_input must not carry a key payload",
		})
	}

	return errs
}

// Check wraps Validate for callers that need a single error value.
// Returns nil when the recording satisfies every invariant.
func Check(r *Recording) error {
	errs := Validate(r)
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return fmt.Errorf("invalid recording %q: %w", r.ID, errors.Join(joined...))
}
