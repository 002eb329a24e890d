package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTypeRequired indicates a missing signal type.
	ErrTypeRequired = errors.New("signal type is required")
	// ErrTypeUnknown indicates a signal type outside the catalog.
	ErrTypeUnknown = errors.New("signal type is not in the catalog")
	// ErrRoleForbidden indicates a role that may not emit the signal.
	ErrRoleForbidden = errors.New("role may not emit this signal")
	// ErrPayloadInvalid indicates a malformed or out-of-range payload.
	ErrPayloadInvalid = errors.New("signal payload is invalid")
)

// Validate normalizes a signal and checks it against the catalog.
//
// It returns an error wrapping one of the package errors when the signal is
// malformed. A valid signal may still be rejected by the transition table.
func Validate(sig Signal) (Signal, error) {
	sig.Type = Type(strings.ToLower(strings.TrimSpace(string(sig.Type))))
	if sig.Type == "" {
		return Signal{}, ErrTypeRequired
	}
	def, ok := Lookup(sig.Type)
	if !ok {
		return Signal{}, fmt.Errorf("%w: %s", ErrTypeUnknown, sig.Type)
	}
	sig.Role = Role(strings.ToLower(strings.TrimSpace(string(sig.Role))))
	if !def.Allows(sig.Role) {
		return Signal{}, fmt.Errorf("%w: %s from %q", ErrRoleForbidden, sig.Type, sig.Role)
	}
	sig.ActorID = strings.TrimSpace(sig.ActorID)
	if len(sig.PayloadJSON) == 0 {
		sig.PayloadJSON = []byte("{}")
	}
	if !json.Valid(sig.PayloadJSON) {
		return Signal{}, fmt.Errorf("%w: payload json must be valid", ErrPayloadInvalid)
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(sig.PayloadJSON); err != nil {
			return Signal{}, fmt.Errorf("%w: %s: %v", ErrPayloadInvalid, sig.Type, err)
		}
	}
	return sig, nil
}
