package token

import "fmt"

// Outcome classifies a token presented by a holder.
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeExpired  Outcome = "expired"
	OutcomeConsumed Outcome = "consumed"
)

func (o Outcome) Valid() bool {
	return o == OutcomeValid
}

// RejectedError is returned by mutations that need a valid token.
type RejectedError struct {
	Outcome Outcome
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("token_%s", e.Outcome)
}

// Reject wraps a non-valid outcome.
func Reject(outcome Outcome) error {
	return &RejectedError{Outcome: outcome}
}
