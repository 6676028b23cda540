package domain

import "time"

// Outcome is the terminal state of one successful authentication request.
// Rejections are reported as errors, not outcomes.
type Outcome int

const (
	OutcomeIssued Outcome = iota
	OutcomeMFARequired
)

func (o Outcome) String() string {
	if o == OutcomeMFARequired {
		return "mfa_required"
	}
	return "issued"
}

// AuthResult is returned by every orchestrator entry point that may log a
// user in. Tokens are empty when Outcome is OutcomeMFARequired.
type AuthResult struct {
	Outcome              Outcome
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string
	User                 UserSummary
}

func (r *AuthResult) RequiresMFA() bool { return r.Outcome == OutcomeMFARequired }
