package domain

import "time"

// MFAConfig is the per-user TOTP configuration. A row with Enabled=false is a
// pending setup; disabling MFA deletes the row.
type MFAConfig struct {
	UserID    string
	Secret    string // base32, no padding
	Enabled   bool
	EnabledAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MFAState is derived from the presence and flag of an MFAConfig.
type MFAState int

const (
	MFAStateNone MFAState = iota
	MFAStatePending
	MFAStateEnabled
)

func (s MFAState) String() string {
	switch s {
	case MFAStatePending:
		return "pending"
	case MFAStateEnabled:
		return "enabled"
	default:
		return "none"
	}
}

// State reports the enrollment state represented by c. A nil config means the
// user never started setup or has disabled MFA.
func (c *MFAConfig) State() MFAState {
	switch {
	case c == nil:
		return MFAStateNone
	case c.Enabled:
		return MFAStateEnabled
	default:
		return MFAStatePending
	}
}

// MFASetup is what a setup call hands back to the user's authenticator app.
type MFASetup struct {
	Secret          string // manual entry key
	ProvisioningURI string // otpauth://totp/...
	QRCodePNG       []byte
}

type MFAStatus struct {
	Enabled   bool
	EnabledAt *time.Time
}
