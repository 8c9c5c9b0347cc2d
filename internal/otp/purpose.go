package otp

import "github.com/stellar-social/stellar/internal/apperr"

// Purpose scopes a challenge to one flow. A code issued for one purpose never
// satisfies another.
type Purpose string

const (
	EmailVerification  Purpose = "email_verification"
	DeviceVerification Purpose = "device_verification"
)

// ParsePurpose accepts only the known purposes.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case EmailVerification, DeviceVerification:
		return p, nil
	default:
		return "", apperr.Validation("Invalid OTP type")
	}
}

func (p Purpose) String() string {
	return string(p)
}
