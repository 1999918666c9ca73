package domain

import (
	"strings"
	"time"
)

// OTPRecord is the single live one-time code for an address.
// Issuing again for the same address replaces the record.
type OTPRecord struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether now is past the record's expiry.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// NormalizeAddress lowercases and trims an OTP address. Records are keyed by the result.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
