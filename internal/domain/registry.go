package domain

import "fmt"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBlocked   = "blocked"
)

// RegistryUser is one account descriptor in the user registry.
// Credential is stored as given; this system does not hash credentials.
type RegistryUser struct {
	ID         string  `json:"id" dynamodbav:"id" validate:"required"`
	Email      string  `json:"email" dynamodbav:"email" validate:"required,email"`
	Name       string  `json:"name" dynamodbav:"name"`
	Status     string  `json:"status" dynamodbav:"status"`
	Role       string  `json:"role,omitempty" dynamodbav:"role"`
	Balance    float64 `json:"balance" dynamodbav:"balance"`
	KYCStatus  string  `json:"kycStatus" dynamodbav:"kyc_status"`
	Credential string  `json:"credential,omitempty" dynamodbav:"credential"`
}

// CanSignIn reports whether the account status allows a login.
func (u *RegistryUser) CanSignIn() bool {
	return u.Status != StatusSuspended && u.Status != StatusBlocked
}

// CheckUniqueIDs returns an ErrValidation-wrapped error naming the first duplicated id.
func CheckUniqueIDs(users []RegistryUser) error {
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, ok := seen[u.ID]; ok {
			return fmt.Errorf("duplicate registry id %q: %w", u.ID, ErrValidation)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}
