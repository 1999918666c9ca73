package domain

import "time"

// Profile is the per-account profile/balance record, keyed by email.
type Profile struct {
	Email        string        `json:"email" dynamodbav:"email"`
	FullName     string        `json:"fullName" dynamodbav:"full_name"`
	Balance      float64       `json:"balance" dynamodbav:"balance"`
	Currency     string        `json:"currency,omitempty" dynamodbav:"currency"`
	Transactions []Transaction `json:"transactions,omitempty" dynamodbav:"transactions"`
	LastUpdated  time.Time     `json:"lastUpdated" dynamodbav:"last_updated"`
}

// ProfilePatch is a shallow, whole-field overwrite. Nil fields are left untouched.
type ProfilePatch struct {
	FullName     *string       `json:"fullName,omitempty"`
	Balance      *float64      `json:"balance,omitempty"`
	Currency     *string       `json:"currency,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Apply merges the patch into p and returns the result. The transaction list,
// when present, replaces the existing list as a whole.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.FullName != nil {
		p.FullName = *pp.FullName
	}
	if pp.Balance != nil {
		p.Balance = *pp.Balance
	}
	if pp.Currency != nil {
		p.Currency = *pp.Currency
	}
	if pp.Transactions != nil {
		p.Transactions = append([]Transaction(nil), pp.Transactions...)
	}
	return p
}

// BalanceOnly reports whether the patch touches nothing but the balance.
func (pp ProfilePatch) BalanceOnly() bool {
	return pp.Balance != nil && pp.FullName == nil && pp.Currency == nil && pp.Transactions == nil
}

// PatchFromProfile builds a patch that overwrites every field with p's values.
func PatchFromProfile(p Profile) ProfilePatch {
	txs := p.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	return ProfilePatch{
		FullName:     &p.FullName,
		Balance:      &p.Balance,
		Currency:     &p.Currency,
		Transactions: txs,
	}
}
