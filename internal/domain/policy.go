package domain

import "time"

// GlobalPolicy gates transfers for every user. DailyLimit is advisory only.
type GlobalPolicy struct {
	TransfersEnabled bool      `json:"transfersEnabled" dynamodbav:"transfers_enabled"`
	SuccessRate      int       `json:"successRate" dynamodbav:"success_rate"`
	DailyLimit       float64   `json:"dailyLimit" dynamodbav:"daily_limit"`
	LastUpdated      time.Time `json:"lastUpdated" dynamodbav:"last_updated"`
}

type GlobalPolicyPatch struct {
	TransfersEnabled *bool    `json:"transfersEnabled,omitempty"`
	SuccessRate      *int     `json:"successRate,omitempty" validate:"omitempty,min=0,max=100"`
	DailyLimit       *float64 `json:"dailyLimit,omitempty" validate:"omitempty,gte=0"`
}

func (gp GlobalPolicyPatch) Apply(p GlobalPolicy) GlobalPolicy {
	if gp.TransfersEnabled != nil {
		p.TransfersEnabled = *gp.TransfersEnabled
	}
	if gp.SuccessRate != nil {
		p.SuccessRate = *gp.SuccessRate
	}
	if gp.DailyLimit != nil {
		p.DailyLimit = *gp.DailyLimit
	}
	return p
}

// DefaultGlobalPolicy is what a device seeds before it has ever synced.
func DefaultGlobalPolicy() GlobalPolicy {
	return GlobalPolicy{TransfersEnabled: true, SuccessRate: 100, DailyLimit: 10000}
}

// UserPolicy is the per-user transfer policy, keyed by user id.
type UserPolicy struct {
	TransfersEnabled bool      `json:"transfersEnabled" dynamodbav:"transfers_enabled"`
	SuccessRate      int       `json:"successRate" dynamodbav:"success_rate"`
	LastUpdated      time.Time `json:"lastUpdated" dynamodbav:"last_updated"`
}

type UserPolicyPatch struct {
	TransfersEnabled *bool `json:"transfersEnabled,omitempty"`
	SuccessRate      *int  `json:"successRate,omitempty" validate:"omitempty,min=0,max=100"`
}

func (up UserPolicyPatch) Apply(p UserPolicy) UserPolicy {
	if up.TransfersEnabled != nil {
		p.TransfersEnabled = *up.TransfersEnabled
	}
	if up.SuccessRate != nil {
		p.SuccessRate = *up.SuccessRate
	}
	return p
}

// DefaultUserPolicy applies to users with no stored entry.
func DefaultUserPolicy() UserPolicy {
	return UserPolicy{TransfersEnabled: true, SuccessRate: 100}
}
