package domain

import "time"

const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusFailed    = "failed"
)

const (
	TransferDomestic    = "domestic"
	TransferCrossBorder = "cross_border"
)

// Transaction is a resolved transfer outcome. It is never modified after it is appended.
type Transaction struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Status    string    `json:"status" dynamodbav:"status"`
	Type      string    `json:"type" dynamodbav:"type"`
	Amount    float64   `json:"amount" dynamodbav:"amount"`
	Fee       float64   `json:"fee" dynamodbav:"fee"`
	From      string    `json:"from" dynamodbav:"from"`
	To        string    `json:"to" dynamodbav:"to"`
	Reference string    `json:"reference,omitempty" dynamodbav:"reference"`
	Note      string    `json:"note,omitempty" dynamodbav:"note"`
	Message   string    `json:"message,omitempty" dynamodbav:"message"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// TransferRequest is a user-initiated transfer awaiting policy checks and OTP confirmation.
type TransferRequest struct {
	UserID        string  `json:"userId" validate:"required"`
	From          string  `json:"from" validate:"required,email"`
	Recipient     string  `json:"recipient" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Type          string  `json:"type" validate:"required,oneof=domestic cross_border"`
	AccountNumber string  `json:"accountNumber" validate:"required_if=Type domestic"`
	IBAN          string  `json:"iban" validate:"required_if=Type cross_border,iban_shape"`
	Note          string  `json:"note"`
}

// PendingTransfer is returned once an OTP has been issued for a transfer request.
type PendingTransfer struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Request   TransferRequest `json:"request"`
	ExpiresIn int             `json:"expiresIn"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
