// Package transfer authorizes user transfers behind a one-time code and
// resolves their outcome against the configured success rate.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-bank-sync/internal/domain"
	"github.com/go-bank-sync/internal/pkg/id"
	"github.com/go-bank-sync/internal/pkg/validate"
	"github.com/shopspring/decimal"
)

const (
	completedMessage = "Transfer completed successfully"
	failedMessage    = "Transfer could not be completed at this time. Please try again."
)

var crossBorderFeeRate = decimal.RequireFromString("0.01")

// PolicySource answers with the last synced global policy and the effective
// policy for a user.
type PolicySource interface {
	Policies(userID string) (domain.GlobalPolicy, domain.UserPolicy)
}

// ProfileStore is the device's profile record. SyncPush applies locally and
// forwards to the authority in the background.
type ProfileStore interface {
	Current() domain.Profile
	SyncPush(ctx context.Context, patch domain.ProfilePatch) domain.Profile
}

type OTPAuthority interface {
	Issue(ctx context.Context, address string) (*otp.IssueResult, error)
	Verify(ctx context.Context, address, code string) error
	Clear(ctx context.Context, address string) error
}

type Options struct {
	// Draw returns a uniform value in [0,100).
	Draw func() float64
	Now  func() time.Time
}

type Service struct {
	policies PolicySource
	profile  ProfileStore
	otp      OTPAuthority
	draw     func() float64
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*domain.PendingTransfer

	// ledger serializes the read-append-push of the profile so concurrent
	// confirmations cannot drop each other's transactions.
	ledger sync.Mutex
}

func NewService(policies PolicySource, profile ProfileStore, otpAuth OTPAuthority, opts Options) *Service {
	s := &Service{
		policies: policies,
		profile:  profile,
		otp:      otpAuth,
		draw:     opts.Draw,
		now:      opts.Now,
		pending:  make(map[string]*domain.PendingTransfer),
	}
	if s.draw == nil {
		s.draw = func() float64 { return rand.Float64() * 100 }
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// RequestTransfer runs the policy gates and request validation, then issues a
// code to the sender. The transfer stays pending until ConfirmTransfer.
func (s *Service) RequestTransfer(ctx context.Context, req domain.TransferRequest) (*domain.PendingTransfer, error) {
	global, user := s.policies.Policies(req.UserID)
	if !global.TransfersEnabled {
		return nil, fmt.Errorf("transfers are currently disabled: %w", domain.ErrTransfersDisabled)
	}
	if !user.TransfersEnabled {
		return nil, fmt.Errorf("transfers are disabled for your account: %w", domain.ErrUserTransfersDisabled)
	}

	req.Recipient = strings.TrimSpace(req.Recipient)
	req.IBAN = strings.ToUpper(strings.ReplaceAll(req.IBAN, " ", ""))
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}

	res, err := s.otp.Issue(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("issue code: %w", err)
	}

	now := s.now()
	pt := &domain.PendingTransfer{
		ID:        id.WithPrefix("trf"),
		Status:    domain.TxStatusPending,
		Request:   req,
		ExpiresIn: res.ExpiresIn,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(res.ExpiresIn) * time.Second),
	}
	s.mu.Lock()
	// The new code replaced the sender's previous one, so transfers waiting on
	// that code can never be confirmed.
	for otherID, other := range s.pending {
		if other.Request.From == req.From {
			delete(s.pending, otherID)
		}
	}
	s.pending[pt.ID] = pt
	s.mu.Unlock()

	slog.Info("transfer awaiting code", "transfer_id", pt.ID, "user_id", req.UserID, "type", req.Type)
	return pt, nil
}

// ConfirmTransfer verifies code for a pending transfer and resolves it. A wrong
// code or an unreachable authority keeps the transfer pending so the user can
// retry; any other verification failure drops it. The code is cleared once the
// transfer resolves.
func (s *Service) ConfirmTransfer(ctx context.Context, transferID, code string) (*domain.Transaction, error) {
	s.mu.Lock()
	pt, ok := s.pending[transferID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", transferID, domain.ErrNotFound)
	}
	if s.now().After(pt.ExpiresAt) {
		s.drop(transferID)
		return nil, fmt.Errorf("transfer %s code window has passed, start again: %w", transferID, domain.ErrExpired)
	}

	if err := s.otp.Verify(ctx, pt.Request.From, code); err != nil {
		if !retryable(err) {
			s.drop(transferID)
		}
		return nil, err
	}
	s.drop(transferID)

	tx := s.resolve(pt)

	s.ledger.Lock()
	profile := s.profile.Current()
	patch := domain.ProfilePatch{
		Transactions: append(append([]domain.Transaction{}, profile.Transactions...), *tx),
	}
	if tx.Status == domain.TxStatusCompleted {
		balance := decimal.NewFromFloat(profile.Balance).
			Sub(decimal.NewFromFloat(tx.Amount)).
			Sub(decimal.NewFromFloat(tx.Fee)).
			Round(2).
			InexactFloat64()
		patch.Balance = &balance
	}
	s.profile.SyncPush(ctx, patch)
	s.ledger.Unlock()

	if err := s.otp.Clear(ctx, pt.Request.From); err != nil {
		slog.Warn("clearing code after transfer failed", "transfer_id", transferID, "err", err)
	}

	slog.Info("transfer resolved", "transfer_id", transferID, "tx_id", tx.ID, "status", tx.Status)
	return tx, nil
}

// Pending returns the pending transfer with the given id.
func (s *Service) Pending(transferID string) (*domain.PendingTransfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.pending[transferID]
	return pt, ok
}

// retryable reports whether a failed verification leaves the code usable: a
// wrong guess, or an authority that was unreachable or throttling.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrMismatch) || errors.Is(err, domain.ErrSyncUnavailable)
}

func (s *Service) drop(transferID string) {
	s.mu.Lock()
	delete(s.pending, transferID)
	s.mu.Unlock()
}

// resolve draws against the user's success rate. The draw is in [0,100), so a
// rate of 0 never completes and a rate of 100 always does.
func (s *Service) resolve(pt *domain.PendingTransfer) *domain.Transaction {
	_, user := s.policies.Policies(pt.Request.UserID)
	req := pt.Request

	status, msg := domain.TxStatusFailed, failedMessage
	if s.draw() < float64(user.SuccessRate) {
		status, msg = domain.TxStatusCompleted, completedMessage
	}

	ref := req.AccountNumber
	if req.Type == domain.TransferCrossBorder {
		ref = req.IBAN
	}
	return &domain.Transaction{
		ID:        id.WithPrefix("tx"),
		Status:    status,
		Type:      req.Type,
		Amount:    req.Amount,
		Fee:       Fee(req.Type, req.Amount),
		From:      req.From,
		To:        req.Recipient,
		Reference: ref,
		Note:      req.Note,
		Message:   msg,
		Timestamp: s.now(),
	}
}

// Fee is 0 for domestic transfers and 1% of the amount, rounded to cents, for
// cross-border ones.
func Fee(transferType string, amount float64) float64 {
	if transferType != domain.TransferCrossBorder {
		return 0
	}
	return decimal.NewFromFloat(amount).Mul(crossBorderFeeRate).Round(2).InexactFloat64()
}
