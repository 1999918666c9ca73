// Package otp issues and verifies short-lived numeric codes keyed by address.
//
// Each address has at most one live record. Expiry is evaluated lazily on access;
// Sweep (driven by Run) is an optional active eviction pass.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-bank-sync/internal/domain"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
	DefaultSendTimeout = 10 * time.Second
)

// Notifier delivers a code to an address. Implementations may block; the
// service always calls them off the request path with a bounded context.
type Notifier interface {
	Send(ctx context.Context, address, code string) error
}

type IssueResult struct {
	ExpiresIn int // seconds
}

type Status struct {
	Verified         bool
	RemainingSeconds int
}

// Options tunes the service. Zero values fall back to the package defaults;
// Now and Generate exist for tests.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	SendTimeout time.Duration
	Now         func() time.Time
	Generate    func() (string, error)
}

// Service owns the in-memory OTP records. Nothing outside it touches the map.
type Service struct {
	mu      sync.Mutex
	records map[string]*domain.OTPRecord

	notifier    Notifier
	ttl         time.Duration
	maxAttempts int
	sendTimeout time.Duration
	now         func() time.Time
	generate    func() (string, error)

	deliveries sync.WaitGroup
}

func NewService(notifier Notifier, opts Options) *Service {
	s := &Service{
		records:     make(map[string]*domain.OTPRecord),
		notifier:    notifier,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		sendTimeout: opts.SendTimeout,
		now:         opts.Now,
		generate:    opts.Generate,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = DefaultSendTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = generateCode
	}
	return s
}

// Issue creates or replaces the record for address and hands the code to the
// notifier in the background. Delivery failure never fails Issue.
func (s *Service) Issue(ctx context.Context, address string) (*IssueResult, error) {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return nil, fmt.Errorf("address is required: %w", domain.ErrValidation)
	}
	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	now := s.now()
	s.mu.Lock()
	s.records[key] = &domain.OTPRecord{
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()

	s.deliver(ctx, key, code)
	return &IssueResult{ExpiresIn: int(s.ttl / time.Second)}, nil
}

func (s *Service) deliver(ctx context.Context, address, code string) {
	if s.notifier == nil {
		slog.Warn("no notifier configured; otp available via admin lookup only", "address", address)
		return
	}
	// The request context ends when the handler returns; delivery must outlive it.
	base := context.WithoutCancel(ctx)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		sendCtx, cancel := context.WithTimeout(base, s.sendTimeout)
		defer cancel()
		if err := s.notifier.Send(sendCtx, address, code); err != nil {
			slog.Warn("otp delivery failed; code remains valid",
				"address", address, "code", code,
				"err", fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err))
			return
		}
		slog.Info("otp delivered", "address", address)
	}()
}

// WaitDeliveries blocks until every in-flight delivery has returned.
func (s *Service) WaitDeliveries() {
	s.deliveries.Wait()
}

// Verify checks code against the live record for address. A record that has
// already been verified is consumed: a repeated Verify answers ErrNotFound.
func (s *Service) Verify(_ context.Context, address, code string) error {
	key := domain.NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Verified {
		return fmt.Errorf("no active code for this address: %w", domain.ErrNotFound)
	}
	if rec.Expired(s.now()) {
		delete(s.records, key)
		return fmt.Errorf("code has expired, request a new one: %w", domain.ErrExpired)
	}
	if rec.Attempts >= s.maxAttempts {
		delete(s.records, key)
		return fmt.Errorf("too many failed attempts, request a new code: %w", domain.ErrTooManyAttempts)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(rec.Code)) != 1 {
		rec.Attempts++
		remaining := s.maxAttempts - rec.Attempts
		return fmt.Errorf("invalid code, %d attempts remaining: %w", remaining, domain.ErrMismatch)
	}
	rec.Verified = true
	return nil
}

// Clear drops the record for address, verified or not.
func (s *Service) Clear(_ context.Context, address string) error {
	key := domain.NormalizeAddress(address)
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Status is a read-only lookup; an expired record is deleted and reported absent.
func (s *Service) Status(_ context.Context, address string) (*Status, error) {
	key := domain.NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("no active code for this address: %w", domain.ErrNotFound)
	}
	now := s.now()
	if rec.Expired(now) {
		delete(s.records, key)
		return nil, fmt.Errorf("no active code for this address: %w", domain.ErrNotFound)
	}
	return &Status{
		Verified:         rec.Verified,
		RemainingSeconds: int(rec.ExpiresAt.Sub(now) / time.Second),
	}, nil
}

// Peek returns the live code for address. It backs the operator lookup used
// when delivery fails and must never be exposed without admin auth.
func (s *Service) Peek(address string) (code string, expiresAt time.Time, ok bool) {
	key := domain.NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.records[key]
	if !found || rec.Expired(s.now()) {
		return "", time.Time{}, false
	}
	return rec.Code, rec.ExpiresAt, true
}

// Sweep deletes every expired record and returns how many were removed.
func (s *Service) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, key)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("swept expired otp records", "count", n)
			}
		}
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
