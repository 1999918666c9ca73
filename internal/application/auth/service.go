package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-bank-sync/internal/domain"
	"github.com/go-bank-sync/internal/pkg/validate"
)

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Credential string `json:"credential" validate:"required"`
}

type VerifyLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Challenge is returned once a code has been sent for a login.
type Challenge struct {
	ExpiresIn int `json:"expiresIn"`
}

// Session is the result of a completed login. Bearer is empty when no
// signing keys are configured.
type Session struct {
	Bearer string               `json:"Bearer,omitempty"`
	User   *domain.RegistryUser `json:"user"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*Challenge, error)
	CompleteLogin(ctx context.Context, req VerifyLoginRequest) (*Session, error)
}

// CredentialStore looks accounts up in the user registry.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.RegistryUser, error)
}

type CodeAuthority interface {
	Issue(ctx context.Context, address string) (*otp.IssueResult, error)
	Verify(ctx context.Context, address, code string) error
	Clear(ctx context.Context, address string) error
}

type TokenSigner interface {
	Sign(userID, email, role string) (string, error)
}

type service struct {
	users  CredentialStore
	codes  CodeAuthority
	signer TokenSigner
}

// NewService builds the login flow. signer may be nil.
func NewService(users CredentialStore, codes CodeAuthority, signer TokenSigner) Service {
	return &service{users: users, codes: codes, signer: signer}
}

var errBadCredentials = fmt.Errorf("invalid email or credential: %w", domain.ErrUnauthorized)

// Login checks the credential and account status, then sends a code to the
// account email. Unknown emails and wrong credentials fail the same way.
func (s *service) Login(ctx context.Context, req LoginRequest) (*Challenge, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	u, err := s.lookup(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(u.Credential), []byte(req.Credential)) != 1 {
		return nil, errBadCredentials
	}
	if !u.CanSignIn() {
		return nil, fmt.Errorf("account is %s: %w", u.Status, domain.ErrForbidden)
	}

	res, err := s.codes.Issue(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue login code: %w", err)
	}
	slog.Info("login code issued", "user_id", u.ID)
	return &Challenge{ExpiresIn: res.ExpiresIn}, nil
}

// CompleteLogin verifies the code, clears it and returns a session.
func (s *service) CompleteLogin(ctx context.Context, req VerifyLoginRequest) (*Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	if err := s.codes.Verify(ctx, req.Email, req.Code); err != nil {
		return nil, err
	}
	if err := s.codes.Clear(ctx, req.Email); err != nil {
		slog.Warn("clearing login code failed", "email", req.Email, "err", err)
	}

	u, err := s.lookup(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !u.CanSignIn() {
		return nil, fmt.Errorf("account is %s: %w", u.Status, domain.ErrForbidden)
	}

	safe := *u
	safe.Credential = ""
	sess := &Session{User: &safe}
	if s.signer != nil {
		role := u.Role
		if role == "" {
			role = domain.RoleUser
		}
		bearer, err := s.signer.Sign(u.ID, u.Email, role)
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		sess.Bearer = bearer
	}
	slog.Info("login completed", "user_id", u.ID)
	return sess, nil
}

func (s *service) lookup(ctx context.Context, email string) (*domain.RegistryUser, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
