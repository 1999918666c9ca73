package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-bank-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*domain.RegistryUser, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.RegistryUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCodes struct{ mock.Mock }

func (m *mockCodes) Issue(ctx context.Context, address string) (*otp.IssueResult, error) {
	args := m.Called(ctx, address)
	if r, _ := args.Get(0).(*otp.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodes) Verify(ctx context.Context, address, code string) error {
	return m.Called(ctx, address, code).Error(0)
}
func (m *mockCodes) Clear(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(userID, email, role string) (string, error) {
	args := m.Called(userID, email, role)
	return args.String(0), args.Error(1)
}

func activeUser() *domain.RegistryUser {
	return &domain.RegistryUser{
		ID: "U1", Email: "ada@bank.test", Name: "Ada", Status: domain.StatusActive, Credential: "s3cret",
	}
}

// --- Login ---

func TestLogin_IssuesCode(t *testing.T) {
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ada@bank.test").Return(activeUser(), nil)
	codes := &mockCodes{}
	codes.On("Issue", mock.Anything, "ada@bank.test").Return(&otp.IssueResult{ExpiresIn: 600}, nil)

	svc := NewService(users, codes, nil)
	ch, err := svc.Login(context.Background(), LoginRequest{Email: " Ada@Bank.test ", Credential: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, 600, ch.ExpiresIn)
	codes.AssertExpectations(t)
}

func TestLogin_WrongCredential(t *testing.T) {
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ada@bank.test").Return(activeUser(), nil)
	codes := &mockCodes{}

	svc := NewService(users, codes, nil)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ada@bank.test", Credential: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	codes.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmailLooksLikeWrongCredential(t *testing.T) {
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ghost@bank.test").Return(nil, domain.ErrNotFound)

	svc := NewService(users, &mockCodes{}, nil)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@bank.test", Credential: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_SuspendedAccount(t *testing.T) {
	u := activeUser()
	u.Status = domain.StatusSuspended
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ada@bank.test").Return(u, nil)
	codes := &mockCodes{}

	svc := NewService(users, codes, nil)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ada@bank.test", Credential: "s3cret"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	codes.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestLogin_Validation(t *testing.T) {
	svc := NewService(&mockUserStore{}, &mockCodes{}, nil)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "not-an-email", Credential: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// --- CompleteLogin ---

func TestCompleteLogin_SignsTokenAndClears(t *testing.T) {
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ada@bank.test").Return(activeUser(), nil)
	codes := &mockCodes{}
	codes.On("Verify", mock.Anything, "ada@bank.test", "123456").Return(nil)
	codes.On("Clear", mock.Anything, "ada@bank.test").Return(nil)
	signer := &mockSigner{}
	signer.On("Sign", "U1", "ada@bank.test", domain.RoleUser).Return("jwt-token", nil)

	svc := NewService(users, codes, signer)
	sess, err := svc.CompleteLogin(context.Background(), VerifyLoginRequest{Email: "ada@bank.test", Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", sess.Bearer)
	assert.Empty(t, sess.User.Credential)
	codes.AssertExpectations(t)
	signer.AssertExpectations(t)
}

func TestCompleteLogin_NoSigner(t *testing.T) {
	users := &mockUserStore{}
	users.On("FindByEmail", mock.Anything, "ada@bank.test").Return(activeUser(), nil)
	codes := &mockCodes{}
	codes.On("Verify", mock.Anything, "ada@bank.test", "123456").Return(nil)
	codes.On("Clear", mock.Anything, "ada@bank.test").Return(nil)

	sess, err := NewService(users, codes, nil).CompleteLogin(context.Background(),
		VerifyLoginRequest{Email: "ada@bank.test", Code: "123456"})
	require.NoError(t, err)
	assert.Empty(t, sess.Bearer)
	assert.Equal(t, "U1", sess.User.ID)
}

func TestCompleteLogin_VerifyFailure(t *testing.T) {
	codes := &mockCodes{}
	codes.On("Verify", mock.Anything, "ada@bank.test", "000000").
		Return(errors.Join(errors.New("invalid code, 4 attempts remaining"), domain.ErrMismatch))

	svc := NewService(&mockUserStore{}, codes, nil)
	_, err := svc.CompleteLogin(context.Background(), VerifyLoginRequest{Email: "ada@bank.test", Code: "000000"})
	assert.ErrorIs(t, err, domain.ErrMismatch)
	codes.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
}

func TestCompleteLogin_BadCodeShape(t *testing.T) {
	svc := NewService(&mockUserStore{}, &mockCodes{}, nil)
	_, err := svc.CompleteLogin(context.Background(), VerifyLoginRequest{Email: "ada@bank.test", Code: "12ab"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
