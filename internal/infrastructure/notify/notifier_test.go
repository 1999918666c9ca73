package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, msg string) error {
	return m.Called(ctx, to, msg).Error(0)
}

func TestSend_EmailAddress(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, "a@bank.test", emailSubject, mock.MatchedBy(func(b string) bool {
		return strings.Contains(b, "123456")
	})).Return(nil)

	n := New(ml, nil)
	require.NoError(t, n.Send(context.Background(), "a@bank.test", "123456"))
	ml.AssertExpectations(t)
}

func TestSend_PhoneAddress(t *testing.T) {
	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, "+15550001111", mock.Anything).Return(nil)

	n := New(nil, sms)
	require.NoError(t, n.Send(context.Background(), "+15550001111", "123456"))
	sms.AssertExpectations(t)
}

func TestSend_MissingChannel(t *testing.T) {
	n := New(nil, nil)
	assert.ErrorIs(t, n.Send(context.Background(), "a@bank.test", "123456"), errNoChannel)
	assert.ErrorIs(t, n.Send(context.Background(), "+15550001111", "123456"), errNoChannel)
}

func TestSend_UnsupportedAddress(t *testing.T) {
	n := New(&mockMailer{}, &mockSMSSender{})
	assert.ErrorIs(t, n.Send(context.Background(), "not an address", "123456"), errNoChannel)
}
