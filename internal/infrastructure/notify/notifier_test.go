package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

func TestSendVerificationEmail_Link(t *testing.T) {
	mm := &mockMailer{}
	mm.On("SendEmail", mock.Anything, "a@x.com", "Confirm your email",
		mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "https://shop.test/verify-email?token=abc123")
		})).Return(nil)

	n := New(mm, nil, "https://shop.test/")
	require.NoError(t, n.SendVerificationEmail(context.Background(), "a@x.com", "abc123"))
	mm.AssertExpectations(t)
}

func TestSendPasswordResetEmail_PropagatesError(t *testing.T) {
	mm := &mockMailer{}
	mm.On("SendEmail", mock.Anything, "a@x.com", "Reset your password", mock.Anything).Return(errors.New("smtp down"))

	err := New(mm, nil, "https://shop.test").SendPasswordResetEmail(context.Background(), "a@x.com", "tok")
	assert.EqualError(t, err, "smtp down")
}

func TestSendVerificationSMS(t *testing.T) {
	ms := &mockSMS{}
	ms.On("SendSMS", mock.Anything, "+15551234567", "Your verification code: 042917").Return(nil)

	n := New(&mockMailer{}, ms, "")
	require.NoError(t, n.SendVerificationSMS(context.Background(), "+15551234567", "042917"))
	ms.AssertExpectations(t)
}

func TestSendVerificationSMS_NoSender(t *testing.T) {
	err := New(&mockMailer{}, nil, "").SendVerificationSMS(context.Background(), "+15551234567", "000000")
	assert.Error(t, err)
}
