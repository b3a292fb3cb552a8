// Package notify turns verification secrets into emails and SMS messages.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/smtp"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/sns"
)

// Notifier delivers verification emails and SMS codes through the SMTP
// mailer and the SNS sender. Links are built from baseURL.
type Notifier struct {
	mailer  smtp.Mailer
	sms     sns.SMSSender
	baseURL string
}

func New(mailer smtp.Mailer, sms sns.SMSSender, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, sms: sms, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *Notifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := n.link("/verify-email", token)
	body := "Confirm your email address by opening the link below. It expires in 24 hours.\n\n" + link
	return n.mailer.SendEmail(ctx, email, "Confirm your email", body)
}

func (n *Notifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	link := n.link("/reset-password", token)
	body := "Someone asked to reset the password for this account. If it was you, open the link below within 1 hour.\n\n" +
		link + "\n\nIf you did not ask for this, ignore this email."
	return n.mailer.SendEmail(ctx, email, "Reset your password", body)
}

func (n *Notifier) SendVerificationSMS(ctx context.Context, phone, code string) error {
	if n.sms == nil {
		return fmt.Errorf("sms sender not configured")
	}
	return n.sms.SendSMS(ctx, phone, "Your verification code: "+code)
}

func (n *Notifier) link(path, token string) string {
	return n.baseURL + path + "?" + url.Values{"token": {token}}.Encode()
}
