// Package notify routes one-time codes to the channel matching the address:
// email addresses go through SMTP, E.164 phone numbers through SNS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-bank-sync/internal/infrastructure/smtp"
	"github.com/go-bank-sync/internal/infrastructure/sns"
)

var (
	errNoChannel = errors.New("no delivery channel configured for address")

	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

const emailSubject = "Your verification code"

type Notifier struct {
	mailer smtp.Mailer
	sms    sns.SMSSender
}

// New builds a Notifier. Either channel may be nil; sending to an address
// whose channel is missing fails and the caller logs the code instead.
func New(mailer smtp.Mailer, sms sns.SMSSender) *Notifier {
	return &Notifier{mailer: mailer, sms: sms}
}

func (n *Notifier) Send(ctx context.Context, address, code string) error {
	body := fmt.Sprintf("Your verification code is %s. Do not share it with anyone.", code)
	switch {
	case strings.Contains(address, "@"):
		if n.mailer == nil {
			return fmt.Errorf("email %s: %w", address, errNoChannel)
		}
		return n.mailer.SendEmail(ctx, address, emailSubject, body)
	case phonePattern.MatchString(address):
		if n.sms == nil {
			return fmt.Errorf("sms %s: %w", address, errNoChannel)
		}
		return n.sms.SendSMS(ctx, address, body)
	default:
		return fmt.Errorf("unsupported address %q: %w", address, errNoChannel)
	}
}
