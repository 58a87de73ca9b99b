// Package email delivers the account-flow messages (signup verification,
// forgotten-password resets) through the SMTP server configured in the
// admin panel.
package email

import (
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

// ErrNoEmailServer is returned when no SMTP server has been configured
// yet. Signups and password resets are disabled in that state.
var ErrNoEmailServer = errors.New("no email server configured")

// dialAndSend is swapped out in tests.
var dialAndSend = func(d *gomail.Dialer, m *gomail.Message) error {
	return d.DialAndSend(m)
}

// Sender sends mail with the settings current at call time, so admin
// updates take effect without a restart.
type Sender struct {
	settings func() (models.SiteSettings, error)
}

// NewSender creates a sender reading SMTP settings through the given
// lookup function.
func NewSender(settings func() (models.SiteSettings, error)) *Sender {
	return &Sender{settings: settings}
}

// Configured reports whether an SMTP server is set up.
func (s *Sender) Configured() bool {
	st, err := s.settings()
	return err == nil && st.EmailServer != ""
}

// SendVerification mails the signup verification token to a new user.
func (s *Sender) SendVerification(to, fullName, token, siteURL string) error {
	subject := "viz-inspect: verify your account sign up"
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"Someone used this email address to sign up for a viz-inspect "+
			"account. To verify and activate the account, open\n\n"+
			"  %s/users/verify\n\n"+
			"and paste in this verification token:\n\n"+
			"  %s\n\n"+
			"If this wasn't you, ignore this message and the account will "+
			"stay inactive.\n",
		fullName, siteURL, token)
	return s.send(to, subject, body)
}

// SendPasswordReset mails a reset token for the forgot-password flow.
func (s *Sender) SendPasswordReset(to, fullName, token, siteURL string) error {
	subject := "viz-inspect: password reset request"
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"A password reset was requested for your viz-inspect account. "+
			"To set a new password, open\n\n"+
			"  %s/users/forgot-password-step2\n\n"+
			"and paste in this reset token:\n\n"+
			"  %s\n\n"+
			"The token expires in one hour. If this wasn't you, you can "+
			"ignore this message.\n",
		fullName, siteURL, token)
	return s.send(to, subject, body)
}

func (s *Sender) send(to, subject, body string) error {
	st, err := s.settings()
	if err != nil {
		return fmt.Errorf("load email settings: %w", err)
	}
	if st.EmailServer == "" {
		return ErrNoEmailServer
	}

	m := gomail.NewMessage()
	m.SetHeader("From", st.EmailSender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(st.EmailServer, st.EmailPort, st.EmailUser, st.EmailPassword)
	return dialAndSend(d, m)
}
