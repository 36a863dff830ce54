// Package mailer sends transactional email over SMTP. When no SMTP
// credentials are configured it degrades to a disabled client whose
// sends succeed silently, so development environments boot without a
// mail server.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
)

type Mailer interface {
	// IsEnabled reports whether a real SMTP server is configured.
	IsEnabled() bool

	// Send delivers an HTML email to a single recipient.
	Send(to, subject, body string) error
}

type Config struct {
	Host       string // host:port of the SMTP server
	User       string
	Pass       string
	From       string // RFC 5322 address, e.g. "Tumocare Support <support@example.com>"
	SkipVerify bool   // skip TLS certificate verification
}

type client struct {
	smtp        *goemail.SMTP
	fromName    string
	fromAddress string
	disabled    bool
}

func New(cfg Config) (Mailer, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return &client{disabled: true}, nil
	}

	raw := fmt.Sprintf("smtps://%s:%s@%s", url.QueryEscape(cfg.User), url.QueryEscape(cfg.Pass), cfg.Host)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse smtp url: %w", err)
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}

	tlsConfig := &tls.Config{}
	if cfg.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	smtp, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}

	return &client{
		smtp:        smtp,
		fromName:    from.Name,
		fromAddress: from.Address,
	}, nil
}

func (c *client) IsEnabled() bool {
	return !c.disabled
}

func (c *client) Send(to, subject, body string) error {
	if c.disabled {
		return nil
	}

	msg := goemail.NewHTMLMessage(c.fromAddress, subject, body)
	msg.SetName(c.fromName)
	msg.AddTo(to)

	return c.smtp.Send(msg)
}
