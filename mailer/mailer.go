// Package mailer renders templated campaign email and delivers it over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"gopkg.in/gomail.v2"
)

var ErrDisabled = errors.New("smtp is not configured")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTP sends through a gomail dialer. A new connection is opened per message;
// campaign sends are sequential and short.
type SMTP struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTP(cfg Config) *SMTP {
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// Disabled refuses every send. Wired when SMTP settings are absent so sends
// fail per recipient and are logged instead of crashing start-up.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrDisabled }

// Recipient is the data a template can reference: {{.Name}} and {{.Email}}.
type Recipient struct {
	Name  string
	Email string
}

// Render fills subject as plain text and body as HTML-escaped markup.
func Render(subject, body string, r Recipient) (string, string, error) {
	st, err := texttemplate.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return "", "", fmt.Errorf("parse subject: %w", err)
	}
	bt, err := htmltemplate.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return "", "", fmt.Errorf("parse body: %w", err)
	}

	var sb, bb bytes.Buffer
	if err := st.Execute(&sb, r); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := bt.Execute(&bb, r); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

// Validate parses both templates without executing them.
func Validate(subject, body string) error {
	if _, err := texttemplate.New("subject").Parse(subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if _, err := htmltemplate.New("body").Parse(body); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	return nil
}
