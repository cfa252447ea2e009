package sinks

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpOptions struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	// To is every recipient of a notification.
	To []string
}

// Email sends notifications over SMTP.
type Email struct {
	options SmtpOptions
	send    func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(options SmtpOptions) Email {
	return Email{
		options: options,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

func (e Email) message(title, body string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Booking Bot <%s>", e.options.EmailAddress)
	mail.To = e.options.To
	mail.Subject = title
	mail.Text = []byte(body)
	return mail
}

func (e Email) deliver(title, body string) error {
	mail := e.message(title, body)
	addr := fmt.Sprintf("%s:%d", e.options.Server, e.options.Port)

	err := e.send(
		mail,
		addr,
		smtp.PlainAuth("", e.options.EmailAddress, e.options.Password, e.options.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Notify sends the email, it gives up waiting when ctx is done but the smtp
// exchange itself may still finish in the background.
func (e Email) Notify(ctx context.Context, title, body string) error {
	if len(e.options.To) == 0 {
		return fmt.Errorf("send email: no recipients")
	}

	result := make(chan error, 1)
	go func() {
		result <- e.deliver(title, body)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
