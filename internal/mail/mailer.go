package mail

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
	qrcode "github.com/skip2/go-qrcode"
)

// Mailer sends ticket and waitlist emails over SMTP. A zero-host config
// disables sending; callers treat the nil mailer as "email off".
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func New(cfg Config) *Mailer {
	if cfg.Host == "" {
		return nil
	}

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}

	return &Mailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

// SendTicket mails the confirmation with a QR code of the grant transaction
// hash attached, for door scanning.
func (m *Mailer) SendTicket(to, eventTitle, txHash, explorerURL string) error {
	const op = "mail.Mailer.SendTicket"

	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(to)
	mail.Subject(fmt.Sprintf("Your ticket for %s", eventTitle))

	body := fmt.Sprintf(
		"You're in! Your ticket for %s is confirmed.\n\nGrant transaction: %s\n",
		eventTitle, txHash,
	)
	if explorerURL != "" {
		body += fmt.Sprintf("View on explorer: %s\n", explorerURL)
	}
	mail.Plain().Set(body)

	if txHash != "" {
		png, err := qrcode.Encode(txHash, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		mail.Attach("ticket-qr.png", bytes.NewReader(png))
	}

	if err := mail.Send(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// SendWaitlistConfirmation tells a joiner they are on the list. Fired at
// most once per entry; the caller owns the flag that enforces that.
func (m *Mailer) SendWaitlistConfirmation(to, eventTitle string) error {
	const op = "mail.Mailer.SendWaitlistConfirmation"

	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(to)
	mail.Subject(fmt.Sprintf("You're on the waitlist for %s", eventTitle))
	mail.Plain().Set(fmt.Sprintf(
		"We saved your spot in line for %s. We'll email you the moment a ticket opens up.\n",
		eventTitle,
	))

	if err := mail.Send(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// SendWaitlistSpotOpened notifies a waitlisted user that tickets are
// available again.
func (m *Mailer) SendWaitlistSpotOpened(to, eventTitle, eventURL string) error {
	const op = "mail.Mailer.SendWaitlistSpotOpened"

	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(to)
	mail.Subject(fmt.Sprintf("A spot opened up for %s", eventTitle))

	body := fmt.Sprintf("Good news: tickets for %s are available again.\n", eventTitle)
	if eventURL != "" {
		body += fmt.Sprintf("Grab yours: %s\n", eventURL)
	}
	mail.Plain().Set(body)

	if err := mail.Send(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
