package alerting

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// EmailOptions parameterise the SMTP channel.
type EmailOptions struct {
	SMTPHost   string
	SMTPPort   int
	Sender     string
	Password   string
	Recipients []string
}

// sendFunc matches smtp.SendMail; swapped in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier delivers alerts over SMTP with STARTTLS.
type EmailNotifier struct {
	opts   EmailOptions
	send   sendFunc
	logger zerolog.Logger
}

// NewEmailNotifier constructs an SMTP channel.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.SMTPHost == "" {
		opts.SMTPHost = "smtp.gmail.com"
	}
	if opts.SMTPPort <= 0 {
		opts.SMTPPort = 587
	}

	return &EmailNotifier{
		opts:   opts,
		send:   smtp.SendMail,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
}

// Notify composes and sends the alert mail to all recipients.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if n.opts.Sender == "" || n.opts.Password == "" {
		return fmt.Errorf("email sender credentials not configured")
	}
	if len(n.opts.Recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", n.opts.SMTPHost, n.opts.SMTPPort)
	auth := smtp.PlainAuth("", n.opts.Sender, n.opts.Password, n.opts.SMTPHost)
	msg := renderEmail(n.opts.Sender, n.opts.Recipients, note)

	if err := n.send(addr, auth, n.opts.Sender, n.opts.Recipients, msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}

	n.logger.Info().
		Str("symbol", note.Symbol).
		Int("recipients", len(n.opts.Recipients)).
		Msg("alert sent (email)")
	return nil
}

func renderEmail(sender string, recipients []string, note Notification) []byte {
	above := note.DiscrepancyPct.Sub(note.ThresholdPct)

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("From: %s\r\n", sender))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	builder.WriteString(fmt.Sprintf("Subject: Price Discrepancy Alert - %s\r\n", note.Symbol))
	builder.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	builder.WriteString(fmt.Sprintf("Price Discrepancy Alert for %s:\r\n\r\n", note.Symbol))
	builder.WriteString(fmt.Sprintf("Alpha Vantage Price: $%s\r\n", note.PriceA.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Yahoo Finance Price: $%s\r\n", note.PriceB.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Price Difference: %s%%\r\n\r\n", note.DiscrepancyPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("This difference exceeds the configured threshold of %s%%.\r\n\r\n", note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Time: %s\r\n\r\n", note.Timestamp.UTC().Format("2006-01-02 15:04:05")))
	builder.WriteString("Alert Analysis:\r\n")
	builder.WriteString(fmt.Sprintf("- Threshold: %s%%\r\n", note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("- Current Discrepancy: %s%%\r\n", note.DiscrepancyPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("- Percentage Above Threshold: %s%%\r\n", above.StringFixed(2)))

	return []byte(builder.String())
}

var _ Notifier = (*EmailNotifier)(nil)
