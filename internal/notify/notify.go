// Package notify sends operator email through the Mailjet API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"

	"github.com/sakif/portfolio/internal/model"
)

// DefaultTimeout bounds one Mailjet call. It stays under the server's
// write timeout so a slow provider never costs the client its response.
const DefaultTimeout = 10 * time.Second

// Config holds the Mailjet credentials and addresses.
type Config struct {
	PublicKey  string
	PrivateKey string
	Sender     string
	Recipient  string

	// BaseURL overrides the API base ("https://api.mailjet.com/v3").
	BaseURL string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Notifier emails the site owner about inbound contact requests.
// With missing keys or addresses it logs instead of sending, so local
// development needs no Mailjet account.
type Notifier struct {
	sender    string
	recipient string
	send      func(*mailjet.MessagesV31) error
	logger    *slog.Logger
}

// New returns a Notifier. Sending is enabled only when both keys and both
// addresses are set.
func New(cfg Config, logger *slog.Logger) *Notifier {
	n := &Notifier{
		sender:    cfg.Sender,
		recipient: cfg.Recipient,
		logger:    logger,
	}
	if cfg.PublicKey != "" && cfg.PrivateKey != "" && cfg.Sender != "" && cfg.Recipient != "" {
		var base []string
		if cfg.BaseURL != "" {
			base = append(base, cfg.BaseURL)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		clt := mailjet.NewMailjetClient(cfg.PublicKey, cfg.PrivateKey, base...)
		// The library defaults to http.DefaultClient, which never times out.
		clt.SetClient(&http.Client{Timeout: timeout})
		n.send = func(msgs *mailjet.MessagesV31) error {
			_, err := clt.SendMailV31(msgs)
			return err
		}
	}
	return n
}

// Enabled reports whether mail is actually sent.
func (n *Notifier) Enabled() bool {
	return n.send != nil
}

// ContactReceived tells the owner about a new contact request. The
// requester's address is set as Reply-To so answering is one click.
func (n *Notifier) ContactReceived(ctx context.Context, c *model.ContactRequest) error {
	if n.send == nil {
		n.logger.DebugContext(ctx, "mail disabled, skipping contact notification", slog.String("contactID", c.ID))
		return nil
	}

	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: n.sender},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: n.recipient}},
		ReplyTo:  &mailjet.RecipientV31{Email: c.Email, Name: c.Name},
		Subject:  subject(c),
		TextPart: contactBody(c),
	}}

	if err := n.sendContext(ctx, &mailjet.MessagesV31{Info: info}); err != nil {
		return fmt.Errorf("notify: sending contact mail: %w", err)
	}
	n.logger.InfoContext(ctx, "contact notification sent", slog.String("contactID", c.ID))
	return nil
}

// sendContext returns when the send finishes or ctx is done, whichever
// comes first. SendMailV31 takes no context; an abandoned send still ends
// at the client timeout.
func (n *Notifier) sendContext(ctx context.Context, msgs *mailjet.MessagesV31) error {
	done := make(chan error, 1)
	go func() { done <- n.send(msgs) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func subject(c *model.ContactRequest) string {
	if c.ProjectType == "" {
		return "New contact request from " + c.Name
	}
	return fmt.Sprintf("New %s request from %s", c.ProjectType, c.Name)
}

func contactBody(c *model.ContactRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Email: %s\n", c.Email)
	fmt.Fprintf(&b, "Project type: %s\n", c.ProjectType)
	fmt.Fprintf(&b, "Preferred contact: %s\n", c.PreferredContact)
	fmt.Fprintf(&b, "\n%s\n", c.Message)
	return b.String()
}
