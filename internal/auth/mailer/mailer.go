// Package mailer delivers account emails. The service only hands over a
// recipient and a link; rendering and SMTP live with whoever consumes the
// published messages.
package mailer

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

type Kind string

const (
	KindPasswordReset Kind = "password_reset"
	KindWelcome       Kind = "welcome"
)

// LogMailer writes mail requests to the log instead of sending them. Links
// carry live tokens, so they only show up at debug level.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	return logMail(ctx, KindPasswordReset, to, link)
}

func (LogMailer) SendWelcomeEmail(ctx context.Context, to, link string) error {
	return logMail(ctx, KindWelcome, to, link)
}

func logMail(ctx context.Context, kind Kind, to, link string) error {
	l := slogx.FromContext(ctx)
	l.Info("mail queued", slog.String("kind", string(kind)), slog.String("to", to))
	l.Debug("mail link", slog.String("kind", string(kind)), slog.String("link", link))
	return nil
}
