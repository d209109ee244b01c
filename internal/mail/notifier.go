// Package mail tells authors how their story generations ended.
package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

// sendFunc matches (*gomail.Client).DialAndSendWithContext.
type sendFunc func(ctx context.Context, msgs ...*gomail.Msg) error

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	from string
	send sendFunc
	logg *logger.Logger
}

// NewSMTPNotifier creates a notifier for the relay in cfg.
func NewSMTPNotifier(cfg *config.Config, logg *logger.Logger) (*SMTPNotifier, error) {
	if err := gomail.NewMsg().From(cfg.MailFrom); err != nil {
		return nil, fmt.Errorf("invalid MAIL_FROM %q: %w", cfg.MailFrom, err)
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(30 * time.Second),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure smtp client: %w", err)
	}

	return &SMTPNotifier{
		from: cfg.MailFrom,
		send: client.DialAndSendWithContext,
		logg: logg.WithFields("component", "mail"),
	}, nil
}

// StoryReady tells the author their story is ready.
func (n *SMTPNotifier) StoryReady(ctx context.Context, to *domain.User, story *domain.Story) error {
	body := fmt.Sprintf("Hi %s,\n\nYour story %q is ready to read.\n\nIt was written from your idea:\n\n  %s\n\nHappy reading,\nStorytopia\n",
		to.Username, story.Title, story.Description)
	return n.deliver(ctx, to, "Your story is ready", body)
}

// StoryFailed tells the author their story could not be generated.
func (n *SMTPNotifier) StoryFailed(ctx context.Context, to *domain.User, prompt string) error {
	body := fmt.Sprintf("Hi %s,\n\nWe could not create a story from your idea:\n\n  %s\n\nPlease try again in a little while.\n\nStorytopia\n",
		to.Username, prompt)
	return n.deliver(ctx, to, "We could not create your story", body)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to *domain.User, subject, body string) error {
	if to.Email == "" {
		n.logg.Debug("user has no email address, skipping", "user_id", to.ID)
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return domain.Fault("mail.Compose", err)
	}
	if err := msg.AddToFormat(to.Username, to.Email); err != nil {
		return domain.Fault("mail.Compose", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := n.send(ctx, msg); err != nil {
		return domain.Unavailable("mail.Send", err)
	}

	n.logg.Info("mail sent", "user_id", to.ID, "subject", subject)
	return nil
}

// LogNotifier records notifications in the log instead of mailing them.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg.WithFields("component", "mail")}
}

func (n *LogNotifier) StoryReady(_ context.Context, to *domain.User, story *domain.Story) error {
	n.logg.Info("story ready", "user_id", to.ID, "story_id", story.ID, "title", story.Title)
	return nil
}

func (n *LogNotifier) StoryFailed(_ context.Context, to *domain.User, prompt string) error {
	n.logg.Info("story generation failed", "user_id", to.ID, "prompt", prompt)
	return nil
}
