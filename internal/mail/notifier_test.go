package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, send sendFunc) *SMTPNotifier {
	t.Helper()
	n, err := NewSMTPNotifier(&config.Config{
		SMTPHost:     "smtp.test",
		SMTPPort:     2525,
		SMTPUsername: "relay",
		SMTPPassword: "secret",
		MailFrom:     "Storytopia <no-reply@storytopia.test>",
	}, logger.Discard())
	require.NoError(t, err)
	n.send = send
	return n
}

func TestStoryReady(t *testing.T) {
	t.Parallel()

	var got []*gomail.Msg
	n := newTestNotifier(t, func(_ context.Context, msgs ...*gomail.Msg) error {
		got = append(got, msgs...)
		return nil
	})

	user := &domain.User{ID: "u-1", Username: "teller", Email: "teller@example.com"}
	story := &domain.Story{ID: "s-1", Title: "The Fox", Description: "a brave fox"}

	require.NoError(t, n.StoryReady(context.Background(), user, story))
	require.Len(t, got, 1)
	msg := got[0]

	from, err := msg.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@storytopia.test", from)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"teller@example.com"}, rcpts)
	assert.Equal(t, []string{"Your story is ready"}, msg.GetGenHeader(gomail.HeaderSubject))

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), `"The Fox"`)
	assert.Contains(t, raw.String(), "a brave fox")
}

func TestStoryFailed_SendError(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(t, func(context.Context, ...*gomail.Msg) error {
		return errors.New("421 service not available")
	})

	user := &domain.User{ID: "u-1", Username: "teller", Email: "teller@example.com"}
	err := n.StoryFailed(context.Background(), user, "a fox")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestDeliver_SkipsUsersWithoutEmail(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(t, func(context.Context, ...*gomail.Msg) error {
		t.Error("no mail expected")
		return nil
	})

	assert.NoError(t, n.StoryFailed(context.Background(), &domain.User{ID: "u-1"}, "a fox"))
}

func TestDeliver_BadRecipient(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(t, func(context.Context, ...*gomail.Msg) error {
		t.Error("no mail expected")
		return nil
	})

	err := n.StoryFailed(context.Background(), &domain.User{ID: "u-1", Email: "not an address"}, "a fox")
	assert.ErrorIs(t, err, domain.ErrFault)
}

func TestDeliver_ContextCancelled(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(t, func(ctx context.Context, _ ...*gomail.Msg) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := n.StoryFailed(ctx, &domain.User{ID: "u-1", Email: "a@example.com"}, "a fox")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSMTPNotifier_BadFrom(t *testing.T) {
	t.Parallel()

	_, err := NewSMTPNotifier(&config.Config{SMTPHost: "smtp.test", SMTPPort: 25, MailFrom: "not an address"}, logger.Discard())
	assert.Error(t, err)
}
