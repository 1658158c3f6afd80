package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSlack struct {
	channel string
	calls   int
	err     error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	return channelID, "1700000000.000100", f.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Alert) error { return f.err }

func testAlert() Alert {
	return Alert{
		Severity: SeverityCritical,
		Title:    "Withdrawal failed",
		Message:  "bridge back failed",
		Fields:   map[string]string{"user": "0xabc", "withdrawal_id": "0x01"},
	}
}

func TestAlertText(t *testing.T) {
	text := testAlert().Text()
	assert.Equal(t, "[CRITICAL] Withdrawal failed\nbridge back failed\nuser: 0xabc\nwithdrawal_id: 0x01", text)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "admin alert", entry.Message)
	assert.Equal(t, "0xabc", entry.ContextMap()["user"])
}

func TestSlackNotifier(t *testing.T) {
	fake := &fakeSlack{}
	n := &SlackNotifier{client: fake, channel: "C123"}

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "C123", fake.channel)

	fake.err = errors.New("channel_not_found")
	require.ErrorContains(t, n.Notify(context.Background(), testAlert()), "channel_not_found")
}

func TestNewSlackNotifierValidates(t *testing.T) {
	_, err := NewSlackNotifier("", "C123")
	require.Error(t, err)
	_, err = NewSlackNotifier("xoxb-token", "")
	require.Error(t, err)
}

func TestEmailNotifierSendsToEachRecipient(t *testing.T) {
	var subjects []string
	n := &EmailNotifier{
		from: mail.NewEmail("Strategy Manager", "bot@example.com"),
		to:   []*mail.Email{mail.NewEmail("", "a@example.com"), mail.NewEmail("", "b@example.com")},
		send: func(_ context.Context, msg *mail.SGMailV3) error {
			subjects = append(subjects, msg.Subject)
			return nil
		},
	}

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, []string{"[critical] Withdrawal failed", "[critical] Withdrawal failed"}, subjects)
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	fake := &fakeSlack{}
	errA := errors.New("smtp down")
	m := MultiNotifier{failingNotifier{err: errA}, nil, &SlackNotifier{client: fake, channel: "C1"}}

	err := m.Notify(context.Background(), testAlert())
	require.ErrorIs(t, err, errA)
	assert.Equal(t, 1, fake.calls, "a failing notifier must not stop the others")
}
