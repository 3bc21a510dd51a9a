package mail

import (
	"context"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"gopkg.in/gomail.v2"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestNotifyLeadConverted(t *testing.T) {
	dialer := &captureDialer{}
	sender := &EmailSender{From: "crm@example.test", To: []string{"ops@example.test"}, Dialer: dialer}

	accountID := int64(9)
	err := sender.NotifyLeadConverted(context.Background(), queue.LeadConvertedEvent{
		LeadID:                   3,
		ContactID:                4,
		AccountID:                &accountID,
		PossibleDuplicateAccount: true,
		OccurredAt:               time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	msg := dialer.sent[0]
	assert.Equal(t, []string{"Lead #3 converted"}, msg.GetHeader("Subject"))
	assert.Equal(t, []string{"ops@example.test"}, msg.GetHeader("To"))
}

func TestNotifyLeadConvertedWithoutRecipients(t *testing.T) {
	dialer := &captureDialer{}
	sender := &EmailSender{From: "crm@example.test", Dialer: dialer}

	require.NoError(t, sender.NotifyLeadConverted(context.Background(), queue.LeadConvertedEvent{LeadID: 1}))
	assert.Empty(t, dialer.sent)
}

func TestNotifyLeadConvertedSMTPError(t *testing.T) {
	dialer := &captureDialer{err: errors.New("connection refused")}
	sender := &EmailSender{From: "crm@example.test", To: []string{"ops@example.test"}, Dialer: dialer}

	err := sender.NotifyLeadConverted(context.Background(), queue.LeadConvertedEvent{LeadID: 1})
	assert.ErrorContains(t, err, "connection refused")
}

func TestIDOrDash(t *testing.T) {
	id := int64(12)
	assert.Equal(t, "#12", idOrDash(&id))
	assert.Equal(t, "-", idOrDash(nil))
}

func TestNotifyLeadConvertedEscapesActor(t *testing.T) {
	dialer := &captureDialer{}
	sender := &EmailSender{From: "crm@example.test", To: []string{"ops@example.test"}, Dialer: dialer}

	actor := `<a href="http://evil">click</a>`
	err := sender.NotifyLeadConverted(context.Background(), queue.LeadConvertedEvent{LeadID: 5, ContactID: 6, ActorID: actor})
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	var raw bytes.Buffer
	_, err = dialer.sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw.String(), "<a href")

	body, err := renderLeadConverted(LeadConvertedEmailData{LeadID: 5, ActorID: actor})
	require.NoError(t, err)
	assert.Contains(t, body, "Converted by: &lt;a href=&#34;http://evil&#34;&gt;click&lt;/a&gt;")
	assert.NotContains(t, body, actor)
}
