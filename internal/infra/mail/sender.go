package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"html/template"
	"time"

	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"gopkg.in/gomail.v2"
)

var leadConvertedTmpl = template.Must(template.New("lead_converted").Parse(`<p>Lead <b>#{{.LeadID}}</b> was converted on {{.ConvertedAt}}.</p>
<ul>
  <li>Contact: #{{.ContactID}}</li>
  <li>Account: {{.AccountID}}</li>
  <li>Opportunity: {{.OpportunityID}}</li>
{{- if .ActorID}}
  <li>Converted by: {{.ActorID}}</li>
{{- end}}
</ul>
{{- if .PossibleDuplicateAccount}}
<p><b>Heads up:</b> an account with the same name already existed. Check for duplicates.</p>
{{- end}}
`))

func NewEmailSender(host string, port int, user, password, from string, to []string) *EmailSender {
	return &EmailSender{
		From:   from,
		To:     to,
		Dialer: gomail.NewDialer(host, port, user, password),
	}
}

var _ queue.Notifier = (*EmailSender)(nil)

// NotifyLeadConverted mails the sales-ops recipients about one conversion.
func (s *EmailSender) NotifyLeadConverted(_ context.Context, event queue.LeadConvertedEvent) error {
	if len(s.To) == 0 {
		return nil
	}

	data := LeadConvertedEmailData{
		LeadID:                   event.LeadID,
		ContactID:                event.ContactID,
		AccountID:                idOrDash(event.AccountID),
		OpportunityID:            idOrDash(event.OpportunityID),
		ActorID:                  event.ActorID,
		PossibleDuplicateAccount: event.PossibleDuplicateAccount,
		ConvertedAt:              event.OccurredAt.UTC().Format(time.RFC1123),
	}

	body, err := renderLeadConverted(data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To...)
	m.SetHeader("Subject", fmt.Sprintf("Lead #%d converted", event.LeadID))
	m.SetBody("text/html", body)

	if err := s.Dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending email over SMTP: %w", err)
	}
	return nil
}

func renderLeadConverted(data LeadConvertedEmailData) (string, error) {
	var body bytes.Buffer
	if err := leadConvertedTmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("rendering email template: %w", err)
	}
	return body.String(), nil
}

func idOrDash(id *int64) string {
	if id == nil {
		return "-"
	}
	return "#" + strconv.FormatInt(*id, 10)
}

// LogNotifier is used when no SMTP host is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyLeadConverted(_ context.Context, event queue.LeadConvertedEvent) error {
	n.Logger.Info("lead converted",
		slog.Int64("lead_id", event.LeadID),
		slog.Int64("contact_id", event.ContactID),
		slog.Bool("possible_duplicate_account", event.PossibleDuplicateAccount))
	return nil
}
