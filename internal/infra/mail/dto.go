package mail

import "gopkg.in/gomail.v2"

type LeadConvertedEmailData struct {
	LeadID                   int64
	ContactID                int64
	AccountID                string
	OpportunityID            string
	ActorID                  string
	PossibleDuplicateAccount bool
	ConvertedAt              string
}

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	From   string
	To     []string
	Dialer Dialer
}
