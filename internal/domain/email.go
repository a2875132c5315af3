package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// Notification email templates.
const (
	TemplateJoinRequest     = "join_request"
	TemplateRequestDecision = "request_decision"
)

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// JoinRequestEmailData holds data for the organizer's "someone asked to join" email.
type JoinRequestEmailData struct {
	Email         string
	OrganizerName string
	RequesterName string
	StreamTitle   string
	Comment       string
}

// RequestDecisionEmailData holds data for the requester's approval/disapproval email.
type RequestDecisionEmailData struct {
	Email         string
	RequesterName string
	StreamTitle   string
	Approved      bool
	Comment       string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendJoinRequest(ctx context.Context, data *JoinRequestEmailData) error
	SendRequestDecision(ctx context.Context, data *RequestDecisionEmailData) error
}
