package services

import (
	"context"
	"fmt"
	"log/slog"

	"streamhub/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendJoinRequest tells the organizer someone asked to join, using the "join_request" template.
func (s *emailService) SendJoinRequest(ctx context.Context, data *domain.JoinRequestEmailData) error {
	if data == nil {
		return fmt.Errorf("join request email data is nil")
	}
	return s.send(ctx, domain.TemplateJoinRequest, data.Email, data)
}

// SendRequestDecision tells the requester the organizer's verdict, using the "request_decision" template.
func (s *emailService) SendRequestDecision(ctx context.Context, data *domain.RequestDecisionEmailData) error {
	if data == nil {
		return fmt.Errorf("request decision email data is nil")
	}
	return s.send(ctx, domain.TemplateRequestDecision, data.Email, data)
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(ctx, to, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", to)
	return nil
}
