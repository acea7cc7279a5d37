package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
)

// ApplyService drafts and sends application emails for the resolved profile.
type ApplyService struct {
	resolver   *ProfileResolver
	drafter    *Drafter
	dispatcher *Dispatcher
	parser     JobParser
}

func NewApplyService(resolver *ProfileResolver, drafter *Drafter, dispatcher *Dispatcher) *ApplyService {
	return &ApplyService{resolver: resolver, drafter: drafter, dispatcher: dispatcher}
}

// Draft resolves the profile before anything is sent to the LLM.
func (s *ApplyService) Draft(ctx context.Context, claims *auth.Claims, req *models.ApplyRequest) (*models.DraftResponse, error) {
	prof, err := s.resolver.Resolve(ctx, claims)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PostText) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "post text is required")
	}

	details := s.parser.Extract(req.PostText, req.DetectedEmail, req.DetectedRole)
	draft, err := s.drafter.Draft(ctx, prof, req.PostText, details.Role)
	if err != nil {
		return nil, err
	}
	return &models.DraftResponse{
		Subject:        draft.Subject,
		GeneratedEmail: draft.BodyMarkdown,
		To:             details.Email,
		Role:           details.Role,
	}, nil
}

// Send renders the edited markdown body and dispatches it to the post's recipient.
func (s *ApplyService) Send(ctx context.Context, claims *auth.Claims, req *models.ApplyRequest) (*models.SendResponse, error) {
	prof, err := s.resolver.Resolve(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !req.WantsSend() {
		return nil, errors.Wrap(ErrInvalidRequest, "email body is required")
	}

	details := s.parser.Extract(req.PostText, req.DetectedEmail, req.DetectedRole)
	if details.Email == "" {
		return nil, errors.Wrap(ErrInvalidRecipient, "no email found to send to")
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Application for %s - %s", details.Role, prof.FullName)
	}

	body, err := RenderMarkdown(req.EmailBody)
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Send(ctx, prof.IDHex(), OutgoingMail{To: details.Email, Subject: subject, HTMLBody: body}); err != nil {
		return nil, err
	}
	log.Printf("[SendApplication] profile=%s to=%s sent", prof.IDHex(), details.Email)
	return &models.SendResponse{Message: "Application sent to " + details.Email, To: details.Email}, nil
}

// Apply sends when the request carries an edited body and drafts otherwise.
func (s *ApplyService) Apply(ctx context.Context, claims *auth.Claims, req *models.ApplyRequest) (interface{}, error) {
	if req.WantsSend() {
		return s.Send(ctx, claims, req)
	}
	return s.Draft(ctx, claims, req)
}

func (s *ApplyService) Rewrite(ctx context.Context, req *models.RewriteRequest) (*models.RewriteResponse, error) {
	out, err := s.drafter.Rewrite(ctx, req.CurrentEmail, req.Prompt)
	if err != nil {
		return nil, err
	}
	return &models.RewriteResponse{RewrittenEmail: out}, nil
}
