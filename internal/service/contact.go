package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

const MaxMessageLength = 5000

// ContactNotifier is told about every stored contact request.
// notify.Notifier implements it with Mailjet.
type ContactNotifier interface {
	ContactReceived(ctx context.Context, c *model.ContactRequest) error
}

// ContactInput is the public contact form. ProjectType and PreferredContact
// are optional.
type ContactInput struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	ProjectType      string `json:"projectType"`
	PreferredContact string `json:"preferredContact"`
	Message          string `json:"message"`
}

type ContactService struct {
	contacts repository.ContactRepository
	notifier ContactNotifier
	logger   *slog.Logger
}

func NewContactService(contacts repository.ContactRepository, notifier ContactNotifier, logger *slog.Logger) *ContactService {
	return &ContactService{contacts: contacts, notifier: notifier, logger: logger}
}

// Create stores the request, then notifies. The visitor's request is saved
// whether or not the mail goes out; a notification failure is only logged.
func (s *ContactService) Create(ctx context.Context, in ContactInput) (*model.ContactRequest, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be 1-%d characters", MaxNameLength))
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)
	if message == "" || len(message) > MaxMessageLength {
		return nil, apperror.ValidationFailed("message", fmt.Sprintf("message must be 1-%d characters", MaxMessageLength))
	}
	if in.ProjectType != "" && !slices.Contains(model.ProjectTypes, in.ProjectType) {
		return nil, apperror.ValidationFailed("projectType",
			"projectType must be one of: "+strings.Join(model.ProjectTypes, ", "))
	}
	if in.PreferredContact != "" && !slices.Contains(model.ContactChannels, in.PreferredContact) {
		return nil, apperror.ValidationFailed("preferredContact",
			"preferredContact must be one of: "+strings.Join(model.ContactChannels, ", "))
	}

	req := &model.ContactRequest{
		Name:             name,
		Email:            email,
		ProjectType:      in.ProjectType,
		PreferredContact: in.PreferredContact,
		Message:          message,
	}
	if err := s.contacts.CreateContact(ctx, req); err != nil {
		return nil, fmt.Errorf("service/contact: storing request: %w", err)
	}
	s.logger.Info("contact request received", slog.String("id", req.ID), slog.String("projectType", req.ProjectType))

	if s.notifier != nil {
		if err := s.notifier.ContactReceived(ctx, req); err != nil {
			s.logger.Error("contact notification failed", slog.String("id", req.ID), slog.String("error", err.Error()))
		}
	}
	return req, nil
}

func (s *ContactService) List(ctx context.Context) ([]model.ContactRequest, error) {
	contacts, err := s.contacts.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/contact: listing requests: %w", err)
	}
	return contacts, nil
}

// MarkRead sets the triage flag. It is the only field that ever changes.
func (s *ContactService) MarkRead(ctx context.Context, id string, read bool) (*model.ContactRequest, error) {
	return s.contacts.SetContactRead(ctx, id, read)
}
