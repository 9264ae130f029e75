package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio/internal/service"
	"github.com/sakif/portfolio/internal/validate"
)

// InboundHandler serves the two public forms, newsletter and contact, and
// their admin views. Neither form needs an account.
type InboundHandler struct {
	newsletter *service.NewsletterService
	contacts   *service.ContactService
	validator  *validate.Validator
	logger     *slog.Logger
}

func NewInboundHandler(
	newsletter *service.NewsletterService,
	contacts *service.ContactService,
	v *validate.Validator,
	logger *slog.Logger,
) *InboundHandler {
	return &InboundHandler{newsletter: newsletter, contacts: contacts, validator: v, logger: logger}
}

type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type contactReadRequest struct {
	IsRead bool `json:"isRead"`
}

// HandleSubscribe: POST /api/newsletter/subscribe
//
// RESPONSES:
//   - 201 {"message":"Subscribed successfully","subscriber":{...}}
//   - 200 {"message":"Resubscribed successfully","subscriber":{...}}
//   - 409 "Already subscribed"
func (h *InboundHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, h.validator, validate.Subscribe, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.newsletter.Subscribe(r.Context(), req.Email, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	status, message := http.StatusCreated, "Subscribed successfully"
	if res.Reactivated {
		status, message = http.StatusOK, "Resubscribed successfully"
	}
	writeJSON(w, status, map[string]any{"message": message, "subscriber": res.Subscriber})
}

// HandleUnsubscribe: POST /api/newsletter/unsubscribe
// Always 200 for a well-formed address, so the endpoint cannot be used to
// find out who is on the list.
func (h *InboundHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, h.validator, validate.Unsubscribe, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.newsletter.Unsubscribe(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Unsubscribed successfully")
}

// HandleContact: POST /api/contact
func (h *InboundHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decodeBody(r, h.validator, validate.Contact, &in); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.contacts.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Contact request submitted successfully",
		"id":      req.ID,
	})
}

// HandleListContacts: GET /api/admin/contacts
func (h *InboundHandler) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleMarkContact: PATCH /api/admin/contacts/{id} {"isRead": true}
func (h *InboundHandler) HandleMarkContact(w http.ResponseWriter, r *http.Request) {
	var req contactReadRequest
	if err := decodeBody(r, h.validator, validate.ContactRead, &req); err != nil {
		writeError(w, err)
		return
	}
	contact, err := h.contacts.MarkRead(r.Context(), chi.URLParam(r, "id"), req.IsRead)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// HandleListSubscribers: GET /api/admin/newsletter?active=true
func (h *InboundHandler) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if b := queryBool(r, "active"); b != nil {
		activeOnly = *b
	}
	subs, err := h.newsletter.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
