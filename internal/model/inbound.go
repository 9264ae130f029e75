package model

import "time"

// NewsletterSubscriber is keyed by its lower-cased email. Unsubscribing
// flips IsActive instead of deleting the row, so a later subscribe
// reactivates the same record.
type NewsletterSubscriber struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	IsActive       bool       `json:"isActive"`
	SubscribedAt   time.Time  `json:"subscribedAt"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
}

// Contact request project types.
const (
	ProjectConsultation      = "Consultation"
	ProjectDevelopment       = "Development"
	ProjectMELImplementation = "MEL Implementation"
	ProjectTraining          = "Training"
)

// Preferred contact channels.
const (
	ContactEmail    = "Email"
	ContactPhone    = "Phone"
	ContactWhatsApp = "WhatsApp"
)

// ProjectTypes lists the accepted ContactRequest.ProjectType values.
var ProjectTypes = []string{ProjectConsultation, ProjectDevelopment, ProjectMELImplementation, ProjectTraining}

// ContactChannels lists the accepted ContactRequest.PreferredContact values.
var ContactChannels = []string{ContactEmail, ContactPhone, ContactWhatsApp}

// ContactRequest is written once by a visitor; only IsRead changes afterwards.
type ContactRequest struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	ProjectType      string    `json:"projectType"`
	PreferredContact string    `json:"preferredContact"`
	Message          string    `json:"message"`
	IsRead           bool      `json:"isRead"`
	CreatedAt        time.Time `json:"createdAt"`
}
