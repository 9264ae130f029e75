// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account created on first login through the identity
// provider.
//
// WHY Subject AND ID?
// The provider identifies people by its own "sub" claim. We still generate
// our own internal string ID (xid) so every table uses the same key format
// and so our primary keys are not tied to a third-party numbering scheme.
// The UNIQUE constraint on subject keeps one provider account mapped to
// exactly one row.
//
// IsPremium is only ever set by the payment webhook. IsAdmin is granted from
// ADMIN_EMAILS on login or by the `admin grant` command.
type User struct {
	ID              string    `json:"id"`
	Subject         string    `json:"-"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	IsPremium       bool      `json:"isPremium"`
	SubscriptionRef string    `json:"-"`
	IsAdmin         bool      `json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Author is the public projection of a user shown next to comments.
// It deliberately has no email.
type Author struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ProfileImageURL string `json:"profileImageUrl"`
}
