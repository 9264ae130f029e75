package service

import (
	"context"
	"fmt"

	"github.com/sakif/portfolio/internal/repository"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalPosts        int `json:"totalPosts"`
	TotalSubscribers  int `json:"totalSubscribers"`
	ActiveSubscribers int `json:"activeSubscribers"`
	TotalContacts     int `json:"totalContacts"`
	UnreadContacts    int `json:"unreadContacts"`
	TotalUsers        int `json:"totalUsers"`
	PremiumUsers      int `json:"premiumUsers"`
}

// AdminService aggregates counts across the stores. The numbers are
// computed with COUNT queries, not by loading every row.
type AdminService struct {
	posts       repository.PostRepository
	subscribers repository.SubscriberRepository
	contacts    repository.ContactRepository
	users       repository.UserRepository
}

func NewAdminService(
	posts repository.PostRepository,
	subscribers repository.SubscriberRepository,
	contacts repository.ContactRepository,
	users repository.UserRepository,
) *AdminService {
	return &AdminService{posts: posts, subscribers: subscribers, contacts: contacts, users: users}
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.TotalPosts, err = s.posts.CountPosts(ctx); err != nil {
		return nil, fmt.Errorf("service/admin: %w", err)
	}
	if st.TotalSubscribers, st.ActiveSubscribers, err = s.subscribers.CountSubscribers(ctx); err != nil {
		return nil, fmt.Errorf("service/admin: %w", err)
	}
	if st.TotalContacts, st.UnreadContacts, err = s.contacts.CountContacts(ctx); err != nil {
		return nil, fmt.Errorf("service/admin: %w", err)
	}
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: %w", err)
	}
	st.TotalUsers, st.PremiumUsers = users.Total, users.Premium
	return &st, nil
}
