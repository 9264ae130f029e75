package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

var (
	_ repository.SubscriberRepository = (*DB)(nil)
	_ repository.ContactRepository    = (*DB)(nil)
)

// =========================================================================
// NEWSLETTER
// =========================================================================

const subscriberColumns = `id, email, name, is_active, subscribed_at, unsubscribed_at`

func scanSubscriber(row scanner) (*model.NewsletterSubscriber, error) {
	var (
		s     model.NewsletterSubscriber
		unsub sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Email, &s.Name, &s.IsActive, &s.SubscribedAt, &unsub); err != nil {
		return nil, err
	}
	if unsub.Valid {
		t := unsub.Time
		s.UnsubscribedAt = &t
	}
	return &s, nil
}

// CreateSubscriber relies on the UNIQUE email column: two concurrent
// subscribes for one address produce one row and one conflict.
func (db *DB) CreateSubscriber(ctx context.Context, sub *model.NewsletterSubscriber) error {
	sub.ID = xid.New().String()
	sub.SubscribedAt = now()
	sub.IsActive = true
	sub.UnsubscribedAt = nil

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO newsletter_subscribers (id, email, name, is_active, subscribed_at, unsubscribed_at)
		VALUES (?, ?, ?, ?, ?, NULL)`),
		sub.ID, sub.Email, sub.Name, sub.IsActive, sub.SubscribedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Already subscribed")
		}
		return fmt.Errorf("inserting subscriber: %w", err)
	}
	return nil
}

func (db *DB) GetSubscriberByEmail(ctx context.Context, email string) (*model.NewsletterSubscriber, error) {
	s, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE email = ?`), email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("subscriber", email)
	}
	if err != nil {
		return nil, fmt.Errorf("getting subscriber: %w", err)
	}
	return s, nil
}

// SetSubscriberActive reactivates (resetting subscribed_at) or deactivates
// (stamping unsubscribed_at) the row for email.
func (db *DB) SetSubscriberActive(ctx context.Context, email string, active bool, at time.Time) (*model.NewsletterSubscriber, error) {
	at = at.UTC()
	var (
		res sql.Result
		err error
	)
	if active {
		res, err = db.conn.ExecContext(ctx, db.rebind(`
			UPDATE newsletter_subscribers SET is_active = ?, subscribed_at = ?, unsubscribed_at = NULL
			WHERE email = ?`), true, at, email)
	} else {
		res, err = db.conn.ExecContext(ctx, db.rebind(`
			UPDATE newsletter_subscribers SET is_active = ?, unsubscribed_at = ?
			WHERE email = ?`), false, at, email)
	}
	if err != nil {
		return nil, fmt.Errorf("updating subscriber: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, apperror.NotFound("subscriber", email)
	}
	return db.GetSubscriberByEmail(ctx, email)
}

func (db *DB) ListSubscribers(ctx context.Context, activeOnly bool) ([]model.NewsletterSubscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM newsletter_subscribers`
	var args []any
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY subscribed_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	defer rows.Close()

	subs := []model.NewsletterSubscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func (db *DB) CountSubscribers(ctx context.Context) (int, int, error) {
	var total, active int
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_active = ? THEN 1 ELSE 0 END), 0)
		FROM newsletter_subscribers`), true,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("counting subscribers: %w", err)
	}
	return total, active, nil
}

// =========================================================================
// CONTACT REQUESTS
// =========================================================================

const contactColumns = `id, name, email, project_type, preferred_contact, message, is_read, created_at`

func scanContact(row scanner) (*model.ContactRequest, error) {
	var c model.ContactRequest
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.ProjectType, &c.PreferredContact, &c.Message, &c.IsRead, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateContact(ctx context.Context, req *model.ContactRequest) error {
	req.ID = xid.New().String()
	req.CreatedAt = now()
	req.IsRead = false

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO contact_requests (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		req.ID, req.Name, req.Email, req.ProjectType, req.PreferredContact, req.Message, req.IsRead, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting contact request: %w", err)
	}
	return nil
}

func (db *DB) ListContacts(ctx context.Context) ([]model.ContactRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contact_requests ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing contact requests: %w", err)
	}
	defer rows.Close()

	contacts := []model.ContactRequest{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact request: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (db *DB) SetContactRead(ctx context.Context, id string, read bool) (*model.ContactRequest, error) {
	res, err := db.conn.ExecContext(ctx,
		db.rebind(`UPDATE contact_requests SET is_read = ? WHERE id = ?`), read, id)
	if err != nil {
		return nil, fmt.Errorf("updating contact request %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return nil, apperror.NotFound("contact request", id)
	}

	c, err := scanContact(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+contactColumns+` FROM contact_requests WHERE id = ?`), id))
	if err != nil {
		return nil, fmt.Errorf("reading contact request %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) CountContacts(ctx context.Context) (int, int, error) {
	var total, unread int
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_read = ? THEN 1 ELSE 0 END), 0)
		FROM contact_requests`), false,
	).Scan(&total, &unread)
	if err != nil {
		return 0, 0, fmt.Errorf("counting contact requests: %w", err)
	}
	return total, unread, nil
}
