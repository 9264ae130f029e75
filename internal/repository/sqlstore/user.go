package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

var (
	_ repository.UserRepository         = (*DB)(nil)
	_ repository.SubscriptionRepository = (*DB)(nil)
)

const userColumns = `id, subject, email, first_name, last_name, profile_image_url,
	is_premium, subscription_ref, is_admin, created_at, updated_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Subject, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL,
		&u.IsPremium, &u.SubscriptionRef, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser inserts a user on first login, or refreshes the profile of an
// existing one, in a single statement keyed on subject.
//
// The admin flag is OR-ed so a login can grant admin but never take it
// away. Premium state is owned by the payment webhook and is not touched.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	if user.Subject == "" {
		return apperror.ValidationFailed("subject", "user subject is required")
	}
	ts := now()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO users (id, subject, email, first_name, last_name, profile_image_url,
			is_premium, subscription_ref, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			profile_image_url = excluded.profile_image_url,
			is_admin = (users.is_admin OR excluded.is_admin),
			updated_at = excluded.updated_at`),
		xid.New().String(), user.Subject, strings.ToLower(strings.TrimSpace(user.Email)),
		user.FirstName, user.LastName, user.ProfileImageURL,
		false, user.IsAdmin, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", user.Subject, err)
	}

	stored, err := scanUser(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+userColumns+` FROM users WHERE subject = ?`), user.Subject))
	if err != nil {
		return fmt.Errorf("reading upserted user %s: %w", user.Subject, err)
	}
	*user = *stored
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at LIMIT 1`), email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) UpdateProfile(ctx context.Context, id, firstName, lastName, profileImageURL string) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE users SET first_name = ?, last_name = ?, profile_image_url = ?, updated_at = ?
		WHERE id = ?`),
		firstName, lastName, profileImageURL, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating profile %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return nil, apperror.NotFound("user", id)
	}
	return db.GetUserByID(ctx, id)
}

func (db *DB) SetAdmin(ctx context.Context, id string, admin bool) error {
	res, err := db.conn.ExecContext(ctx,
		db.rebind(`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`), admin, now(), id)
	if err != nil {
		return fmt.Errorf("setting admin on %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (db *DB) CountUsers(ctx context.Context) (repository.UserCounts, error) {
	var c repository.UserCounts
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_premium = ? THEN 1 ELSE 0 END), 0) FROM users`), true,
	).Scan(&c.Total, &c.Premium)
	if err != nil {
		return c, fmt.Errorf("counting users: %w", err)
	}
	return c, nil
}

// ApplyPremium is the idempotent half of webhook reconciliation.
//
// The ledger insert and the user update share one transaction: either the
// event is recorded AND the user is premium, or neither happened and the
// provider's retry will try again. A replayed event hits the primary key on
// payment_events, inserts nothing, and returns false.
func (db *DB) ApplyPremium(ctx context.Context, grant repository.PremiumGrant) (bool, error) {
	applied := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, db.rebind(`
			INSERT INTO payment_events (event_id, user_id, event_type, processed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (event_id) DO NOTHING`),
			grant.EventID, grant.UserID, grant.EventType, ts,
		)
		if err != nil {
			return fmt.Errorf("recording payment event %s: %w", grant.EventID, err)
		}
		if rowsAffected(res) == 0 {
			return nil
		}

		res, err = tx.ExecContext(ctx, db.rebind(`
			UPDATE users SET is_premium = ?, subscription_ref = ?, updated_at = ? WHERE id = ?`),
			true, grant.SubscriptionRef, ts, grant.UserID,
		)
		if err != nil {
			return fmt.Errorf("granting premium to %s: %w", grant.UserID, err)
		}
		if rowsAffected(res) == 0 {
			return apperror.NotFound("user", grant.UserID)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
