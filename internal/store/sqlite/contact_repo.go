package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pigeon/internal/domain"
)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

var _ domain.ContactRepository = (*ContactRepo)(nil)

const contactColumns = `id, user_id, contact_id, status, initiated_by, created_at, updated_at`

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	query := `
		INSERT INTO contacts (id, user_id, contact_id, status, initiated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.ContactID, c.Status, c.InitiatedBy, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	return r.scanContact(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
}

func (r *ContactRepo) GetPair(ctx context.Context, userID, contactID string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ? AND contact_id = ?`
	return r.scanContact(ctx, query, userID, contactID)
}

func (r *ContactRepo) ListForUser(ctx context.Context, userID, status string) ([]*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var res []*domain.Contact
	for rows.Next() {
		c := &domain.Contact{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContactID, &c.Status, &c.InitiatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	query := `UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, c.Status, c.UpdatedAt, c.ID); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) DeletePair(ctx context.Context, userID, contactID string) error {
	query := `DELETE FROM contacts WHERE user_id = ? AND contact_id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, contactID); err != nil {
		return fmt.Errorf("delete contact pair: %w", err)
	}
	return nil
}

func (r *ContactRepo) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	query := `SELECT COUNT(*) FROM contacts WHERE user_id = ? AND contact_id = ? AND status = 'blocked'`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID, targetID).Scan(&count); err != nil {
		return false, fmt.Errorf("check blocked: %w", err)
	}
	return count > 0, nil
}

func (r *ContactRepo) scanContact(ctx context.Context, query string, args ...any) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &c.ContactID, &c.Status, &c.InitiatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}
