package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pigeon/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, email, username, hashed_password, avatar, status, last_connection, session_id, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = domain.StatusOffline
	}
	query := `
		INSERT INTO users (id, email, username, hashed_password, avatar, status, last_connection, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.Username,
		u.HashedPassword,
		u.Avatar,
		u.Status,
		u.LastConnection,
		u.SessionID,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY username ASC
		LIMIT ? OFFSET ?
	`
	return r.listUsers(ctx, query, limit, offset)
}

func (r *UserRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE status = 'online'
		ORDER BY last_connection DESC
	`
	return r.listUsers(ctx, query)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users
		SET email = ?, username = ?, hashed_password = ?, avatar = ?, status = ?,
		    last_connection = ?, session_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		u.Email,
		u.Username,
		u.HashedPassword,
		u.Avatar,
		u.Status,
		u.LastConnection,
		u.SessionID,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepo) SetPresence(ctx context.Context, id, status, sessionID string, at time.Time) error {
	query := `UPDATE users SET status = ?, session_id = ?, last_connection = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, sessionID, at, at, id); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (r *UserRepo) listUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := scanUserRow(rows, u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.HashedPassword,
		&u.Avatar,
		&u.Status,
		&u.LastConnection,
		&u.SessionID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(rows rowScanner, u *domain.User) error {
	if err := rows.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.HashedPassword,
		&u.Avatar,
		&u.Status,
		&u.LastConnection,
		&u.SessionID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return fmt.Errorf("scan user: %w", err)
	}
	return nil
}
