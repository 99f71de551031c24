package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pigeon/internal/domain"
)

type MessageRepo struct {
	db    *sql.DB
	users *UserRepo
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db, users: NewUserRepo(db)}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, recipient_id, content, attachments, received_at, read_at, edited, deleted, created_at, updated_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	attachments, err := encodeAttachments(m.Attachments)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (id, sender_id, recipient_id, content, attachments, received_at, read_at, edited, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID,
		m.SenderID,
		m.RecipientID,
		m.Content,
		attachments,
		m.ReceivedAt,
		m.ReadAt,
		m.Edited,
		m.Deleted,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	m.UpdatedAt = time.Now().UTC()
	attachments, err := encodeAttachments(m.Attachments)
	if err != nil {
		return err
	}
	query := `
		UPDATE messages
		SET content = ?, attachments = ?, received_at = ?, read_at = ?, edited = ?, deleted = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query,
		m.Content,
		attachments,
		m.ReceivedAt,
		m.ReadAt,
		m.Edited,
		m.Deleted,
		m.UpdatedAt,
		m.ID,
	); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userID, peerID string, offset, limit int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, peerID, peerID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) CountBetween(ctx context.Context, userID, peerID string) (int, error) {
	// Tombstoned messages stay listed, so they count toward the total.
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, peerID, peerID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) MarkAllReadFrom(ctx context.Context, senderID, recipientID string, at time.Time) error {
	// COALESCE keeps an existing received stamp; read always implies received.
	query := `
		UPDATE messages
		SET received_at = COALESCE(received_at, ?), read_at = ?, updated_at = ?
		WHERE sender_id = ? AND recipient_id = ? AND read_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, at, at, at, senderID, recipientID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (r *MessageRepo) Conversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	// Distinct peers ordered by most recent exchange. Per-peer details are
	// fetched individually; acceptable for the embedded store.
	query := `
		SELECT peer, MAX(created_at) AS last_at
		FROM (
			SELECT recipient_id AS peer, created_at FROM messages WHERE sender_id = ?
			UNION ALL
			SELECT sender_id AS peer, created_at FROM messages WHERE recipient_id = ?
		)
		GROUP BY peer
		ORDER BY last_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation peers: %w", err)
	}
	defer rows.Close()

	var peers []string
	for rows.Next() {
		var peer string
		var lastAt time.Time
		if err := rows.Scan(&peer, &lastAt); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peers = append(peers, peer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var res []*domain.ConversationSummary
	for _, peer := range peers {
		summary, err := r.conversationWith(ctx, userID, peer)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			res = append(res, summary)
		}
	}
	return res, nil
}

func (r *MessageRepo) conversationWith(ctx context.Context, userID, peerID string) (*domain.ConversationSummary, error) {
	peer, err := r.users.GetByID(ctx, peerID)
	if err != nil {
		return nil, err
	}
	if peer == nil {
		return nil, nil
	}

	msgs, err := r.ListBetween(ctx, userID, peerID, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var unread int
	unreadQuery := `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = ? AND recipient_id = ? AND read_at IS NULL
	`
	if err := r.db.QueryRowContext(ctx, unreadQuery, peerID, userID).Scan(&unread); err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	return &domain.ConversationSummary{
		Peer:        peer,
		LastMessage: msgs[0],
		UnreadCount: unread,
	}, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var attachments sql.NullString
	if err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.Content,
		&attachments,
		&m.ReceivedAt,
		&m.ReadAt,
		&m.Edited,
		&m.Deleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	return m, nil
}

func encodeAttachments(attachments []string) (any, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return string(b), nil
}
