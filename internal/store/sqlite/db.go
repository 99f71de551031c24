package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate runs a simple, idempotent set of CREATE TABLE / CREATE INDEX
// statements aligned with the MongoDB collections.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email VARCHAR(100) UNIQUE NOT NULL,
			username VARCHAR(50) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			avatar TEXT DEFAULT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'offline',
			last_connection DATETIME DEFAULT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			content TEXT NOT NULL,
			attachments TEXT DEFAULT NULL,
			received_at DATETIME DEFAULT NULL,
			read_at DATETIME DEFAULT NULL,
			edited BOOLEAN DEFAULT 0,
			deleted BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (sender_id) REFERENCES users(id),
			FOREIGN KEY (recipient_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			initiated_by TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, contact_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (contact_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type VARCHAR(20) NOT NULL,
			related_id TEXT NOT NULL,
			from_user_id TEXT NOT NULL,
			content VARCHAR(200) DEFAULT '',
			read BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		`CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender_recipient ON messages(sender_id, recipient_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_read ON messages(recipient_id, read_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
