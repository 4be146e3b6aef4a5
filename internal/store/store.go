// Package store persists user profiles and conversation history in SQLite.
// It is the sole writer of profile records: the dialogue layer and the
// matchmaking engine only ever read through it.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested record does not exist. Callers must
// treat it distinctly from backend failure: an absent profile is an expected
// condition, a broken store is not.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database with methods for profiles and chat messages.
type Store struct {
	db *sql.DB
}

// StoredProfile pairs a profile with the identifier it is keyed by.
type StoredProfile struct {
	UserID  string
	Profile *profile.Profile
}

// Message is one persisted direct-message turn, inbound or outbound.
type Message struct {
	ChatID       string
	MessageID    string
	SenderUserID string
	Content      string
	CreatedAt    time.Time
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "sophi.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfile fetches one profile by user identifier. Returns ErrNotFound when
// the user has no stored profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile %s: %w", userID, err)
	}

	p, err := profile.UnmarshalStrict([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored profile %s: %w", userID, err)
	}

	return p, nil
}

// PutProfile overwrites the stored profile for userID wholesale. There is no
// partial merge at this layer; callers merge fragments before writing.
func (s *Store) PutProfile(ctx context.Context, userID string, p *profile.Profile) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if p == nil {
		return errors.New("profile is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", userID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		userID, string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("storing profile %s: %w", userID, err)
	}

	return nil
}

// ScanProfiles returns the whole population in first-seen insertion order. That
// order is stable across runs and is the documented tie-break order for
// matchmaking.
func (s *Store) ScanProfiles(ctx context.Context) ([]StoredProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, profile FROM user_profiles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("scanning profiles: %w", err)
	}
	defer rows.Close()

	var all []StoredProfile
	for rows.Next() {
		var userID, raw string
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}

		p, err := profile.UnmarshalStrict([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("stored profile %s: %w", userID, err)
		}

		all = append(all, StoredProfile{UserID: userID, Profile: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}

	return all, nil
}

// AppendMessage persists one conversation turn for later history reconstruction.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	if m.ChatID == "" || m.MessageID == "" {
		return errors.New("chat id and message id are required")
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (chat_id, message_id, sender_user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET content = excluded.content`,
		m.ChatID, m.MessageID, m.SenderUserID, m.Content, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storing message %s/%s: %w", m.ChatID, m.MessageID, err)
	}

	return nil
}

// RecentMessages returns up to limit most recent messages for a chat, oldest
// first, ready to be replayed as conversational context.
func (s *Store) RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, message_id, sender_user_id, content, created_at
		FROM chat_messages WHERE chat_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ChatID, &m.MessageID, &m.SenderUserID, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = ts
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(name string) (int, error) {
	base := strings.TrimSuffix(name, ".sql")
	idx := strings.Index(base, "_")
	if idx > 0 {
		base = base[:idx]
	}
	version, err := strconv.Atoi(base)
	if err != nil {
		return 0, fmt.Errorf("migration %q has no numeric version prefix: %w", name, err)
	}
	return version, nil
}
