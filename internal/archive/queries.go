package archive

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/roleplayabyss/abyss/internal/errors"
	"github.com/roleplayabyss/abyss/internal/session"
)

// Session is one archived conversation.
type Session struct {
	ID        string `json:"id"`
	Character string `json:"character"`
	StartedAt int64  `json:"started_at"`
}

// Turn is one archived utterance.
type Turn struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// NewID creates a new ULID with a cryptographically secure entropy source.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateSession inserts a new archived session for the character and
// returns its ULID.
func CreateSession(db *sql.DB, characterName string) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	_, err = db.Exec(
		`INSERT INTO sessions (id, character, started_at) VALUES (?, ?, ?)`,
		id, characterName, time.Now().Unix(),
	)
	if err != nil {
		return "", errors.NewStorage("archive session", err)
	}
	return id, nil
}

// AppendTurn appends a turn to an archived session. Seq is assigned as
// one past the current maximum, so insertion order is preserved.
func AppendTurn(db *sql.DB, sessionID string, role session.Role, content string) error {
	id, err := NewID()
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(
		`INSERT INTO turns (id, session_id, seq, role, content, created_at)
		 SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		 FROM turns WHERE session_id = ?`,
		id, sessionID, string(role), content, time.Now().Unix(), sessionID,
	)
	if err != nil {
		return errors.NewStorage("archive turn", err)
	}
	return nil
}

// ListSessions returns archived sessions newest first. An empty
// characterName lists every character's sessions.
func ListSessions(db *sql.DB, characterName string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, character, started_at FROM sessions`
	args := []any{}
	if characterName != "" {
		query += ` WHERE character = ?`
		args = append(args, characterName)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewStorage("list sessions", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Character, &s.StartedAt); err != nil {
			return nil, errors.NewStorage("list sessions", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list sessions", err)
	}
	return sessions, nil
}

// GetSession retrieves one archived session by ID.
func GetSession(db *sql.DB, id string) (*Session, error) {
	var s Session
	err := db.QueryRow(
		`SELECT id, character, started_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Character, &s.StartedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFound(id)
	}
	if err != nil {
		return nil, errors.NewStorage("get session", err)
	}
	return &s, nil
}

// ListTurns returns the turns of an archived session in seq order.
// Returns NOT_FOUND if the session does not exist.
func ListTurns(db *sql.DB, sessionID string) ([]Turn, error) {
	if _, err := GetSession(db, sessionID); err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT id, session_id, seq, role, content, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, errors.NewStorage("list turns", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, errors.NewStorage("list turns", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list turns", err)
	}
	return turns, nil
}
