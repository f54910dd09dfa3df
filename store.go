package main

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists session outcomes and answers group membership from
// sqlite. It implements both Store and MembershipStore.
type SQLStore struct {
	db *sqlx.DB
}

func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dsn, err)
	}
	s := &SQLStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS session (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT 'running',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS session_player (
		session_id TEXT NOT NULL,
		player_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL,
		is_playing INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (session_id) REFERENCES session(id),
		UNIQUE(session_id, player_id)
	);
	CREATE TABLE IF NOT EXISTS group_member (
		group_id TEXT NOT NULL,
		player_id TEXT NOT NULL,
		UNIQUE(group_id, player_id)
	);
	CREATE INDEX IF NOT EXISTS idx_session_player_lookup ON session_player(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		log.Printf("store init error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// PersistPlayers records the session and its seated players (roles
// included) at session start.
func (s *SQLStore) PersistPlayers(sessionID string, players []Player) error {
	if len(players) == 0 {
		return nil
	}
	// group id lives on the session row; players carry it via the caller
	for _, p := range players {
		_, err := s.db.Exec(`
			INSERT INTO session_player (session_id, player_id, display_name, role)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, player_id) DO UPDATE SET role = excluded.role`,
			sessionID, p.ID, p.DisplayName, string(p.Role))
		if err != nil {
			return fmt.Errorf("persist player %s: %w", p.ID, err)
		}
	}
	return nil
}

// CreateSession records the session row itself.
func (s *SQLStore) CreateSession(sessionID, groupID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO session (id, group_id) VALUES (?, ?)`, sessionID, groupID)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return nil
}

// PersistResult stores the final result at session end.
func (s *SQLStore) PersistResult(sessionID string, result GameResult) error {
	_, err := s.db.Exec(`UPDATE session SET result = ? WHERE id = ?`, string(result), sessionID)
	if err != nil {
		return fmt.Errorf("persist result for %s: %w", sessionID, err)
	}
	return nil
}

// MarkNotPlaying flags the session's players as no longer in a game, when
// the finished state is forced.
func (s *SQLStore) MarkNotPlaying(sessionID string) error {
	_, err := s.db.Exec(`UPDATE session_player SET is_playing = 0 WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("mark not playing for %s: %w", sessionID, err)
	}
	return nil
}

// IsMember answers whether a participant belongs to a chat group.
func (s *SQLStore) IsMember(groupID, userID string) (bool, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM group_member WHERE group_id = ? AND player_id = ?`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("membership lookup %s/%s: %w", groupID, userID, err)
	}
	return count > 0, nil
}

// AddMember registers a participant in a chat group. Used by the shell when
// a group syncs its roster.
func (s *SQLStore) AddMember(groupID, userID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO group_member (group_id, player_id) VALUES (?, ?)`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add member %s/%s: %w", groupID, userID, err)
	}
	return nil
}
