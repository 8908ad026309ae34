// Package identity persists the local player's profile (nickname, stable
// UUID, avatar) in SQLite. Uses the pure-Go modernc.org/sqlite driver to
// avoid CGO dependencies.
package identity

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/parlorgames/parlor/internal/room"
)

// Avatars are the selectable avatar glyphs. Player.Avatar is an index
// into this list; index 0 is the default for new profiles.
var Avatars = []string{"🙂", "🦊", "🐸", "🐙", "🦉", "🐼", "🦀", "🐧"}

// Glyph renders an avatar index. Out-of-range indexes wrap, so a roster
// entry from a newer build still draws something.
func Glyph(avatar int) string {
	if avatar < 0 {
		avatar = -avatar
	}
	return Avatars[avatar%len(Avatars)]
}

// Store manages the SQLite database connection for profile persistence.
type Store struct {
	db *sql.DB
}

// Profile is the persisted local identity. The UUID is generated once and
// survives nickname and avatar changes, so remote rosters keep recognizing
// the same participant.
type Profile struct {
	Nickname string
	UUID     string
	Avatar   int
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("identity: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("identity: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("identity: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("identity: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("identity: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			nickname TEXT NOT NULL,
			uuid TEXT NOT NULL,
			avatar INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns the stored profile, or nil if none has been saved yet.
func (s *Store) Load() (*Profile, error) {
	var p Profile
	err := s.db.QueryRow(
		"SELECT nickname, uuid, avatar FROM profiles WHERE id = 1",
	).Scan(&p.Nickname, &p.UUID, &p.Avatar)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity: cannot query profile: %w", err)
	}

	return &p, nil
}

// Save upserts the profile. An empty UUID gets a fresh one; the avatar
// index is normalized into the glyph range.
func (s *Store) Save(p Profile) (*Profile, error) {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if p.Avatar < 0 || p.Avatar >= len(Avatars) {
		p.Avatar = 0
	}

	_, err := s.db.Exec(
		`INSERT INTO profiles (id, nickname, uuid, avatar, updated_at)
		 VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
			nickname = excluded.nickname,
			avatar = excluded.avatar,
			updated_at = CURRENT_TIMESTAMP`,
		p.Nickname, p.UUID, p.Avatar,
	)
	if err != nil {
		return nil, fmt.Errorf("identity: cannot save profile: %w", err)
	}

	return &p, nil
}

// Ensure loads the profile, creating one with the given nickname when none
// exists. A non-empty nickname also renames an existing profile.
func (s *Store) Ensure(nickname string) (*Profile, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}

	switch {
	case existing == nil:
		if nickname == "" {
			nickname = "player"
		}
		return s.Save(Profile{Nickname: nickname})
	case nickname != "" && nickname != existing.Nickname:
		existing.Nickname = nickname
		return s.Save(*existing)
	default:
		return existing, nil
	}
}

// Player converts the profile into a roster entry for the local
// participant. The player type is assigned later, when the participant
// hosts or joins a room.
func (p *Profile) Player() room.Player {
	return room.Player{
		ID:     p.UUID,
		Name:   p.Nickname,
		Avatar: p.Avatar,
	}
}
