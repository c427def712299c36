// Package store persists chat-user authorization, saved device endpoints,
// generated access cards and the operation audit log in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotspotctl/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	chat_user_id  INTEGER PRIMARY KEY,
	username      TEXT NOT NULL DEFAULT '',
	first_name    TEXT NOT NULL DEFAULT '',
	authorized    INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	last_activity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS devices (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_user_id    INTEGER NOT NULL,
	name            TEXT NOT NULL,
	host            TEXT NOT NULL,
	port            INTEGER NOT NULL,
	username        TEXT NOT NULL,
	password_sealed TEXT NOT NULL,
	use_tls         INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	FOREIGN KEY (chat_user_id) REFERENCES users (chat_user_id)
);

CREATE TABLE IF NOT EXISTS cards (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id      TEXT NOT NULL,
	chat_user_id  INTEGER NOT NULL,
	username      TEXT NOT NULL,
	password      TEXT NOT NULL,
	profile       TEXT NOT NULL,
	data_quota    TEXT NOT NULL,
	time_quota    TEXT NOT NULL,
	validity_days INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	FOREIGN KEY (chat_user_id) REFERENCES users (chat_user_id)
);

CREATE TABLE IF NOT EXISTS operation_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_user_id INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	details      TEXT NOT NULL DEFAULT '',
	success      INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	FOREIGN KEY (chat_user_id) REFERENCES users (chat_user_id)
);

CREATE INDEX IF NOT EXISTS idx_devices_user ON devices (chat_user_id);
CREATE INDEX IF NOT EXISTS idx_cards_user ON cards (chat_user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_oplog_user ON operation_log (chat_user_id, created_at);
`

// Store wraps the SQLite database and the credential vault.
type Store struct {
	db    *sql.DB
	vault *Vault
}

// Open opens (and migrates) the database at path.
func Open(path string, vault *Vault) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, vault: vault}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser records the chat user and refreshes their activity timestamp.
func (s *Store) EnsureUser(userID int64, username, firstName string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO users (chat_user_id, username, first_name, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (chat_user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_activity = excluded.last_activity`,
		userID, username, firstName, now, now,
	)
	return err
}

// Authorize marks the user as allowed to operate devices.
func (s *Store) Authorize(userID int64) error {
	res, err := s.db.Exec(`UPDATE users SET authorized = 1 WHERE chat_user_id = ?`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAuthorized reports whether the user may operate devices. Unknown users
// are unauthorized, not an error.
func (s *Store) IsAuthorized(userID int64) (bool, error) {
	var authorized int
	err := s.db.QueryRow(`SELECT authorized FROM users WHERE chat_user_id = ?`, userID).Scan(&authorized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return authorized != 0, nil
}

// SaveDevice persists an endpoint for the user with the password sealed.
func (s *Store) SaveDevice(userID int64, name string, ep model.Endpoint) (int64, error) {
	sealed, err := s.vault.Seal(ep.Password)
	if err != nil {
		return 0, err
	}
	if name == "" {
		name = ep.Addr()
	}
	useTLS := 0
	if ep.UseTLS {
		useTLS = 1
	}

	res, err := s.db.Exec(
		`INSERT INTO devices (chat_user_id, name, host, port, username, password_sealed, use_tls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, name, ep.Host, ep.Port, ep.Username, sealed, useTLS, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Device loads one of the user's saved endpoints, unsealing the password.
// The lookup is scoped to the owner; another user's device ID reports
// ErrNotFound rather than leaking the credential.
func (s *Store) Device(userID, id int64) (model.Endpoint, error) {
	var ep model.Endpoint
	var sealed string
	var useTLS int
	err := s.db.QueryRow(
		`SELECT host, port, username, password_sealed, use_tls
		 FROM devices WHERE id = ? AND chat_user_id = ?`, id, userID,
	).Scan(&ep.Host, &ep.Port, &ep.Username, &sealed, &useTLS)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Endpoint{}, ErrNotFound
	}
	if err != nil {
		return model.Endpoint{}, err
	}

	ep.Password, err = s.vault.Open(sealed)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("unseal device %d: %w", id, err)
	}
	ep.UseTLS = useTLS != 0
	return ep, nil
}

// Devices lists the user's saved devices, newest first, passwords excluded.
func (s *Store) Devices(userID int64) ([]model.SavedDevice, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_user_id, name, host, port, username, use_tls, created_at
		 FROM devices WHERE chat_user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SavedDevice
	for rows.Next() {
		var d model.SavedDevice
		var useTLS int
		var created int64
		if err := rows.Scan(&d.ID, &d.ChatUserID, &d.Name, &d.Host, &d.Port, &d.Username, &useTLS, &created); err != nil {
			return nil, err
		}
		d.UseTLS = useTLS != 0
		d.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveCards persists a generated batch in one transaction.
func (s *Store) SaveCards(userID int64, batchID string, cardList []model.AccessCard) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT INTO cards (batch_id, chat_user_id, username, password, profile, data_quota, time_quota, validity_days, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cardList {
		if _, err := stmt.Exec(
			batchID, userID, c.Username, c.Password, c.Profile,
			c.DataQuota, c.TimeQuota, c.ValidityDays, c.CreatedAt.Unix(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Cards returns the user's most recent cards, newest first.
func (s *Store) Cards(userID int64, limit int) ([]model.AccessCard, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT username, password, profile, data_quota, time_quota, validity_days, created_at
		 FROM cards WHERE chat_user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccessCard
	for rows.Next() {
		var c model.AccessCard
		var created int64
		if err := rows.Scan(&c.Username, &c.Password, &c.Profile, &c.DataQuota, &c.TimeQuota, &c.ValidityDays, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// LogOperation appends one audit entry.
func (s *Store) LogOperation(userID int64, kind, details string, success bool, errText string) error {
	ok := 0
	if success {
		ok = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO operation_log (chat_user_id, kind, details, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, kind, details, ok, errText, time.Now().Unix(),
	)
	return err
}

// OperationLog returns the user's most recent audit entries, newest first.
func (s *Store) OperationLog(userID int64, limit int) ([]model.OperationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, chat_user_id, kind, details, success, error, created_at
		 FROM operation_log WHERE chat_user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OperationLog
	for rows.Next() {
		var entry model.OperationLog
		var ok int
		var created int64
		if err := rows.Scan(&entry.ID, &entry.ChatUserID, &entry.Kind, &entry.Details, &ok, &entry.Error, &created); err != nil {
			return nil, err
		}
		entry.Success = ok != 0
		entry.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// CleanupBefore removes audit entries older than the cutoff.
func (s *Store) CleanupBefore(cutoff time.Time) error {
	_, err := s.db.Exec(`DELETE FROM operation_log WHERE created_at < ?`, cutoff.Unix())
	return err
}
