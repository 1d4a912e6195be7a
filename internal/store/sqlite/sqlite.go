package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/arview-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function instead of the
// embedded schema. Useful for tests that need a custom fixture.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, now, now,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, role, deleted, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted = 0`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND deleted = 0`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// ListUsers lists all non-deleted users.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted = 0 ORDER BY email`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdatePassword replaces the password hash of a user.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND deleted = 0`
	result, err := s.db.ExecContext(ctx, query, passwordHash, s.now(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(result, "user", id)
}

// UpdateUser saves email, names and role of an active user.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *store.User) error {
	user.UpdatedAt = s.now()

	query := `
		UPDATE users SET email = ?, first_name = ?, last_name = ?, role = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Email, user.FirstName, user.LastName, user.Role, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(result, "user", user.ID)
}

// DeleteUser soft-deletes a user and removes their memberships and issued tickets.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`, s.now(), id,
		)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if err := expectAffected(result, "user", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE started_by = ?`, id); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		return nil
	})
}

// CountUsers counts non-deleted users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts a room and its members in one transaction.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Type == "" {
		room.Type = store.RoomTypePatient
	}
	now := s.now()
	room.CreatedAt, room.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO rooms (id, name, type, patient_id, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			room.ID, room.Name, room.Type, room.PatientID, room.CreatedBy, now, now,
		); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		return replaceMembers(ctx, tx, room.ID, room.MemberIDs)
	})
}

const roomColumns = `id, name, type, patient_id, created_by, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*store.Room, error) {
	var room store.Room
	var patientID sql.NullString
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Type,
		&patientID,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if patientID.Valid {
		room.PatientID = &patientID.String
	}
	room.MemberIDs = []string{}
	return &room, nil
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	if err := s.attachMembers(ctx, []*store.Room{room}); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms lists every room.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY created_at, id`
	return s.queryRooms(ctx, query)
}

// ListRoomsForUser lists rooms the user created or is a member of.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]*store.Room, error) {
	query := `
		SELECT ` + roomColumns + ` FROM rooms
		WHERE created_by = ?
		   OR id IN (SELECT room_id FROM room_members WHERE user_id = ?)
		ORDER BY created_at, id
	`
	return s.queryRooms(ctx, query, userID, userID)
}

func (s *SQLiteStore) queryRooms(ctx context.Context, query string, args ...any) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	// Release the single connection before loading members.
	rows.Close()

	if err := s.attachMembers(ctx, rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *SQLiteStore) attachMembers(ctx context.Context, rooms []*store.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	byID := make(map[string]*store.Room, len(rooms))
	for _, room := range rooms {
		byID[room.ID] = room
	}

	ids := make([]any, 0, len(rooms))
	for id := range byID {
		ids = append(ids, id)
	}
	query := `SELECT room_id, user_id FROM room_members WHERE room_id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `) ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID, userID string
		if err := rows.Scan(&roomID, &userID); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		if room, ok := byID[roomID]; ok {
			room.MemberIDs = append(room.MemberIDs, userID)
		}
	}
	return rows.Err()
}

// UpdateRoom updates room attributes and replaces its member set.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, room *store.Room) error {
	room.UpdatedAt = s.now()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE rooms SET name = ?, type = ?, patient_id = ?, updated_at = ? WHERE id = ?`
		result, err := tx.ExecContext(ctx, query, room.Name, room.Type, room.PatientID, room.UpdatedAt, room.ID)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if err := expectAffected(result, "room", room.ID); err != nil {
			return err
		}
		return replaceMembers(ctx, tx, room.ID, room.MemberIDs)
	})
}

// DeleteRoom removes a room; memberships and tickets cascade.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return expectAffected(result, "room", id)
}

// RoomCreator returns the id of the user who created the room.
func (s *SQLiteStore) RoomCreator(ctx context.Context, roomID string) (string, error) {
	var createdBy string
	err := s.db.QueryRowContext(ctx, `SELECT created_by FROM rooms WHERE id = ?`, roomID).Scan(&createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
		}
		return "", fmt.Errorf("query room creator: %w", err)
	}
	return createdBy, nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE user_id = ? AND room_id = ?`, userID, roomID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

func replaceMembers(ctx context.Context, tx *sql.Tx, roomID string, memberIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, userID,
		); err != nil {
			return fmt.Errorf("insert member %s: %w", userID, err)
		}
	}
	return nil
}

// ==== TicketStore implementation ====

// CreateTicket inserts a pairing ticket unless another ticket with the same pin
// is still live at ticket.CreatedAt, in which case it returns store.ErrConflict.
// The check and the insert run as one statement.
func (s *SQLiteStore) CreateTicket(ctx context.Context, ticket *store.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	query := `
		INSERT INTO connections (id, pin_code, started_by, room_id, created_at, valid_until)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM connections WHERE pin_code = ? AND valid_until >= ?
		)
	`
	createdAt := ticket.CreatedAt.UTC()
	result, err := s.db.ExecContext(ctx, query,
		ticket.ID, ticket.PinCode, ticket.StartedBy, ticket.RoomID, createdAt, ticket.ValidUntil.UTC(),
		ticket.PinCode, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pin %s: %w", ticket.PinCode, store.ErrConflict)
	}
	return nil
}

// GetTicketByPin returns the most recently issued ticket with the pin code.
func (s *SQLiteStore) GetTicketByPin(ctx context.Context, pinCode string) (*store.Ticket, error) {
	query := `
		SELECT id, pin_code, started_by, room_id, created_at, valid_until
		FROM connections
		WHERE pin_code = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	var ticket store.Ticket
	err := s.db.QueryRowContext(ctx, query, pinCode).Scan(
		&ticket.ID,
		&ticket.PinCode,
		&ticket.StartedBy,
		&ticket.RoomID,
		&ticket.CreatedAt,
		&ticket.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query ticket: %w", err)
	}
	return &ticket, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func expectAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
