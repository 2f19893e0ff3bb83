/*
engineers.go - Client-side engineers

PURPOSE:
  Client engineers are the people who receive field technicians on site.
  Service entries reference one by ID; entry reads resolve the name.
  Admins manage them per client; technicians pick from the active set of
  the client they are reporting against.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldserve/billing-engine/billing"
)

// ClientEngineer is a client-side contact a service entry can reference.
type ClientEngineer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	ClientID  string
	IsActive  bool
	CreatedAt time.Time
}

// EngineerFilter narrows ListClientEngineers. Search matches name, email
// and phone case-insensitively.
type EngineerFilter struct {
	ClientID string
	Search   string
	IsActive *bool

	Page     int
	PageSize int
}

// SaveClientEngineer inserts or updates an engineer. The handler checks
// that the referenced client exists before calling this.
func (s *Store) SaveClientEngineer(ctx context.Context, e ClientEngineer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO client_engineers (id, name, email, phone, client_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			client_id = excluded.client_id,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Email, e.Phone, e.ClientID, e.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetClientEngineer retrieves an engineer by ID.
func (s *Store) GetClientEngineer(ctx context.Context, id string) (*ClientEngineer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e ClientEngineer
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, client_id, is_active, created_at FROM client_engineers WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.ClientID, &e.IsActive, &createdAt)

	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "client engineer", ID: id}
	}
	if err != nil {
		return nil, err
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// ListClientEngineers returns a filtered, paginated engineer listing
// ordered by name, plus the total match count.
func (s *Store) ListClientEngineers(ctx context.Context, f EngineerFilter) ([]ClientEngineer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := " WHERE 1=1"
	var args []any
	if f.ClientID != "" {
		where += " AND client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.IsActive != nil {
		where += " AND is_active = ?"
		args = append(args, *f.IsActive)
	}
	if f.Search != "" {
		where += ` AND (name LIKE ? COLLATE NOCASE
			OR email LIKE ? COLLATE NOCASE
			OR phone LIKE ? COLLATE NOCASE)`
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM client_engineers"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, name, email, phone, client_id, is_active, created_at FROM client_engineers" +
		where + " ORDER BY name"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var engineers []ClientEngineer
	for rows.Next() {
		var e ClientEngineer
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.ClientID, &e.IsActive, &createdAt); err != nil {
			return nil, 0, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		engineers = append(engineers, e)
	}
	return engineers, total, rows.Err()
}

// DeleteClientEngineer removes an engineer. Entries referencing it keep
// the ID and degrade to an empty resolved name.
func (s *Store) DeleteClientEngineer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM client_engineers WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "client engineer", id)
}

// SetClientEngineerActive toggles an engineer's active flag.
func (s *Store) SetClientEngineerActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE client_engineers SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "client engineer", id)
}
