/*
companies.go - Field-technician companies

PURPOSE:
  Technicians belong to a company; the company scopes the co-technician
  view a technician picks additional helpers from. Companies are
  soft-deactivated like clients and data centers.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldserve/billing-engine/billing"
)

// FTCompany is a company field technicians belong to.
type FTCompany struct {
	ID        string
	Name      string
	Address   string
	Email     string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
}

// CompanyFilter narrows ListFTCompanies. Search matches name, address,
// email and phone case-insensitively.
type CompanyFilter struct {
	Search   string
	IsActive *bool

	Page     int
	PageSize int
}

// SaveFTCompany inserts or updates a company.
func (s *Store) SaveFTCompany(ctx context.Context, c FTCompany) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO ft_companies (id, name, address, email, phone, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			email = excluded.email,
			phone = excluded.phone,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Address, c.Email, c.Phone, c.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetFTCompany retrieves a company by ID.
func (s *Store) GetFTCompany(ctx context.Context, id string) (*FTCompany, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c FTCompany
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, address, email, phone, is_active, created_at FROM ft_companies WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Address, &c.Email, &c.Phone, &c.IsActive, &createdAt)

	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "company", ID: id}
	}
	if err != nil {
		return nil, err
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListFTCompanies returns a filtered, paginated company listing ordered
// by name, plus the total match count.
func (s *Store) ListFTCompanies(ctx context.Context, f CompanyFilter) ([]FTCompany, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := " WHERE 1=1"
	var args []any
	if f.IsActive != nil {
		where += " AND is_active = ?"
		args = append(args, *f.IsActive)
	}
	if f.Search != "" {
		where += ` AND (name LIKE ? COLLATE NOCASE
			OR address LIKE ? COLLATE NOCASE
			OR email LIKE ? COLLATE NOCASE
			OR phone LIKE ? COLLATE NOCASE)`
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ft_companies"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, name, address, email, phone, is_active, created_at FROM ft_companies" +
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

	var companies []FTCompany
	for rows.Next() {
		var c FTCompany
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Email, &c.Phone, &c.IsActive, &createdAt); err != nil {
			return nil, 0, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		companies = append(companies, c)
	}
	return companies, total, rows.Err()
}

// SetFTCompanyActive toggles a company's active flag.
func (s *Store) SetFTCompanyActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE ft_companies SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "company", id)
}
