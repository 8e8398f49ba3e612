package catalog

import (
	"context"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new catalog store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ListPackages returns the master packages in configured order.
// The order matters: catalog lookups take the first structural match.
// POST: Returns entries ordered by position, then id
func (s *SQLiteStore) ListPackages(ctx context.Context) (plan.Catalog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, duration_type, duration_months, price, registration_fee, discount, payment_method
		 FROM master_package ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var c plan.Catalog
	for rows.Next() {
		var e plan.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.DurationType, &e.DurationMonths, &e.Price,
			&e.RegistrationFee, &e.Discount, &e.PaymentMethod); err != nil {
			return nil, err
		}
		c = append(c, e)
	}
	return c, rows.Err()
}

// SavePackage upserts a master package. New packages are appended to the end of the order.
// PRE: e.ID and e.Name are non-empty
// POST: Package is persisted
func (s *SQLiteStore) SavePackage(ctx context.Context, e plan.CatalogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO master_package (id, name, duration_type, duration_months, price, registration_fee, discount, payment_method, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM master_package))
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, duration_type=excluded.duration_type, duration_months=excluded.duration_months,
		   price=excluded.price, registration_fee=excluded.registration_fee, discount=excluded.discount,
		   payment_method=excluded.payment_method`,
		e.ID, e.Name, e.DurationType, e.DurationMonths, e.Price, e.RegistrationFee, e.Discount, e.PaymentMethod)
	return err
}

// DeletePackage removes a master package.
func (s *SQLiteStore) DeletePackage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM master_package WHERE id = ?`, id)
	return err
}

// ListTaxes returns tax settings ordered by name.
func (s *SQLiteStore) ListTaxes(ctx context.Context, activeOnly bool) ([]tax.Rule, error) {
	query := `SELECT id, name, rate, inclusive, active FROM tax_setting`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []tax.Rule
	for rows.Next() {
		var r tax.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Rate, &r.Inclusive, &r.Active); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveTax upserts a tax setting.
// PRE: r has been validated
// POST: Tax setting is persisted
func (s *SQLiteStore) SaveTax(ctx context.Context, r tax.Rule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tax_setting (id, name, rate, inclusive, active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, rate=excluded.rate,
		   inclusive=excluded.inclusive, active=excluded.active`,
		r.ID, r.Name, r.Rate, r.Inclusive, r.Active)
	return err
}

// DeleteTax removes a tax setting.
func (s *SQLiteStore) DeleteTax(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tax_setting WHERE id = ?`, id)
	return err
}
