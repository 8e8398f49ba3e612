package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/member"
)

const timeLayout = time.RFC3339Nano

// ErrNotFound is returned when no member matches.
var ErrNotFound = errors.New("member not found")

const selectColumns = `SELECT id, name, email, phone, plan_type, subscription_start_date, subscription_end_date,
	subscription_status, registration_fee, package_fee, membership_fees, discount, paid_amount,
	status, created_at, updated_at FROM member`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (domain.Member, error) {
	var m domain.Member
	var createdAt, updatedAt string
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Email,
		&m.Phone,
		&m.PlanType,
		&m.SubscriptionStartDate,
		&m.SubscriptionEndDate,
		&m.SubscriptionStatus,
		&m.RegistrationFee,
		&m.PackageFee,
		&m.MembershipFees,
		&m.Discount,
		&m.PaidAmount,
		&m.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Member{}, err
	}
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return m, nil
}

// Get loads a member through ex, which may be a transaction.
// PRE: id is non-empty
// POST: Returns ErrNotFound (wrapped) when absent
func Get(ctx context.Context, ex storage.Execer, id string) (domain.Member, error) {
	m, err := scanMember(ex.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

// Upsert writes every member column through ex.
// PRE: m has been validated
// POST: Row is inserted or fully updated
func Upsert(ctx context.Context, ex storage.Execer, m domain.Member) error {
	fields := []string{"id", "name", "email", "phone", "plan_type", "subscription_start_date",
		"subscription_end_date", "subscription_status", "registration_fee", "package_fee",
		"membership_fees", "discount", "paid_amount", "status", "created_at", "updated_at"}
	placeholders := make([]string, len(fields))
	var updates []string
	for i, f := range fields {
		placeholders[i] = "?"
		if f != "id" && f != "created_at" {
			updates = append(updates, f+"=excluded."+f)
		}
	}
	query := fmt.Sprintf(
		"INSERT INTO member (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	_, err := ex.ExecContext(ctx, query,
		m.ID,
		m.Name,
		m.Email,
		m.Phone,
		m.PlanType,
		m.SubscriptionStartDate,
		m.SubscriptionEndDate,
		m.SubscriptionStatus,
		m.RegistrationFee,
		m.PackageFee,
		m.MembershipFees,
		m.Discount,
		m.PaidAmount,
		m.Status,
		m.CreatedAt.UTC().Format(timeLayout),
		m.UpdatedAt.UTC().Format(timeLayout),
	)
	return err
}

// ApplyPatch writes a receipt patch through ex. The paid delta is added in SQL so
// concurrent writers cannot lose an increment.
// PRE: p was computed by domain.SideEffects
// POST: Returns an error wrapping ErrNotFound when the member does not exist
func ApplyPatch(ctx context.Context, ex storage.Execer, id string, p domain.Patch, now time.Time) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE member SET plan_type = ?, subscription_start_date = ?, subscription_end_date = ?,
		   subscription_status = ?, registration_fee = ?, package_fee = ?, membership_fees = ?,
		   discount = ?, paid_amount = MAX(0, paid_amount + ?), updated_at = ?
		 WHERE id = ?`,
		p.PlanType, p.SubscriptionStartDate, p.SubscriptionEndDate, p.SubscriptionStatus,
		p.RegistrationFee, p.PackageFee, p.MembershipFees, p.Discount, p.PaidDelta,
		now.UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AdjustPaid adds delta to the cumulative paid amount without touching the subscription.
// POST: paid_amount stays >= 0
func AdjustPaid(ctx context.Context, ex storage.Execer, id string, delta int64, now time.Time) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE member SET paid_amount = MAX(0, paid_amount + ?), updated_at = ? WHERE id = ?`,
		delta, now.UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// GetByID retrieves a Member by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Member, error) {
	return Get(ctx, s.db, id)
}

// Save persists a Member to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Member) error {
	return Upsert(ctx, s.db, entity)
}

// Delete removes a Member from the database.
// PRE: id is non-empty and the member has no receipts
// POST: Entity with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM member WHERE id = ?", id)
	return err
}

// SearchByName finds non-archived members whose name matches the query (case-insensitive LIKE).
// PRE: query is non-empty, limit > 0
// POST: Returns matching members ordered by name
func (s *SQLiteStore) SearchByName(ctx context.Context, query string, limit int) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE name LIKE ? AND status != ? ORDER BY name LIMIT ?",
		"%"+query+"%", domain.StatusArchived, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMembers(rows)
}

// listWhereClause builds the WHERE clause and args for List/Count queries.
func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.PlanType != "" {
		where += " AND plan_type = ?"
		args = append(args, filter.PlanType)
	}
	if filter.Search != "" {
		where += " AND (name LIKE ? OR email LIKE ? OR phone LIKE ?)"
		term := "%" + filter.Search + "%"
		args = append(args, term, term, term)
	}
	if filter.EndBefore != "" {
		where += " AND subscription_end_date != '' AND subscription_end_date <= ?"
		args = append(args, filter.EndBefore)
	}
	return where, args
}

// sortClause returns a safe ORDER BY clause. Only allowed columns are accepted.
func sortClause(filter ListFilter) string {
	allowed := map[string]string{
		"name": "name", "plan": "plan_type",
		"end": "subscription_end_date", "paid": "paid_amount",
		"status": "status",
	}
	col, ok := allowed[filter.Sort]
	if !ok {
		return " ORDER BY name ASC"
	}
	dir := "ASC"
	if filter.Dir == "desc" {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir
}

// Count returns the total number of members matching the filter.
// PRE: filter has valid parameters
// POST: Returns count >= 0
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member"+where, args...).Scan(&count)
	return count, err
}

// List retrieves a list of Members based on the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	where, args := listWhereClause(filter)
	query := selectColumns + where + sortClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMembers(rows)
}

func scanMembers(rows *sql.Rows) ([]domain.Member, error) {
	var results []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
