package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/payment"
	domain "gymdesk/internal/domain/receipt"
	"gymdesk/internal/domain/tax"
)

const timeLayout = time.RFC3339Nano

const counterName = "receipt"

// Store errors.
var (
	ErrNotFound   = errors.New("receipt not found")
	ErrSuperseded = errors.New("receipt was superseded concurrently")
)

const columns = `id, receipt_number, sequence, member_id, member_name, plan_type,
	subscription_start_date, subscription_end_date, registration_fee, package_fee, discount,
	base_amount, tax_amount, taxes, amount, amount_paid, due_amount, payment_method, notes,
	transaction_type, receipt_tag, original_receipt_id, version_number, is_current_version,
	superseded_at, created_at, created_by`

const selectColumns = "SELECT " + columns + " FROM receipt"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new receipt store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (domain.Receipt, error) {
	var r domain.Receipt
	var taxes, createdAt string
	var supersededAt sql.NullString
	var tt, tag string
	err := row.Scan(
		&r.ID,
		&r.ReceiptNumber,
		&r.Sequence,
		&r.MemberID,
		&r.MemberName,
		&r.PlanType,
		&r.SubscriptionStartDate,
		&r.SubscriptionEndDate,
		&r.RegistrationFee,
		&r.PackageFee,
		&r.Discount,
		&r.BaseAmount,
		&r.TaxAmount,
		&taxes,
		&r.Amount,
		&r.AmountPaid,
		&r.DueAmount,
		&r.PaymentMethod,
		&r.Notes,
		&tt,
		&tag,
		&r.OriginalReceiptID,
		&r.VersionNumber,
		&r.IsCurrentVersion,
		&supersededAt,
		&createdAt,
		&r.CreatedBy,
	)
	if err != nil {
		return domain.Receipt{}, err
	}
	r.TransactionType = payment.TransactionType(tt)
	r.ReceiptTag = payment.ReceiptTag(tag)
	if taxes != "" {
		var lines []tax.Line
		if err := json.Unmarshal([]byte(taxes), &lines); err != nil {
			return domain.Receipt{}, fmt.Errorf("decode taxes for receipt %s: %w", r.ID, err)
		}
		if len(lines) > 0 {
			r.Taxes = lines
		}
	}
	if supersededAt.Valid && supersededAt.String != "" {
		if t, err := time.Parse(timeLayout, supersededAt.String); err == nil {
			r.SupersededAt = &t
		}
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return r, nil
}

func scanReceipts(rows *sql.Rows) ([]domain.Receipt, error) {
	var results []domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Get loads one receipt through ex, which may be a transaction.
// PRE: id is non-empty
// POST: Returns an error wrapping ErrNotFound when absent
func Get(ctx context.Context, ex storage.Execer, id string) (domain.Receipt, error) {
	r, err := scanReceipt(ex.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Insert writes a new receipt row.
// PRE: r has been validated
// POST: Row is inserted; the ID must be new
func Insert(ctx context.Context, ex storage.Execer, r domain.Receipt) error {
	taxes := []byte("[]")
	if len(r.Taxes) > 0 {
		b, err := json.Marshal(r.Taxes)
		if err != nil {
			return err
		}
		taxes = b
	}
	var supersededAt any
	if r.SupersededAt != nil {
		supersededAt = r.SupersededAt.UTC().Format(timeLayout)
	}
	_, err := ex.ExecContext(ctx,
		"INSERT INTO receipt ("+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.ReceiptNumber,
		r.Sequence,
		r.MemberID,
		r.MemberName,
		r.PlanType,
		r.SubscriptionStartDate,
		r.SubscriptionEndDate,
		r.RegistrationFee,
		r.PackageFee,
		r.Discount,
		r.BaseAmount,
		r.TaxAmount,
		string(taxes),
		r.Amount,
		r.AmountPaid,
		r.DueAmount,
		r.PaymentMethod,
		r.Notes,
		string(r.TransactionType),
		string(r.ReceiptTag),
		r.OriginalReceiptID,
		r.VersionNumber,
		r.IsCurrentVersion,
		supersededAt,
		r.CreatedAt.UTC().Format(timeLayout),
		r.CreatedBy,
	)
	return err
}

// MarkSuperseded flips the current flag of id off and stamps supersededAt.
// PRE: id is the current version
// POST: Returns ErrSuperseded if another writer already superseded it
func MarkSuperseded(ctx context.Context, ex storage.Execer, id string, at time.Time) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE receipt SET is_current_version = 0, superseded_at = ? WHERE id = ? AND is_current_version = 1`,
		at.UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	return nil
}

// Reinstate makes id the current version again.
// POST: is_current_version = 1, superseded_at cleared
func Reinstate(ctx context.Context, ex storage.Execer, id string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE receipt SET is_current_version = 1, superseded_at = NULL WHERE id = ?`, id)
	return err
}

// DeleteRow removes a single receipt version.
// POST: Returns an error wrapping ErrNotFound if nothing was deleted
func DeleteRow(ctx context.Context, ex storage.Execer, id string) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM receipt WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// LatestInChain returns the highest remaining version of a chain.
// PRE: chainID is the ID of the first version
// POST: Returns an error wrapping ErrNotFound when the chain is empty
func LatestInChain(ctx context.Context, ex storage.Execer, chainID string) (domain.Receipt, error) {
	return chainEdge(ctx, ex, chainID, "DESC")
}

// EarliestInChain returns the lowest remaining version of a chain.
func EarliestInChain(ctx context.Context, ex storage.Execer, chainID string) (domain.Receipt, error) {
	return chainEdge(ctx, ex, chainID, "ASC")
}

func chainEdge(ctx context.Context, ex storage.Execer, chainID, dir string) (domain.Receipt, error) {
	r, err := scanReceipt(ex.QueryRowContext(ctx,
		selectColumns+` WHERE id = ? OR original_receipt_id = ? ORDER BY version_number `+dir+` LIMIT 1`,
		chainID, chainID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Receipt{}, fmt.Errorf("%w: chain %s", ErrNotFound, chainID)
	}
	return r, err
}

// RelinkChain points the remaining versions of a chain at a new first version.
// Used when the first version of a chain is deleted.
func RelinkChain(ctx context.Context, ex storage.Execer, oldChainID, newChainID string) error {
	if _, err := ex.ExecContext(ctx,
		`UPDATE receipt SET original_receipt_id = '' WHERE id = ?`, newChainID); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx,
		`UPDATE receipt SET original_receipt_id = ? WHERE original_receipt_id = ? AND id != ?`,
		newChainID, oldChainID, newChainID)
	return err
}

// CountCurrent counts the member's current receipts through ex.
func CountCurrent(ctx context.Context, ex storage.Execer, memberID string) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM receipt WHERE member_id = ? AND is_current_version = 1`, memberID).Scan(&n)
	return n, err
}

// NextSequence reserves the next receipt sequence.
// POST: Returned values are strictly increasing across calls
func NextSequence(ctx context.Context, ex storage.Execer) (int64, error) {
	var seq int64
	err := ex.QueryRowContext(ctx,
		`INSERT INTO receipt_counter (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`, counterName).Scan(&seq)
	return seq, err
}

// GetByID retrieves any version of a receipt by its ID.
// PRE: id is non-empty
// POST: Returns the receipt or an error wrapping ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Receipt, error) {
	return Get(ctx, s.db, id)
}

// ListByMemberID returns a member's receipts, newest first.
// PRE: memberID is non-empty
// POST: Superseded versions are included only when filter.IncludeSuperseded is set
func (s *SQLiteStore) ListByMemberID(ctx context.Context, memberID string, filter ListFilter) ([]domain.Receipt, error) {
	query := selectColumns + " WHERE member_id = ?"
	args := []any{memberID}
	if !filter.IncludeSuperseded {
		query += " AND is_current_version = 1"
	}
	query += " ORDER BY sequence DESC, version_number DESC LIMIT ? OFFSET ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// ListHistory returns every version in a chain, oldest first.
// PRE: chainID is the ID of the first version
// POST: Returns versions ordered by version_number
func (s *SQLiteStore) ListHistory(ctx context.Context, chainID string) ([]domain.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE id = ? OR original_receipt_id = ? ORDER BY version_number ASC",
		chainID, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// LatestCurrent returns the member's most recent current receipt.
// PRE: memberID is non-empty
// POST: Returns an error wrapping ErrNotFound when the member has none
func (s *SQLiteStore) LatestCurrent(ctx context.Context, memberID string) (domain.Receipt, error) {
	r, err := scanReceipt(s.db.QueryRowContext(ctx,
		selectColumns+" WHERE member_id = ? AND is_current_version = 1 ORDER BY sequence DESC LIMIT 1",
		memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Receipt{}, fmt.Errorf("%w: member %s has no receipts", ErrNotFound, memberID)
	}
	return r, err
}

// ListLatestCurrent returns each member's most recent current receipt.
// POST: At most one receipt per member, ordered by member_id
func (s *SQLiteStore) ListLatestCurrent(ctx context.Context) ([]domain.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY member_id ORDER BY sequence DESC) AS rn
			FROM receipt WHERE is_current_version = 1
		) WHERE rn = 1 ORDER BY member_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// CountByMemberID counts current receipts for the member.
func (s *SQLiteStore) CountByMemberID(ctx context.Context, memberID string) (int, error) {
	return CountCurrent(ctx, s.db, memberID)
}
