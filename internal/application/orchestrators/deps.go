package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gymdesk/internal/adapters/storage/ledger"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/receipt"
	"gymdesk/internal/domain/tax"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("gymdesk/orchestrators")

// MemberStore defines the member reads orchestrators need.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
}

// ReceiptReader defines the receipt reads orchestrators need.
type ReceiptReader interface {
	GetByID(ctx context.Context, id string) (receipt.Receipt, error)
	LatestCurrent(ctx context.Context, memberID string) (receipt.Receipt, error)
	CountByMemberID(ctx context.Context, memberID string) (int, error)
	ListHistory(ctx context.Context, chainID string) ([]receipt.Receipt, error)
}

// ReceiptChainReader adds the member-wide listing edits need to place a chain.
type ReceiptChainReader interface {
	ReceiptReader
	ListByMemberID(ctx context.Context, memberID string, filter receiptStore.ListFilter) ([]receipt.Receipt, error)
}

// CatalogReader supplies master packages and tax settings.
type CatalogReader interface {
	ListPackages(ctx context.Context) (plan.Catalog, error)
	ListTaxes(ctx context.Context, activeOnly bool) ([]tax.Rule, error)
}

// ReceiptLedger commits receipt writes together with their member side effects.
type ReceiptLedger interface {
	Record(ctx context.Context, e ledger.Entry) (receipt.Receipt, error)
	Delete(ctx context.Context, d ledger.Deletion) (ledger.DeleteResult, error)
}

// PersistenceError wraps a store failure. HTTP adapters report it as a server error.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// recordFailure maps a ledger write error; a rejected receipt is a validation error.
func recordFailure(op string, err error) error {
	if errors.Is(err, ledger.ErrInvalidReceipt) {
		return payment.Invalid("receipt", err.Error())
	}
	return persistence(op, err)
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// MemberLocks serializes financial writes per member within the process.
// The zero value is ready to use.
type MemberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

type memberLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the member's lock is held and returns its release function.
// PRE: memberID is non-empty
// POST: At most one holder per memberID at a time
func (l *MemberLocks) Lock(memberID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*memberLock)
	}
	ml, ok := l.locks[memberID]
	if !ok {
		ml = &memberLock{}
		l.locks[memberID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, memberID)
		}
		l.mu.Unlock()
	}
}

// lockMember locks memberID when locks is set and is a no-op otherwise.
func lockMember(locks *MemberLocks, memberID string) func() {
	if locks == nil {
		return func() {}
	}
	return locks.Lock(memberID)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput checks struct tags and maps the first failure to a ValidationError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return payment.Invalid("input", err.Error())
	}
	fe := ve[0]
	return payment.Invalid(snakeCase(fe.Field()), validationReason(fe))
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

func snakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		prevLower = !upper
		b.WriteRune(r)
	}
	return b.String()
}

func nowFunc(f func() time.Time) time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}
