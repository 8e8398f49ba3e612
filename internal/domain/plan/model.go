package plan

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the persisted format of membership period dates.
const DateLayout = "2006-01-02"

// DefaultDurationMonths applies when neither the catalog nor the fallback table knows a plan.
const DefaultDurationMonths = 1

// ExpiringSoonDays is the window (inclusive) in which an active membership is flagged as expiring.
const ExpiringSoonDays = 7

// Fallback plan keys.
const (
	Monthly    = "monthly"
	Quarterly  = "quarterly"
	HalfYearly = "half_yearly"
	Yearly     = "yearly"
)

// fallbackDurations is consulted only when no catalog entry matches.
var fallbackDurations = map[string]int{
	Monthly:    1,
	Quarterly:  3,
	HalfYearly: 6,
	Yearly:     12,
}

// MembershipStatus classifies a subscription end date relative to today.
type MembershipStatus string

const (
	StatusActive       MembershipStatus = "active"
	StatusExpiringSoon MembershipStatus = "expiring_soon"
	StatusExpired      MembershipStatus = "expired"
)

// InvalidDateError reports a date that could not be parsed.
type InvalidDateError struct {
	Field string
	Value string
}

// Error implements error.
func (e *InvalidDateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid date %q", e.Value)
	}
	return fmt.Sprintf("invalid date for %s: %q", e.Field, e.Value)
}

// CatalogEntry is one master package as configured in settings.
// The lookup keys are Name, DurationType and ID, in that priority order.
type CatalogEntry struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	DurationType    string `json:"duration_type" yaml:"duration_type"`
	DurationMonths  int    `json:"duration_months" yaml:"duration_months"`
	Price           int64  `json:"price" yaml:"price"`
	RegistrationFee int64  `json:"registration_fee" yaml:"registration_fee"`
	Discount        int64  `json:"discount" yaml:"discount"`
	PaymentMethod   string `json:"payment_method" yaml:"payment_method"`
}

// HasDuration reports whether the entry carries a usable month count.
func (e CatalogEntry) HasDuration() bool {
	return e.DurationMonths > 0
}

// Catalog is a read-only snapshot of the master packages.
type Catalog []CatalogEntry

// Lookup finds the entry matching planKey.
// Each key field is scanned across the whole catalog before the next one is tried,
// so a Name match always beats a DurationType or ID match on another entry.
// PRE: none
// POST: Returns the first structural match, or false
func (c Catalog) Lookup(planKey string) (CatalogEntry, bool) {
	key := strings.TrimSpace(planKey)
	if key == "" {
		return CatalogEntry{}, false
	}
	fields := []func(CatalogEntry) string{
		func(e CatalogEntry) string { return e.Name },
		func(e CatalogEntry) string { return e.DurationType },
		func(e CatalogEntry) string { return e.ID },
	}
	for _, field := range fields {
		for _, e := range c {
			v := field(e)
			if v != "" && strings.EqualFold(strings.TrimSpace(v), key) {
				return e, true
			}
		}
	}
	return CatalogEntry{}, false
}

// ResolveDuration returns the plan length in months.
// PRE: none
// POST: Returns a value >= 1
func ResolveDuration(planKey string, catalog Catalog) int {
	if e, ok := catalog.Lookup(planKey); ok && e.HasDuration() {
		return e.DurationMonths
	}
	if months, ok := fallbackDurations[strings.ToLower(strings.TrimSpace(planKey))]; ok {
		return months
	}
	return DefaultDurationMonths
}

// ComputeEndDate advances start by months calendar months.
// When the start day does not exist in the target month the result is clamped to that
// month's last day, so 2024-01-31 + 1 month is 2024-02-29.
// PRE: months >= 0
// POST: Returns a date at midnight UTC
func ComputeEndDate(start time.Time, months int) time.Time {
	y, m, d := start.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := daysIn(firstOfTarget.Year(), firstOfTarget.Month())
	if d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatDate renders a date in the persisted YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a persisted date. Full RFC 3339 timestamps are accepted and
// truncated to their calendar date.
// PRE: none
// POST: Returns a midnight UTC date, or *InvalidDateError
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return DateOf(t), nil
	}
	return time.Time{}, &InvalidDateError{Value: s}
}

// DateOf strips the clock from t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Period is a resolved subscription window.
type Period struct {
	PlanKey string
	Months  int
	Start   time.Time
	End     time.Time
}

// StartDate returns the formatted start date.
func (p Period) StartDate() string { return FormatDate(p.Start) }

// EndDate returns the formatted end date.
func (p Period) EndDate() string { return FormatDate(p.End) }

// ResolvePeriod parses the start date and computes the end date for planKey.
// PRE: none
// POST: Returns *InvalidDateError (Field "subscription_start_date") if startDate is unparseable
func ResolvePeriod(planKey, startDate string, catalog Catalog) (Period, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return Period{}, &InvalidDateError{Field: "subscription_start_date", Value: startDate}
	}
	months := ResolveDuration(planKey, catalog)
	return Period{
		PlanKey: planKey,
		Months:  months,
		Start:   start,
		End:     ComputeEndDate(start, months),
	}, nil
}

// ClassifyMembership classifies an end date relative to today.
// PRE: none
// POST: nil end date is expired; expiring soon means 1 to ExpiringSoonDays days remain
func ClassifyMembership(end *time.Time, today time.Time) MembershipStatus {
	if end == nil {
		return StatusExpired
	}
	e := DateOf(*end)
	t := DateOf(today)
	if e.Before(t) {
		return StatusExpired
	}
	days := int(e.Sub(t).Hours() / 24)
	if days > 0 && days <= ExpiringSoonDays {
		return StatusExpiringSoon
	}
	return StatusActive
}

// ClassifyMembershipDate classifies a persisted end date string.
// Empty or unparseable dates are treated as absent.
func ClassifyMembershipDate(endDate string, today time.Time) MembershipStatus {
	if strings.TrimSpace(endDate) == "" {
		return StatusExpired
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return StatusExpired
	}
	return ClassifyMembership(&end, today)
}
