package tax

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrEmptyName    = errors.New("tax name cannot be empty")
	ErrInvalidRate  = errors.New("tax rate must be between 0 and 100")
	ErrRuleInactive = errors.New("tax rule is not active")
)

// Rule is a configured tax setting. Rate is a percentage.
type Rule struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Rate      float64 `json:"rate" yaml:"rate"`
	Inclusive bool    `json:"inclusive" yaml:"inclusive"`
	Active    bool    `json:"active" yaml:"active"`
}

// Validate checks if the Rule has valid data.
// PRE: Rule struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if r.Rate < 0 || r.Rate > 100 {
		return ErrInvalidRate
	}
	return nil
}

// Line is one tax in a computed breakdown.
type Line struct {
	RuleID    string  `json:"rule_id"`
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	Inclusive bool    `json:"inclusive"`
	Amount    int64   `json:"amount"`
}

// Result is the outcome of applying taxes to a base amount.
type Result struct {
	BaseAmount  int64  `json:"base_amount"`
	TaxAmount   int64  `json:"tax_amount"`
	TotalAmount int64  `json:"total_amount"`
	Breakdown   []Line `json:"breakdown"`
}

// Selection holds at most one inclusive and one exclusive tax.
// Selecting a rule replaces whichever rule already occupies its slot.
type Selection struct {
	inclusive *Rule
	exclusive *Rule
}

// Select places r into the slot of its inclusivity class.
// PRE: r is active
// POST: Previous rule of the same class is deselected
func (s *Selection) Select(r Rule) error {
	if !r.Active {
		return ErrRuleInactive
	}
	if r.Inclusive {
		s.inclusive = &r
	} else {
		s.exclusive = &r
	}
	return nil
}

// Rules returns the selected rules, inclusive first.
func (s Selection) Rules() []Rule {
	var rules []Rule
	if s.inclusive != nil {
		rules = append(rules, *s.inclusive)
	}
	if s.exclusive != nil {
		rules = append(rules, *s.exclusive)
	}
	return rules
}

// IsEmpty reports whether no tax is selected.
func (s Selection) IsEmpty() bool {
	return s.inclusive == nil && s.exclusive == nil
}

// SelectByID builds a Selection from configured rules and the chosen IDs.
// Later IDs win over earlier ones of the same class. Unknown or inactive IDs are ignored.
func SelectByID(available []Rule, ids []string) Selection {
	byID := make(map[string]Rule, len(available))
	for _, r := range available {
		byID[r.ID] = r
	}
	var sel Selection
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			_ = sel.Select(r)
		}
	}
	return sel
}

// Apply computes taxes on base.
// Inclusive taxes are carved out of base and reported only; exclusive taxes are added on top.
// PRE: base >= 0
// POST: TotalAmount = base + sum of exclusive amounts
func Apply(base int64, rules []Rule) Result {
	res := Result{BaseAmount: base, TotalAmount: base}
	b := decimal.NewFromInt(base)
	for _, r := range rules {
		rate := decimal.NewFromFloat(r.Rate).Div(hundred)
		var amount int64
		if r.Inclusive {
			amount = base - roundMinor(b.Div(decimal.NewFromInt(1).Add(rate)))
		} else {
			amount = roundMinor(b.Mul(rate))
			res.TotalAmount += amount
		}
		res.TaxAmount += amount
		res.Breakdown = append(res.Breakdown, Line{
			RuleID:    r.ID,
			Name:      r.Name,
			Rate:      r.Rate,
			Inclusive: r.Inclusive,
			Amount:    amount,
		})
	}
	return res
}

var hundred = decimal.NewFromInt(100)

// roundMinor rounds half away from zero to a whole minor unit.
func roundMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
