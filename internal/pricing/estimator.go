package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// Estimator maps resources onto monthly cost using a Table. It is read-only
// after construction and safe for concurrent use.
type Estimator struct {
	table *Table
	hours decimal.Decimal
}

func NewEstimator(t *Table) *Estimator {
	return &Estimator{table: t, hours: decimal.NewFromInt(HoursPerMonth)}
}

// Version returns the version label of the underlying table.
func (e *Estimator) Version() string { return e.table.Version }

// Currency returns the currency of the underlying table.
func (e *Estimator) Currency() string { return e.table.Currency }

// Estimate returns the approximate monthly cost of r, or nil when no entry
// applies or a gb-month entry applies to a resource of unknown size. Among
// matching entries the most specific wins; ties go to the earlier entry.
func (e *Estimator) Estimate(r models.Resource) *decimal.Decimal {
	entry, ok := e.lookup(r)
	if !ok {
		return nil
	}
	var cost decimal.Decimal
	switch entry.Unit {
	case UnitGBMonth:
		if r.SizeGB == nil {
			return nil
		}
		cost = entry.Price.Mul(decimal.NewFromFloat(*r.SizeGB))
	case UnitMonth:
		cost = entry.Price
	case UnitHour:
		cost = entry.Price.Mul(e.hours)
	default:
		return nil
	}
	return &cost
}

func (e *Estimator) lookup(r models.Resource) (Entry, bool) {
	var (
		best  Entry
		score = -1
	)
	for _, entry := range e.table.Prices {
		if !entry.applies(r) {
			continue
		}
		if s := entry.specificity(); s > score {
			best, score = entry, s
		}
	}
	return best, score >= 0
}

func (e Entry) applies(r models.Resource) bool {
	if e.Provider != r.Provider || e.Kind != r.Kind {
		return false
	}
	if e.Region != "" && e.Region != r.Region {
		return false
	}
	for key, want := range e.Match {
		got, ok := r.Attr(key)
		if !ok || got == nil || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}
