package forecast

import (
	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

var twelve = decimal.NewFromInt(12)

// placement decides which target months a concept projects into and what
// share of the December baseline each of those months carries.
type placement interface {
	// TargetMonths lists the months (1-12) that receive a projected value.
	TargetMonths() []int
	// BaseShare converts the December baseline into the pre-inflation amount
	// placed on each target month.
	BaseShare(base decimal.Decimal) decimal.Decimal
}

type mensualPlacement struct{}

func (mensualPlacement) TargetMonths() []int { return allMonths }

func (mensualPlacement) BaseShare(base decimal.Decimal) decimal.Decimal { return base }

type semestralPlacement struct{}

func (semestralPlacement) TargetMonths() []int { return []int{6, 12} }

func (semestralPlacement) BaseShare(base decimal.Decimal) decimal.Decimal { return base }

type anualPlacement struct{}

func (anualPlacement) TargetMonths() []int { return []int{12} }

func (anualPlacement) BaseShare(base decimal.Decimal) decimal.Decimal { return base }

// excepcionalPlacement amortizes an annual one-off evenly across the year.
type excepcionalPlacement struct{}

func (excepcionalPlacement) TargetMonths() []int { return allMonths }

func (excepcionalPlacement) BaseShare(base decimal.Decimal) decimal.Decimal {
	return base.Div(twelve)
}

var allMonths = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

var placements = map[core.ExpenseType]placement{
	core.Mensual:     mensualPlacement{},
	core.Semestral:   semestralPlacement{},
	core.Anual:       anualPlacement{},
	core.Excepcional: excepcionalPlacement{},
}

// placementFor resolves the strategy for an expense type, falling back to
// monthly for anything unknown.
func placementFor(t core.ExpenseType) placement {
	if p, ok := placements[core.NormalizeExpenseType(t)]; ok {
		return p
	}
	return mensualPlacement{}
}
