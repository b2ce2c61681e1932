package conditions

import "kppsim/internal/domain/grid"

// Static reports the same grid conditions at every instant.
type Static struct {
	Snapshot grid.Conditions
}

func NewNominal(frequency float64) Static {
	return Static{Snapshot: grid.Nominal(frequency)}
}

func (s Static) Conditions(float64) grid.Conditions {
	return s.Snapshot
}
