package ports

import "kppsim/internal/domain/grid"

// ConditionsSource supplies the grid conditions seen by the plant at a given
// simulated time in seconds.
type ConditionsSource interface {
	Conditions(simTime float64) grid.Conditions
}
