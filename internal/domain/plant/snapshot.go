package plant

import (
	"encoding/json"
	"fmt"

	"kppsim/internal/domain/drivetrain"
	"kppsim/internal/domain/electrical"
	"kppsim/internal/domain/grid"
	"kppsim/internal/domain/pulse"
)

type FloaterView struct {
	ID           int     `json:"id"`
	Position     float64 `json:"position"`
	Velocity     float64 `json:"velocity"`
	FillFraction float64 `json:"fill_fraction"`
	State        string  `json:"state"`
}

// Snapshot is the typed state of the plant after one tick. It is built fresh
// every tick and never mutated once published.
type Snapshot struct {
	RunID             string  `json:"run_id"`
	Tick              int64   `json:"tick"`
	Time              float64 `json:"time"`
	Running           bool    `json:"running"`
	Torque            float64 `json:"torque"`
	Power             float64 `json:"power"`
	FlywheelSpeedRPM  float64 `json:"flywheel_speed_rpm"`
	ChainSpeedRPM     float64 `json:"chain_speed_rpm"`
	ClutchEngaged     bool    `json:"clutch_engaged"`
	ClutchState       string  `json:"clutch_state"`
	TankPressure      float64 `json:"tank_pressure"`
	PulseCount        int     `json:"pulse_count"`
	PhaseTransitions  int     `json:"phase_transitions"`
	OverallEfficiency float64 `json:"overall_efficiency"`
	ChainTension      float64 `json:"chain_tension"`
	ExternalLoad      float64 `json:"external_load"`
	TickErrors        int     `json:"tick_errors"`

	Floaters       []FloaterView     `json:"floaters"`
	Pulse          pulse.State       `json:"pulse"`
	Drivetrain     drivetrain.State  `json:"drivetrain"`
	Electrical     electrical.Status `json:"electrical"`
	GridServices   grid.Status       `json:"grid_services"`
	GridConditions grid.Conditions   `json:"grid_conditions"`

	// NewFaults are the protection trips raised during this tick.
	NewFaults []electrical.FaultRecord `json:"-"`
}

// Map flattens the snapshot into the loosely typed wire mapping consumed by
// dashboards and storage.
func (s Snapshot) Map() (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("flatten snapshot: %w", err)
	}
	return out, nil
}

func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}
