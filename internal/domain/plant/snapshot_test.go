package plant

import (
	"testing"

	"kppsim/internal/domain/electrical"
	"kppsim/internal/domain/grid"
)

func TestSnapshotMap_ExposesWireKeys(t *testing.T) {
	s := Snapshot{
		Tick:          3,
		Time:          0.3,
		Power:         1200,
		ClutchEngaged: true,
		ClutchState:   "ENGAGED",
		PulseCount:    2,
		Floaters:      []FloaterView{{ID: 0, Position: 1.5, FillFraction: 0.4, State: "FILLING"}},
		Electrical:    electrical.Status{State: electrical.StateGenerating, FaultCount: 1},
		GridServices:  grid.Status{Condition: grid.ConditionNormal, Revenue: "0.0000"},
		NewFaults:     []electrical.FaultRecord{{Kind: electrical.FaultOvercurrent}},
	}
	m, err := s.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for _, key := range []string{"time", "torque", "power", "flywheel_speed_rpm", "chain_speed_rpm", "clutch_engaged", "clutch_state", "tank_pressure", "pulse_count", "overall_efficiency", "floaters", "drivetrain", "electrical", "grid_services"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("missing wire key %q", key)
		}
	}
	if _, ok := m["NewFaults"]; ok {
		t.Fatalf("per-tick fault list must not leak into the wire mapping")
	}
	floaters := m["floaters"].([]any)
	f0 := floaters[0].(map[string]any)
	if f0["state"] != "FILLING" || f0["fill_fraction"] != 0.4 {
		t.Fatalf("unexpected floater mapping: %v", f0)
	}
	elec := m["electrical"].(map[string]any)
	if elec["system_state"] != "GENERATING" || elec["fault_count"] != float64(1) {
		t.Fatalf("unexpected electrical mapping: %v", elec)
	}
}
