package floater

import "testing"

func testPhysics() Physics {
	return Physics{
		Volume:          0.4,
		MassEmpty:       18,
		MassFull:        30,
		Area:            0.1,
		DragCoefficient: 0.8,
		AirFillTime:     0.5,
		VentTime:        0.5,
		EnableDrag:      true,
	}
}

func TestTransitionTable(t *testing.T) {
	states := []State{StateHeavy, StateFilling, StateBuoyant, StateVenting}
	legal := map[[2]State]bool{
		{StateHeavy, StateFilling}:   true,
		{StateFilling, StateBuoyant}: true,
		{StateBuoyant, StateVenting}: true,
		{StateVenting, StateHeavy}:   true,
	}
	for _, from := range states {
		for _, to := range states {
			if got, want := CanTransition(from, to), legal[[2]State{from, to}]; got != want {
				t.Fatalf("CanTransition(%s, %s)=%v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition(State("SINKING"), StateHeavy) {
		t.Fatalf("unknown state must not transition")
	}
	if State("SINKING").Valid() {
		t.Fatalf("unknown state reported valid")
	}
}

func TestFleet_FillBoundedMonotonicAndLegal(t *testing.T) {
	fleet := NewFleet(Config{Count: 6, TankHeight: 10, Physics: testPhysics()}, nil)
	prev := fleet.Floaters()

	for tick := 0; tick < 2000; tick++ {
		fleet.Step(StepInput{ChainSpeed: 1.3, InjectionAuthorized: tick%50 < 30}, 0.1)
		cur := fleet.Floaters()
		for i := range cur {
			p, c := prev[i], cur[i]
			if c.FillFraction < 0 || c.FillFraction > 1 {
				t.Fatalf("tick %d floater %d fill out of range: %v", tick, i, c.FillFraction)
			}
			if c.Position < 0 || c.Position > 10 {
				t.Fatalf("tick %d floater %d position out of tank: %v", tick, i, c.Position)
			}
			if p.State != c.State && !CanTransition(p.State, c.State) {
				t.Fatalf("tick %d floater %d illegal transition %s -> %s", tick, i, p.State, c.State)
			}
			if p.State == StateFilling && c.State == StateFilling && c.FillFraction <= p.FillFraction {
				t.Fatalf("tick %d floater %d fill not increasing: %v -> %v", tick, i, p.FillFraction, c.FillFraction)
			}
			if p.State == StateVenting && c.State == StateVenting && c.FillFraction >= p.FillFraction {
				t.Fatalf("tick %d floater %d vent not decreasing: %v -> %v", tick, i, p.FillFraction, c.FillFraction)
			}
		}
		prev = cur
	}
	if fleet.PulseCount() == 0 {
		t.Fatalf("expected injections over a long run")
	}
}

func TestFleet_SerializesInjectionByIndex(t *testing.T) {
	fleet := NewFleet(Config{Count: 2, TankHeight: 10, Physics: testPhysics()}, nil)
	for i := range fleet.floaters {
		fleet.floaters[i].State = StateHeavy
		fleet.floaters[i].FillFraction = 0
		fleet.floaters[i].Loop = 0.1
	}

	res := fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	if res.Injections != 1 {
		t.Fatalf("expected exactly one injection, got %d", res.Injections)
	}
	got := fleet.Floaters()
	if got[0].State != StateFilling || got[1].State != StateHeavy {
		t.Fatalf("expected floater 0 filling and 1 waiting, got %s/%s", got[0].State, got[1].State)
	}

	for i := 0; i < 4; i++ {
		fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
		if s := fleet.Floaters()[1].State; s != StateHeavy {
			t.Fatalf("floater 1 must wait for the valve, got %s", s)
		}
	}
	fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	got = fleet.Floaters()
	if got[0].State != StateBuoyant {
		t.Fatalf("expected floater 0 buoyant, got %s", got[0].State)
	}
	if got[1].State != StateFilling {
		t.Fatalf("expected floater 1 filling once the valve freed, got %s", got[1].State)
	}
	if fleet.PulseCount() != 2 {
		t.Fatalf("expected pulse count 2, got %d", fleet.PulseCount())
	}
}

func TestFleet_NoInjectionWithoutAuthorization(t *testing.T) {
	fleet := NewFleet(Config{Count: 4, TankHeight: 10, Physics: testPhysics()}, nil)
	res := fleet.Step(StepInput{InjectionAuthorized: false}, 0.1)
	if res.Injections != 0 {
		t.Fatalf("expected no injection during coast, got %d", res.Injections)
	}
}

func TestFleet_RequestInjectionPicksLowestRisingHeavy(t *testing.T) {
	fleet := NewFleet(Config{Count: 4, TankHeight: 10, Physics: testPhysics()}, nil)
	// Floater 0 rises at height 3; floater 3 is lower but on the way down.
	fleet.floaters[0].Loop = 3
	fleet.floaters[1].State = StateHeavy
	fleet.floaters[1].FillFraction = 0
	fleet.floaters[3].Loop = 18

	fleet.RequestInjection()
	res := fleet.Step(StepInput{}, 0.1)
	if res.Injections != 0 {
		t.Fatalf("a pending request must wait for authorization, got %d injections", res.Injections)
	}
	if !fleet.InjectionPending() {
		t.Fatalf("request dropped before it was granted")
	}

	res = fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	if res.Injections != 1 {
		t.Fatalf("expected forced injection, got %d", res.Injections)
	}
	got := fleet.Floaters()
	if got[0].State != StateFilling || got[3].State != StateHeavy {
		t.Fatalf("expected rising floater 0 filling, got %s and %s", got[0].State, got[3].State)
	}
	if fleet.InjectionPending() {
		t.Fatalf("forced injection must be one-shot")
	}
}

func TestFleet_RequestInjectionWaitsForValve(t *testing.T) {
	fleet := NewFleet(Config{Count: 4, TankHeight: 10, Physics: testPhysics()}, nil)
	fleet.floaters[0].Loop = 3
	fleet.floaters[1].State = StateFilling
	fleet.floaters[1].FillFraction = 0.5

	fleet.RequestInjection()
	for i := 0; i < 2; i++ {
		if res := fleet.Step(StepInput{InjectionAuthorized: true}, 0.1); res.Injections != 0 {
			t.Fatalf("tick %d: valve is busy, got %d injections", i, res.Injections)
		}
		if !fleet.InjectionPending() {
			t.Fatalf("tick %d: request dropped while the valve was busy", i)
		}
	}

	res := fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	if res.Injections != 1 {
		t.Fatalf("expected the pending injection once the valve freed, got %d", res.Injections)
	}
	if s := fleet.Floaters()[0].State; s != StateFilling {
		t.Fatalf("expected floater 0 filling, got %s", s)
	}
	if fleet.InjectionPending() {
		t.Fatalf("request still pending after it was granted")
	}
}

func TestFleet_InjectionZoneCoversTickTravel(t *testing.T) {
	fleet := NewFleet(Config{Count: 2, TankHeight: 10, Physics: testPhysics()}, nil)
	// One floater just past the zone edge after moving, one near the bottom
	// of the falling side.
	fleet.floaters[0].State = StateHeavy
	fleet.floaters[0].FillFraction = 0
	fleet.floaters[0].Loop = 0.45
	fleet.floaters[1].State = StateHeavy
	fleet.floaters[1].Loop = 19.6

	res := fleet.Step(StepInput{ChainSpeed: 1, InjectionAuthorized: true}, 0.1)
	if res.Injections != 1 {
		t.Fatalf("expected one injection, got %d", res.Injections)
	}
	got := fleet.Floaters()
	if got[0].State != StateFilling {
		t.Fatalf("floater swept through the zone this tick must fill, got %s", got[0].State)
	}
	if got[1].State != StateHeavy {
		t.Fatalf("falling floater must not fill, got %s", got[1].State)
	}
}

func TestFleet_BuoyantVentsOncePastTheTop(t *testing.T) {
	fleet := NewFleet(Config{Count: 2, TankHeight: 10, Physics: testPhysics()}, nil)
	fleet.floaters[0].State = StateBuoyant
	fleet.floaters[0].FillFraction = 1
	fleet.floaters[0].Loop = 9.0
	fleet.floaters[1].State = StateBuoyant
	fleet.floaters[1].FillFraction = 1
	fleet.floaters[1].Loop = 12

	fleet.Step(StepInput{ChainSpeed: 3}, 0.1)
	got := fleet.Floaters()
	if got[0].State != StateVenting {
		t.Fatalf("floater within a tick of the top must vent, got %s", got[0].State)
	}
	if got[1].State != StateVenting {
		t.Fatalf("floater on the falling side must vent, got %s", got[1].State)
	}
}

func TestFleet_PneumaticSupplyLimitsInjection(t *testing.T) {
	supply := NewSupply(SupplyConfig{SetPoint: 150000, RechargeRate: 0, InjectionDrop: 10000, Enabled: true})
	fleet := NewFleet(Config{Count: 4, TankHeight: 10, Physics: testPhysics()}, supply)
	res := fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	if res.Injections != 0 {
		t.Fatalf("supply below hydrostatic head must block injection")
	}

	supply = NewSupply(SupplyConfig{SetPoint: 250000, RechargeRate: 1000, InjectionDrop: 10000, Enabled: true})
	fleet = NewFleet(Config{Count: 4, TankHeight: 10, Physics: testPhysics()}, supply)
	fleet.Step(StepInput{InjectionAuthorized: true}, 0.1)
	if got := fleet.TankPressure(); got != 240000 {
		t.Fatalf("expected pressure drop to 240000, got %v", got)
	}
}

func TestFloaterForces_ChainProjection(t *testing.T) {
	p := testPhysics()
	p.EnableDrag = false
	p = p.withDefaults()

	cases := []struct {
		name     string
		floater  Floater
		positive bool
	}{
		{name: "buoyant ascending", floater: Floater{Loop: 3, FillFraction: 1, State: StateBuoyant}, positive: true},
		{name: "heavy ascending", floater: Floater{Loop: 3, State: StateHeavy}, positive: false},
		{name: "heavy descending", floater: Floater{Loop: 13, State: StateHeavy}, positive: true},
		{name: "buoyant descending", floater: Floater{Loop: 13, FillFraction: 1, State: StateBuoyant}, positive: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fl := tc.floater
			got := fl.computeForces(p, 10).Chain
			if (got > 0) != tc.positive {
				t.Fatalf("chain force %v, want positive=%v", got, tc.positive)
			}
		})
	}
}

func TestFloaterForces_DragOpposesChainTravel(t *testing.T) {
	p := testPhysics().withDefaults()
	fl := Floater{Loop: 3, FillFraction: 1, State: StateBuoyant}
	fl.advance(2, 0, 10)
	withDrag := fl.computeForces(p, 10)
	p.EnableDrag = false
	noDrag := fl.computeForces(p, 10)
	if withDrag.Drag <= 0 {
		t.Fatalf("expected positive drag magnitude at speed")
	}
	if withDrag.Chain >= noDrag.Chain {
		t.Fatalf("drag must reduce chain force: %v vs %v", withDrag.Chain, noDrag.Chain)
	}
}
