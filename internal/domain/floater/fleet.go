package floater

import "math"

type Config struct {
	Count      int
	TankHeight float64
	// Valves bounds how many floaters may be FILLING at once.
	Valves int
	// Zone is the fraction of tank height at the bottom (injection) and top
	// (venting) where state triggers fire.
	Zone    float64
	Physics Physics
}

type StepInput struct {
	ChainSpeed          float64
	InjectionAuthorized bool
}

type StepResult struct {
	Tension     float64
	Injections  int
	Transitions int
}

// Fleet owns every floater on the chain and steps them in index order.
type Fleet struct {
	cfg        Config
	floaters   []Floater
	supply     *Supply
	forced     bool
	injections int
}

func NewFleet(cfg Config, supply *Supply) *Fleet {
	if cfg.Count <= 0 {
		cfg.Count = 8
	}
	if cfg.TankHeight <= 0 {
		cfg.TankHeight = 10
	}
	if cfg.Valves <= 0 {
		cfg.Valves = 1
	}
	if cfg.Zone <= 0 || cfg.Zone >= 0.5 {
		cfg.Zone = 0.05
	}
	cfg.Physics = cfg.Physics.withDefaults()
	if supply == nil {
		supply = NewSupply(SupplyConfig{})
	}

	f := &Fleet{cfg: cfg, supply: supply, floaters: make([]Floater, cfg.Count)}
	spacing := 2 * cfg.TankHeight / float64(cfg.Count)
	for i := range f.floaters {
		fl := Floater{ID: i, Loop: float64(i) * spacing, State: StateHeavy}
		if fl.Loop > 0 && fl.Ascending(cfg.TankHeight) {
			fl.State = StateBuoyant
			fl.FillFraction = 1
		}
		fl.advance(0, 0, cfg.TankHeight)
		fl.computeForces(cfg.Physics, cfg.TankHeight)
		f.floaters[i] = fl
	}
	return f
}

// RequestInjection asks for one injection into the lowest heavy floater,
// preferring the rising side, outside the bottom zone if need be. The request
// stays pending until an authorized step has a free valve and enough air.
func (f *Fleet) RequestInjection() {
	f.forced = true
}

func (f *Fleet) InjectionPending() bool {
	return f.forced
}

func (f *Fleet) PulseCount() int {
	return f.injections
}

func (f *Fleet) TankPressure() float64 {
	return f.supply.Pressure()
}

// RequiredPressure is the hydrostatic pressure an injection must overcome at
// the tank bottom.
func (f *Fleet) RequiredPressure() float64 {
	p := f.cfg.Physics
	return AtmosphericPressure + p.WaterDensity*p.Gravity*f.cfg.TankHeight
}

func (f *Fleet) Floaters() []Floater {
	out := make([]Floater, len(f.floaters))
	copy(out, f.floaters)
	return out
}

func (f *Fleet) Step(in StepInput, dt float64) StepResult {
	height := f.cfg.TankHeight
	zone := f.cfg.Zone * height
	res := StepResult{}

	f.supply.recharge(dt)
	// A floater takes at most one state edge per tick.
	moved := make([]bool, len(f.floaters))
	for i := range f.floaters {
		fl := &f.floaters[i]
		fl.advance(in.ChainSpeed, dt, height)
		if fl.progress(f.cfg.Physics, dt) {
			moved[i] = true
			res.Transitions++
		}
	}

	filling := 0
	for i := range f.floaters {
		if f.floaters[i].State == StateFilling {
			filling++
		}
	}

	forcedID := -1
	if f.forced && in.InjectionAuthorized {
		forcedID = f.lowestHeavy()
	}
	// A zone edge crossed during this tick's travel counts as reached.
	reach := zone + math.Abs(in.ChainSpeed)*dt

	for i := range f.floaters {
		fl := &f.floaters[i]
		if moved[i] {
			continue
		}
		switch fl.State {
		case StateBuoyant:
			atTop := fl.Position >= height-reach || !fl.Ascending(height)
			if atTop && fl.transition(StateVenting) {
				res.Transitions++
			}
		case StateHeavy:
			atBottom := fl.Ascending(height) && fl.Loop <= reach
			wants := fl.ID == forcedID || (in.InjectionAuthorized && atBottom)
			if !wants || filling >= f.cfg.Valves || !f.supply.canInject(f.RequiredPressure()) {
				continue
			}
			if fl.transition(StateFilling) {
				if fl.ID == forcedID {
					f.forced = false
				}
				f.supply.consume()
				filling++
				f.injections++
				res.Injections++
				res.Transitions++
			}
		}
	}

	for i := range f.floaters {
		res.Tension += f.floaters[i].computeForces(f.cfg.Physics, height).Chain
	}
	return res
}

// lowestHeavy is the heavy floater nearest the bottom on the rising side,
// falling back to the lowest heavy floater anywhere. It is -1 when none is
// heavy.
func (f *Fleet) lowestHeavy() int {
	rising, lowest := -1, -1
	for i := range f.floaters {
		fl := f.floaters[i]
		if fl.State != StateHeavy {
			continue
		}
		if fl.Ascending(f.cfg.TankHeight) && (rising < 0 || fl.Loop < f.floaters[rising].Loop) {
			rising = i
		}
		if lowest < 0 || fl.Position < f.floaters[lowest].Position {
			lowest = i
		}
	}
	if rising >= 0 {
		return f.floaters[rising].ID
	}
	if lowest >= 0 {
		return f.floaters[lowest].ID
	}
	return -1
}
