package floater

import "math"

// Physics holds the per-unit constants shared by every floater in a fleet.
type Physics struct {
	Volume          float64
	MassEmpty       float64
	MassFull        float64
	Area            float64
	DragCoefficient float64
	WaterDensity    float64
	Gravity         float64
	AirFillTime     float64
	VentTime        float64
	EnableDrag      bool
}

func (p Physics) withDefaults() Physics {
	if p.WaterDensity <= 0 {
		p.WaterDensity = 1000
	}
	if p.Gravity <= 0 {
		p.Gravity = 9.81
	}
	if p.AirFillTime <= 0 {
		p.AirFillTime = 0.5
	}
	if p.VentTime <= 0 {
		p.VentTime = 0.5
	}
	if p.MassFull < p.MassEmpty {
		p.MassFull = p.MassEmpty
	}
	return p
}

// Forces is the breakdown of one floater's load on the chain. Vertical forces
// are positive upward; Chain is the same force projected on the direction of
// chain travel.
type Forces struct {
	Buoyancy float64
	Weight   float64
	Drag     float64
	Vertical float64
	Chain    float64
}

type Floater struct {
	ID           int
	State        State
	Loop         float64
	Position     float64
	Velocity     float64
	FillFraction float64
	Transitions  int
	Forces       Forces
}

func (f *Floater) Ascending(height float64) bool {
	return f.Loop < height
}

// advance moves the floater along the closed chain loop of length 2*height.
// The first half of the loop is the ascending side.
func (f *Floater) advance(chainSpeed, dt, height float64) {
	loop := 2 * height
	f.Loop = math.Mod(f.Loop+chainSpeed*dt, loop)
	if f.Loop < 0 {
		f.Loop += loop
	}
	if f.Ascending(height) {
		f.Position = f.Loop
		f.Velocity = chainSpeed
	} else {
		f.Position = loop - f.Loop
		f.Velocity = -chainSpeed
	}
	f.Position = clamp(f.Position, 0, height)
}

func (f *Floater) transition(to State) bool {
	if !CanTransition(f.State, to) {
		return false
	}
	f.State = to
	f.Transitions++
	return true
}

// progress advances fill or vent by one tick and completes the phase when the
// fill fraction reaches its bound.
func (f *Floater) progress(p Physics, dt float64) bool {
	switch f.State {
	case StateFilling:
		f.FillFraction += dt / p.AirFillTime
		if f.FillFraction >= 1 {
			f.FillFraction = 1
			return f.transition(StateBuoyant)
		}
	case StateVenting:
		f.FillFraction -= dt / p.VentTime
		if f.FillFraction <= 0 {
			f.FillFraction = 0
			return f.transition(StateHeavy)
		}
	}
	return false
}

func (f *Floater) computeForces(p Physics, height float64) Forces {
	mass := p.MassEmpty + (p.MassFull-p.MassEmpty)*(1-f.FillFraction)
	out := Forces{
		Buoyancy: p.WaterDensity * p.Gravity * p.Volume * f.FillFraction,
		Weight:   mass * p.Gravity,
	}
	if p.EnableDrag {
		out.Drag = 0.5 * p.WaterDensity * p.DragCoefficient * p.Area * f.Velocity * f.Velocity
	}
	static := out.Buoyancy - out.Weight
	out.Vertical = static - math.Copysign(out.Drag, f.Velocity)
	if f.Ascending(height) {
		out.Chain = static
	} else {
		out.Chain = -static
	}
	out.Chain -= out.Drag
	f.Forces = out
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
