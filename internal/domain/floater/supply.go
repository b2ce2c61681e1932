package floater

import "math"

const AtmosphericPressure = 101325.0

type SupplyConfig struct {
	SetPoint      float64
	RechargeRate  float64
	InjectionDrop float64
	// MinInterval is the minimum spacing in seconds between injections; 0 disables it.
	MinInterval float64
	Enabled     bool
}

// Supply is the compressed-air reservoir feeding the injection valves.
type Supply struct {
	cfg       SupplyConfig
	pressure  float64
	sinceLast float64
}

func NewSupply(cfg SupplyConfig) *Supply {
	if cfg.SetPoint <= 0 {
		cfg.SetPoint = 250000
	}
	if cfg.RechargeRate < 0 {
		cfg.RechargeRate = 0
	}
	if cfg.InjectionDrop < 0 {
		cfg.InjectionDrop = 0
	}
	return &Supply{cfg: cfg, pressure: cfg.SetPoint, sinceLast: math.Inf(1)}
}

func (s *Supply) Pressure() float64 {
	return s.pressure
}

func (s *Supply) recharge(dt float64) {
	s.sinceLast += dt
	if s.pressure < s.cfg.SetPoint {
		s.pressure = math.Min(s.cfg.SetPoint, s.pressure+s.cfg.RechargeRate*dt)
	}
}

func (s *Supply) canInject(required float64) bool {
	if !s.cfg.Enabled {
		return true
	}
	if s.cfg.MinInterval > 0 && s.sinceLast < s.cfg.MinInterval {
		return false
	}
	return s.pressure >= required
}

func (s *Supply) consume() {
	s.sinceLast = 0
	if s.cfg.Enabled {
		s.pressure = math.Max(0, s.pressure-s.cfg.InjectionDrop)
	}
}
