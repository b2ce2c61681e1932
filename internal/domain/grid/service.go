package grid

import "math"

type Kind string

const (
	KindFrequency      Kind = "frequency"
	KindStorage        Kind = "storage"
	KindVoltage        Kind = "voltage"
	KindEconomic       Kind = "economic"
	KindDemandResponse Kind = "demand_response"
)

// Measurement is what every controller sees on a tick.
type Measurement struct {
	Conditions
	Condition        Condition
	NominalFrequency float64
	RatedPower       float64
	PlantPower       float64
	PlantReactive    float64
}

func (m Measurement) FrequencyDeviation() float64 {
	return m.Frequency - m.NominalFrequency
}

type Response struct {
	ActivePower   float64 `json:"active_power"`
	ReactivePower float64 `json:"reactive_power"`
}

// Settings is the tuning every controller shares. Capacity is absolute (W or
// var); RampRate is the fraction of capacity per second.
type Settings struct {
	Deadband float64
	Gain     float64
	RampRate float64
	Capacity float64
	Priority float64
}

type ServiceStatus struct {
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Enabled  bool    `json:"enabled"`
	Mode     string  `json:"mode,omitempty"`
	Target   float64 `json:"target_response"`
	Current  float64 `json:"current_response"`
	Capacity float64 `json:"capacity"`
	Priority float64 `json:"priority"`
	SOC      float64 `json:"soc,omitempty"`
}

type Service interface {
	Name() string
	Kind() Kind
	Priority() float64
	Enabled() bool
	SetEnabled(on bool)
	Update(m Measurement, dt float64) Response
	Reset()
	Status() ServiceStatus
}

// limiter holds a controller's response and moves it toward the target no
// faster than capacity*rampRate per second.
type limiter struct {
	capacity float64
	rampRate float64
	target   float64
	current  float64
}

func (l *limiter) step(target, dt float64) float64 {
	l.target = clamp(target, -l.capacity, l.capacity)
	maxStep := l.capacity * l.rampRate * dt
	delta := clamp(l.target-l.current, -maxStep, maxStep)
	l.current = clamp(l.current+delta, -l.capacity, l.capacity)
	return l.current
}

func (l *limiter) reset() {
	l.target = 0
	l.current = 0
}

type base struct {
	name    string
	kind    Kind
	cfg     Settings
	enabled bool
	mode    string
	lim     limiter
}

func newBase(name string, kind Kind, cfg Settings) base {
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	if cfg.RampRate <= 0 {
		cfg.RampRate = 1
	}
	if cfg.Priority < 0 {
		cfg.Priority = 0
	}
	return base{
		name:    name,
		kind:    kind,
		cfg:     cfg,
		enabled: true,
		lim:     limiter{capacity: cfg.Capacity, rampRate: cfg.RampRate},
	}
}

func (b *base) Name() string       { return b.name }
func (b *base) Kind() Kind         { return b.kind }
func (b *base) Priority() float64  { return b.cfg.Priority }
func (b *base) Enabled() bool      { return b.enabled }
func (b *base) SetEnabled(on bool) { b.enabled = on }

func (b *base) Reset() {
	b.lim.reset()
	b.mode = ""
}

func (b *base) Status() ServiceStatus {
	return ServiceStatus{
		Name:     b.name,
		Kind:     b.kind,
		Enabled:  b.enabled,
		Mode:     b.mode,
		Target:   b.lim.target,
		Current:  b.lim.current,
		Capacity: b.cfg.Capacity,
		Priority: b.cfg.Priority,
	}
}

func active(p float64) Response   { return Response{ActivePower: p} }
func reactive(q float64) Response { return Response{ReactivePower: q} }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// droop converts a per-unit deviation into a proportional response of rated.
func droop(deviationPU, droop, rated float64) float64 {
	if droop <= 0 {
		return 0
	}
	return -deviationPU / droop * rated
}

func withinDeadband(v, band float64) bool {
	return math.Abs(v) <= band
}
