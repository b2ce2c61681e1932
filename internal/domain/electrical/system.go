package electrical

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const maxFaultHistory = 32

type Grid struct {
	Voltage   float64
	Frequency float64
	Connected bool
}

type Input struct {
	Torque float64
	Speed  float64
	Dt     float64
	Time   float64
	Grid   Grid
}

// Measurement is what the generator terminals would show for one tick.
type Measurement struct {
	Voltage         float64 `json:"voltage"`
	Current         float64 `json:"current"`
	Frequency       float64 `json:"frequency"`
	Speed           float64 `json:"speed"`
	Temperature     float64 `json:"temperature"`
	MechanicalPower float64 `json:"mechanical_power"`
	ElectricalPower float64 `json:"power_output"`
	ReactivePower   float64 `json:"reactive_power"`
	PowerFactor     float64 `json:"power_factor"`
	Efficiency      float64 `json:"efficiency"`
	Losses          float64 `json:"losses"`
}

type Status struct {
	Measurement
	State            State         `json:"system_state"`
	MeanEfficiency   float64       `json:"mean_efficiency"`
	FaultCount       int           `json:"fault_count"`
	LastFault        FaultKind     `json:"last_fault_kind,omitempty"`
	LastFaultTime    float64       `json:"last_fault_time"`
	RecoveryActive   bool          `json:"recovery_active"`
	RecoveryStep     int           `json:"recovery_step"`
	RecoveryAttempts int           `json:"recovery_attempts"`
	NewFaults        []FaultRecord `json:"-"`
}

// System is the generator with its protection relay and recovery sequencer.
type System struct {
	cfg         Config
	state       State
	out         Measurement
	temperature float64

	faults     []FaultRecord
	faultCount int
	newFaults  []FaultRecord

	preFault Measurement
	recovery recovery
	window   []float64
}

func NewSystem(cfg Config) *System {
	cfg = cfg.withDefaults()
	return &System{
		cfg:         cfg,
		state:       StateIdle,
		temperature: cfg.AmbientTemperature,
		out:         Measurement{Temperature: cfg.AmbientTemperature, PowerFactor: cfg.PowerFactor},
	}
}

// Reconfigure swaps limits and coefficients; state, faults and temperature persist.
func (s *System) Reconfigure(cfg Config) {
	s.cfg = cfg.withDefaults()
}

func (s *System) Config() Config {
	return s.cfg
}

func (s *System) State() State {
	return s.state
}

func (s *System) FaultHistory() []FaultRecord {
	out := make([]FaultRecord, len(s.faults))
	copy(out, s.faults)
	return out
}

func (s *System) StartGeneration(torque, speed float64) bool {
	if s.state != StateIdle || torque <= 0 || speed <= 0 {
		return false
	}
	s.state = StateStarting
	return true
}

func (s *System) StopGeneration() bool {
	if !s.state.Active() {
		return false
	}
	s.state = StateIdle
	s.out = s.idleOutput(s.out)
	return true
}

// LoadTorque is the reaction torque the generator puts on the shaft for a
// power setpoint in watts. Below rated speed the torque scales with speed;
// above it the torque climbs to the overload limit within GovernorBand of
// rated speed. In FAULT the setpoint is the recovery ramp target.
func (s *System) LoadTorque(speed, setpoint float64) float64 {
	if speed < s.cfg.CutInFraction*s.cfg.RatedSpeed() {
		return 0
	}
	switch {
	case s.state.Active():
		return s.governor(speed, setpoint)
	case s.state == StateFault:
		return s.governor(speed, s.recoveryTarget())
	}
	return 0
}

func (s *System) governor(speed, power float64) float64 {
	c := s.cfg
	rated := c.RatedSpeed()
	maxTorque := c.OverloadRatio * c.RatedPower / rated
	torque := math.Max(0, math.Min(power, c.RatedPower*c.OverloadRatio)) / rated
	if speed <= rated {
		return torque * speed / rated
	}
	over := (speed - rated) / (c.GovernorBand * rated)
	return math.Min(maxTorque, torque+(maxTorque-torque)*over)
}

// Measure computes terminal quantities for the input at the current winding
// temperature without changing any state.
func (s *System) Measure(in Input) Measurement {
	c := s.cfg
	w := math.Max(0, in.Speed)
	torque := math.Max(0, in.Torque)
	m := Measurement{
		Speed:       w,
		Frequency:   float64(c.PolePairs) * w / (2 * math.Pi),
		Voltage:     c.RatedVoltage * w / c.RatedSpeed(),
		PowerFactor: c.PowerFactor,
		Temperature: s.temperature,
	}
	m.MechanicalPower = torque * w
	if m.MechanicalPower <= 0 || m.Voltage <= 1 {
		return m
	}

	m.Current = lineCurrent(m.MechanicalPower, m.Voltage, c.PowerFactor)
	// The winding saturates at the current limit; protection acts on Current.
	winding := math.Min(m.Current, c.MaxCurrent)
	copper := 3 * winding * winding * c.ArmatureResistance
	iron := c.IronLossCoefficient * m.Frequency * m.Frequency
	mech := c.MechanicalLossCoefficient * w * w * w
	m.Losses = copper + iron + mech
	m.ElectricalPower = clamp(m.MechanicalPower-m.Losses, 0, c.RatedPower)
	m.ReactivePower = m.ElectricalPower * math.Tan(math.Acos(c.PowerFactor))
	m.Efficiency = m.ElectricalPower / m.MechanicalPower
	return m
}

func (s *System) Update(in Input) Status {
	s.advanceThermal(in.Dt)
	return s.Evaluate(in, s.Measure(in))
}

// Evaluate runs protection, synchronization and recovery against m as this
// tick's live measurement.
func (s *System) Evaluate(in Input, m Measurement) Status {
	s.newFaults = s.newFaults[:0]

	switch {
	case s.state == StateIdle:
		s.out = s.idleOutput(m)
	case s.state.Active():
		if kind, tripped := s.protect(m, in.Grid); tripped {
			s.trip(kind, m, in.Time)
			break
		}
		s.out = m
		s.recordEfficiency(m)
		s.advanceActive(m, in.Grid)
	case s.state == StateFault:
		s.stepRecovery(in, m)
	}
	return s.Status()
}

func (s *System) advanceActive(m Measurement, g Grid) {
	switch s.state {
	case StateStarting:
		if m.ElectricalPower > 0 {
			s.state = StateGenerating
		}
	case StateGenerating:
		if s.synchronized(m, g) {
			s.state = StateGridConnected
		}
	case StateGridConnected:
		if !g.Connected || math.Abs(m.Frequency-g.Frequency) > s.cfg.DesyncDeviation {
			s.state = StateGenerating
		}
	}
}

func (s *System) synchronized(m Measurement, g Grid) bool {
	if !g.Connected || g.Voltage <= 0 {
		return false
	}
	if math.Abs(m.Voltage-g.Voltage)/g.Voltage > s.cfg.SyncVoltageTolerance {
		return false
	}
	return math.Abs(m.Frequency-g.Frequency) <= s.cfg.SyncFrequencyTolerance
}

func (s *System) protect(m Measurement, g Grid) (FaultKind, bool) {
	c := s.cfg
	switch {
	case m.Current > c.MaxCurrent:
		return FaultOvercurrent, true
	case m.Voltage > c.OvervoltageLimit*c.RatedVoltage:
		return FaultOvervoltage, true
	case m.Temperature > c.MaxTemperature:
		return FaultOvertemperature, true
	case m.Speed > c.OverspeedLimit*c.RatedSpeed():
		return FaultOverspeed, true
	case s.state == StateGridConnected && g.Connected && math.Abs(m.Frequency-g.Frequency) > c.FrequencyTripDeviation:
		return FaultFrequencyDeviation, true
	}
	return "", false
}

func (s *System) trip(kind FaultKind, m Measurement, now float64) {
	s.preFault = s.out
	if s.preFault.Efficiency <= 0 {
		s.preFault.Efficiency = m.Efficiency
	}
	s.raise(kind, now)
	s.state = StateFault
	s.out = Measurement{
		Voltage:     s.cfg.RatedVoltage,
		Frequency:   m.Frequency,
		Speed:       m.Speed,
		Temperature: m.Temperature,
		PowerFactor: 1,
	}
	s.recovery = recovery{}
}

func (s *System) raise(kind FaultKind, now float64) {
	rec := FaultRecord{Kind: kind, Time: now, From: s.state}
	s.faultCount++
	s.faults = append(s.faults, rec)
	if len(s.faults) > maxFaultHistory {
		s.faults = s.faults[len(s.faults)-maxFaultHistory:]
	}
	s.newFaults = append(s.newFaults, rec)
}

func (s *System) recordEfficiency(m Measurement) {
	if m.MechanicalPower <= 0 {
		return
	}
	s.window = append(s.window, m.Efficiency)
	if len(s.window) > s.cfg.EfficiencyWindow {
		s.window = s.window[len(s.window)-s.cfg.EfficiencyWindow:]
	}
}

// persistentlyLow is true once a full window never reached the low-efficiency mark.
func (s *System) persistentlyLow() bool {
	if len(s.window) < s.cfg.EfficiencyWindow {
		return false
	}
	return floats.Max(s.window) < s.cfg.LowEfficiency
}

func (s *System) advanceThermal(dt float64) {
	if !s.cfg.EnableThermal || dt <= 0 {
		return
	}
	target := s.cfg.AmbientTemperature + s.cfg.ThermalResistance*s.out.Losses
	s.temperature += (target - s.temperature) / s.cfg.ThermalTimeConstant * dt
}

func (s *System) idleOutput(m Measurement) Measurement {
	return Measurement{
		Voltage:     m.Voltage,
		Frequency:   m.Frequency,
		Speed:       m.Speed,
		Temperature: m.Temperature,
		PowerFactor: s.cfg.PowerFactor,
	}
}

func (s *System) Status() Status {
	st := Status{
		Measurement:      s.out,
		State:            s.state,
		FaultCount:       s.faultCount,
		RecoveryActive:   s.recovery.active,
		RecoveryStep:     s.recovery.step,
		RecoveryAttempts: s.recovery.attempts,
	}
	if len(s.window) > 0 {
		st.MeanEfficiency = stat.Mean(s.window, nil)
	}
	if n := len(s.faults); n > 0 {
		st.LastFault = s.faults[n-1].Kind
		st.LastFaultTime = s.faults[n-1].Time
	}
	if len(s.newFaults) > 0 {
		st.NewFaults = make([]FaultRecord, len(s.newFaults))
		copy(st.NewFaults, s.newFaults)
	}
	return st
}

func lineCurrent(power, voltage, pf float64) float64 {
	return power / (math.Sqrt(3) * voltage * pf)
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
