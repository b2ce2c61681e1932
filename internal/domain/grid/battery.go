package grid

import "math"

type BatteryMode string

const (
	BatteryIdle        BatteryMode = "IDLE"
	BatteryCharging    BatteryMode = "CHARGING"
	BatteryDischarging BatteryMode = "DISCHARGING"
	BatteryStabilizing BatteryMode = "STABILIZING"
)

type BatteryConfig struct {
	Settings
	EnergyCapacity float64
	InitialSOC     float64
	MinSOC         float64
	MaxSOC         float64
	Efficiency     float64
	PriceHigh      float64
	PriceLow       float64
	PeakThreshold  float64
}

func (c BatteryConfig) withDefaults() BatteryConfig {
	if c.EnergyCapacity <= 0 {
		c.EnergyCapacity = 50000
	}
	if c.MaxSOC <= 0 || c.MaxSOC > 1 {
		c.MaxSOC = 0.9
	}
	if c.MinSOC <= 0 || c.MinSOC >= c.MaxSOC {
		c.MinSOC = 0.1
	}
	if c.InitialSOC <= 0 {
		c.InitialSOC = 0.5
	}
	c.InitialSOC = clamp(c.InitialSOC, c.MinSOC, c.MaxSOC)
	if c.Efficiency <= 0 || c.Efficiency > 1 {
		c.Efficiency = 0.95
	}
	return c
}

// Battery is a storage unit whose mode is picked each tick by the first
// matching rule: emergency stabilization, frequency support, price arbitrage,
// peak shaving. Positive power is discharge.
type Battery struct {
	base
	bcfg BatteryConfig
	soc  float64
}

func NewBattery(cfg BatteryConfig) *Battery {
	cfg = cfg.withDefaults()
	b := &Battery{base: newBase("battery_storage", KindStorage, cfg.Settings), bcfg: cfg, soc: cfg.InitialSOC}
	b.mode = string(BatteryIdle)
	return b
}

func (b *Battery) SOC() float64 {
	return b.soc
}

func (b *Battery) Mode() BatteryMode {
	return BatteryMode(b.mode)
}

func (b *Battery) Update(m Measurement, dt float64) Response {
	mode, target := b.decide(m)
	if (target > 0 && b.soc <= b.bcfg.MinSOC) || (target < 0 && b.soc >= b.bcfg.MaxSOC) {
		mode, target = BatteryIdle, 0
	}
	b.mode = string(mode)
	p := b.lim.step(target, dt)
	b.integrate(p, dt)
	return active(p)
}

func (b *Battery) decide(m Measurement) (BatteryMode, float64) {
	df := m.FrequencyDeviation()
	c := b.bcfg
	switch {
	case m.Condition == ConditionEmergency:
		return BatteryStabilizing, -sign(df) * c.Capacity
	case !withinDeadband(df, c.Deadband):
		target := droop(df/m.NominalFrequency, c.Gain, m.RatedPower)
		if target >= 0 {
			return BatteryDischarging, target
		}
		return BatteryCharging, target
	case m.ElectricityPrice > 0 && c.PriceHigh > 0 && m.ElectricityPrice >= c.PriceHigh:
		return BatteryDischarging, c.Capacity
	case m.ElectricityPrice > 0 && c.PriceLow > 0 && m.ElectricityPrice <= c.PriceLow:
		return BatteryCharging, -c.Capacity
	case c.PeakThreshold > 0 && m.ActivePower > c.PeakThreshold:
		return BatteryDischarging, math.Min(c.Capacity, m.ActivePower-c.PeakThreshold)
	}
	return BatteryIdle, 0
}

func (b *Battery) integrate(p, dt float64) {
	hours := dt / 3600
	switch {
	case p > 0:
		b.soc -= p * hours / b.bcfg.Efficiency / b.bcfg.EnergyCapacity
	case p < 0:
		b.soc += -p * hours * b.bcfg.Efficiency / b.bcfg.EnergyCapacity
	}
	b.soc = clamp(b.soc, 0, 1)
}

func (b *Battery) Reset() {
	b.base.Reset()
	b.mode = string(BatteryIdle)
	b.soc = b.bcfg.InitialSOC
}

func (b *Battery) Status() ServiceStatus {
	st := b.base.Status()
	st.SOC = b.soc
	return st
}
