package grid

import "math"

// VoltageRegulator injects reactive power against per-unit voltage deviation.
// Gain is the droop.
type VoltageRegulator struct {
	base
}

func NewVoltageRegulator(cfg Settings) *VoltageRegulator {
	return &VoltageRegulator{base: newBase("voltage_regulation", KindVoltage, cfg)}
}

func (c *VoltageRegulator) Update(m Measurement, dt float64) Response {
	dv := m.Voltage - 1
	target := 0.0
	c.mode = "standby"
	if !withinDeadband(dv, c.cfg.Deadband) {
		target = droop(dv, c.cfg.Gain, m.RatedPower)
		c.mode = "regulating"
	}
	return reactive(c.lim.step(target, dt))
}

// PowerFactorCorrection trims plant reactive output toward a target power
// factor held in Gain. Deadband is per unit of rated power.
type PowerFactorCorrection struct {
	base
}

func NewPowerFactorCorrection(cfg Settings) *PowerFactorCorrection {
	if cfg.Gain <= 0 || cfg.Gain > 1 {
		cfg.Gain = 0.95
	}
	return &PowerFactorCorrection{base: newBase("power_factor", KindVoltage, cfg)}
}

func (c *PowerFactorCorrection) Update(m Measurement, dt float64) Response {
	want := math.Abs(m.PlantPower) * math.Tan(math.Acos(c.cfg.Gain))
	adjust := want - m.PlantReactive
	target := 0.0
	c.mode = "standby"
	if m.RatedPower > 0 && !withinDeadband(adjust/m.RatedPower, c.cfg.Deadband) {
		target = adjust
		c.mode = "correcting"
	}
	return reactive(c.lim.step(target, dt))
}
