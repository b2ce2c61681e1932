package grid

// PrimaryFrequency is proportional droop response to frequency deviation.
// Gain is the droop (0.05 = 5%).
type PrimaryFrequency struct {
	base
}

func NewPrimaryFrequency(cfg Settings) *PrimaryFrequency {
	return &PrimaryFrequency{base: newBase("primary_frequency", KindFrequency, cfg)}
}

func (c *PrimaryFrequency) Update(m Measurement, dt float64) Response {
	df := m.FrequencyDeviation()
	target := 0.0
	c.mode = "standby"
	if !withinDeadband(df, c.cfg.Deadband) {
		target = droop(df/m.NominalFrequency, c.cfg.Gain, m.RatedPower)
		c.mode = "regulating"
	}
	return active(c.lim.step(target, dt))
}

// SecondaryFrequency follows the AGC signal, a setpoint in [-1, 1] of capacity.
type SecondaryFrequency struct {
	base
}

func NewSecondaryFrequency(cfg Settings) *SecondaryFrequency {
	if cfg.Gain <= 0 {
		cfg.Gain = 1
	}
	return &SecondaryFrequency{base: newBase("secondary_frequency", KindFrequency, cfg)}
}

func (c *SecondaryFrequency) Update(m Measurement, dt float64) Response {
	signal := clamp(m.AGCSignal, -1, 1)
	target := 0.0
	c.mode = "standby"
	if !withinDeadband(signal, c.cfg.Deadband) {
		target = signal * c.cfg.Gain * c.cfg.Capacity
		c.mode = "following"
	}
	return active(c.lim.step(target, dt))
}

// SyntheticInertia answers the rate of change of frequency. Gain is 2H in
// seconds; Deadband is in Hz/s.
type SyntheticInertia struct {
	base
	last    float64
	hasLast bool
}

func NewSyntheticInertia(cfg Settings) *SyntheticInertia {
	return &SyntheticInertia{base: newBase("synthetic_inertia", KindFrequency, cfg)}
}

func (c *SyntheticInertia) Update(m Measurement, dt float64) Response {
	rocof := 0.0
	if c.hasLast && dt > 0 {
		rocof = (m.Frequency - c.last) / dt
	}
	c.last, c.hasLast = m.Frequency, true

	target := 0.0
	c.mode = "standby"
	if !withinDeadband(rocof, c.cfg.Deadband) {
		target = -c.cfg.Gain * rocof / m.NominalFrequency * m.RatedPower
		c.mode = "damping"
	}
	return active(c.lim.step(target, dt))
}

func (c *SyntheticInertia) Reset() {
	c.base.Reset()
	c.hasLast = false
}
