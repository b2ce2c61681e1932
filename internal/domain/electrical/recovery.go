package electrical

import "math"

// recovery sequences the return from FAULT in tick-counted steps.
type recovery struct {
	active    bool
	requested bool
	step      int
	attempts  int
	cooldown  int
}

// RequestRecovery arms an attempt on the next tick. Only needed when
// AutoRecover is off.
func (s *System) RequestRecovery() bool {
	if s.state != StateFault {
		return false
	}
	s.recovery.requested = true
	s.recovery.cooldown = 0
	return true
}

func (s *System) stepRecovery(in Input, live Measurement) {
	r := &s.recovery
	if !r.active {
		if !s.cfg.AutoRecover && !r.requested {
			s.holdFault(live)
			return
		}
		if r.cooldown > 0 {
			r.cooldown--
			s.holdFault(live)
			return
		}
		r.active = true
		r.requested = false
		r.step = 0
		r.attempts++
	}

	r.step++
	if !s.stable(live) {
		s.raise(FaultUnstableRecovery, in.Time)
		s.endAttempt(live)
		return
	}

	frac := float64(r.step) / float64(s.cfg.RecoverySteps)
	pre := s.preFault
	s.out = Measurement{
		Voltage:         lerp(s.cfg.RatedVoltage, pre.Voltage, frac),
		Current:         pre.Current * frac,
		PowerFactor:     lerp(1, pre.PowerFactor, frac),
		ReactivePower:   pre.ReactivePower * frac,
		ElectricalPower: math.Min(pre.ElectricalPower*frac, live.ElectricalPower),
		Frequency:       live.Frequency,
		Speed:           live.Speed,
		Temperature:     live.Temperature,
		MechanicalPower: live.MechanicalPower,
		Efficiency:      live.Efficiency,
		Losses:          live.Losses,
	}
	if r.step < s.cfg.RecoverySteps {
		return
	}

	if live.Efficiency < s.cfg.RecoveryEfficiency*pre.Efficiency {
		s.endAttempt(live)
		return
	}
	attempts := r.attempts
	s.recovery = recovery{attempts: attempts}
	s.out = live
	if live.ElectricalPower > 0 {
		s.state = StateGenerating
		s.recordEfficiency(live)
		return
	}
	s.state = StateIdle
	s.out = s.idleOutput(live)
}

func (s *System) endAttempt(live Measurement) {
	s.recovery.active = false
	s.recovery.step = 0
	s.recovery.cooldown = s.cfg.RecoveryRetryTicks
	s.holdFault(live)
}

func (s *System) holdFault(live Measurement) {
	s.out = Measurement{
		Voltage:     s.cfg.RatedVoltage,
		Frequency:   live.Frequency,
		Speed:       live.Speed,
		Temperature: live.Temperature,
		PowerFactor: 1,
	}
}

// recoveryTarget is the mechanical power the next tick's recovery step ramps
// toward. Holding ticks target nothing.
func (s *System) recoveryTarget() float64 {
	r := s.recovery
	if !r.active && (r.cooldown > 0 || (!s.cfg.AutoRecover && !r.requested)) {
		return 0
	}
	next := 1
	if r.active {
		next = r.step + 1
	}
	frac := math.Min(1, float64(next)/float64(s.cfg.RecoverySteps))
	p := s.preFault.ElectricalPower * frac
	if eff := s.preFault.Efficiency; eff > 0 {
		p /= eff
	}
	return p
}

// stable is the instantaneous check run at every recovery step. The bounds
// are the generator's own operating envelope, from cut-in to the trip limits.
func (s *System) stable(m Measurement) bool {
	c := s.cfg
	rated := c.RatedSpeed()
	switch {
	case m.Speed < c.CutInFraction*rated || m.Speed > c.OverspeedLimit*rated:
		return false
	case m.Voltage > c.OvervoltageLimit*c.RatedVoltage:
		return false
	case m.Current > c.MaxCurrent:
		return false
	case m.PowerFactor < 0.8 || m.PowerFactor > 1:
		return false
	case m.Temperature > c.MaxTemperature:
		return false
	case s.persistentlyLow():
		return false
	}
	return true
}

func lerp(from, to, frac float64) float64 {
	return from + (to-from)*frac
}
