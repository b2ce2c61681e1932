package electrical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nominalGrid = Grid{Voltage: 400, Frequency: 50, Connected: true}

func healthyInput(s *System, now float64) Input {
	w := s.Config().RatedSpeed()
	return Input{Torque: 15000 / w, Speed: w, Dt: 0.1, Time: now, Grid: nominalGrid}
}

func generatingSystem(t *testing.T, cfg Config) *System {
	t.Helper()
	s := NewSystem(cfg)
	in := healthyInput(s, 0)
	require.True(t, s.StartGeneration(in.Torque, in.Speed))
	for i := 0; i < 3; i++ {
		s.Update(healthyInput(s, float64(i)*0.1))
	}
	require.True(t, s.State() == StateGenerating || s.State() == StateGridConnected, "state %s", s.State())
	return s
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateStarting))
	assert.True(t, CanTransition(StateStarting, StateGenerating))
	assert.True(t, CanTransition(StateGenerating, StateGridConnected))
	assert.True(t, CanTransition(StateGridConnected, StateFault))
	assert.True(t, CanTransition(StateFault, StateGenerating))
	assert.True(t, CanTransition(StateFault, StateIdle))

	assert.False(t, CanTransition(StateIdle, StateGenerating))
	assert.False(t, CanTransition(StateIdle, StateFault))
	assert.False(t, CanTransition(StateFault, StateGridConnected))
	assert.False(t, CanTransition(StateStarting, StateGridConnected))
}

func TestStartGeneration_Guards(t *testing.T) {
	s := NewSystem(DefaultConfig())
	assert.False(t, s.StartGeneration(0, 10))
	assert.False(t, s.StartGeneration(10, 0))
	assert.True(t, s.StartGeneration(10, 10))
	assert.False(t, s.StartGeneration(10, 10), "second start must be rejected")
	assert.Equal(t, StateStarting, s.State())
}

func TestStopGeneration_InvalidWhenIdle(t *testing.T) {
	s := NewSystem(DefaultConfig())
	assert.False(t, s.StopGeneration())

	s = generatingSystem(t, DefaultConfig())
	assert.True(t, s.StopGeneration())
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.Status().ElectricalPower)
}

func TestUpdate_StartsGeneratesAndSynchronizes(t *testing.T) {
	s := NewSystem(DefaultConfig())
	in := healthyInput(s, 0)
	require.True(t, s.StartGeneration(in.Torque, in.Speed))

	st := s.Update(in)
	assert.Equal(t, StateGenerating, st.State)
	assert.Greater(t, st.ElectricalPower, 0.0)
	assert.Less(t, st.ElectricalPower, st.MechanicalPower)

	st = s.Update(healthyInput(s, 0.1))
	assert.Equal(t, StateGridConnected, st.State)

	off := healthyInput(s, 0.2)
	off.Grid.Connected = false
	st = s.Update(off)
	assert.Equal(t, StateGenerating, st.State, "losing the grid drops back to generating")
}

func TestUpdate_NoSyncOutsideTolerance(t *testing.T) {
	s := NewSystem(DefaultConfig())
	in := healthyInput(s, 0)
	in.Grid.Frequency = 50.3
	require.True(t, s.StartGeneration(in.Torque, in.Speed))
	s.Update(in)
	st := s.Update(in)
	assert.Equal(t, StateGenerating, st.State)
}

func TestMeasure_PowerClampedToRated(t *testing.T) {
	s := NewSystem(DefaultConfig())
	w := s.Config().RatedSpeed()
	for _, torque := range []float64{0, 10, 500, 1500, 5000, 1e6} {
		m := s.Measure(Input{Torque: torque, Speed: w})
		assert.LessOrEqual(t, m.ElectricalPower, s.Config().RatedPower)
		assert.GreaterOrEqual(t, m.ElectricalPower, 0.0)
	}
	m := s.Measure(Input{Torque: 1e6, Speed: w})
	assert.Equal(t, s.Config().RatedPower, m.ElectricalPower)
	assert.Greater(t, m.Current, s.Config().MaxCurrent, "terminal current is reported unsaturated")
}

func TestUpdate_NeverReportsAboveRated(t *testing.T) {
	s := NewSystem(DefaultConfig())
	w := s.Config().RatedSpeed()
	require.True(t, s.StartGeneration(1, w))
	for i := 0; i < 500; i++ {
		torque := float64(i%50) * 100
		st := s.Update(Input{Torque: torque, Speed: w, Dt: 0.1, Time: float64(i) * 0.1, Grid: nominalGrid})
		require.LessOrEqual(t, st.ElectricalPower, s.Config().RatedPower, "tick %d", i)
	}
}

func TestEvaluate_OvercurrentTripsWithinOneTick(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	in := healthyInput(s, 1.0)
	m := s.Measure(in)
	m.Current = 1.1 * s.Config().MaxCurrent

	st := s.Evaluate(in, m)
	assert.Equal(t, StateFault, st.State)
	assert.Equal(t, 1, st.FaultCount)
	assert.Equal(t, FaultOvercurrent, st.LastFault)
	assert.Equal(t, 1.0, st.LastFaultTime)
	assert.Zero(t, st.Current)
	assert.Zero(t, st.ElectricalPower)
	assert.Zero(t, st.ReactivePower)
	assert.Equal(t, s.Config().RatedVoltage, st.Voltage)
	require.Len(t, st.NewFaults, 1)
}

func TestProtection_Kinds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Measurement, Config)
		want   FaultKind
	}{
		{name: "overvoltage", mutate: func(m *Measurement, c Config) { m.Voltage = 1.2 * c.RatedVoltage }, want: FaultOvervoltage},
		{name: "overtemperature", mutate: func(m *Measurement, c Config) { m.Temperature = c.MaxTemperature + 1 }, want: FaultOvertemperature},
		{name: "overspeed", mutate: func(m *Measurement, c Config) { m.Speed = 1.3 * c.RatedSpeed() }, want: FaultOverspeed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := generatingSystem(t, DefaultConfig())
			in := healthyInput(s, 1)
			m := s.Measure(in)
			tc.mutate(&m, s.Config())
			st := s.Evaluate(in, m)
			assert.Equal(t, StateFault, st.State)
			assert.Equal(t, tc.want, st.LastFault)
		})
	}
}

func TestProtection_FrequencyDeviationWhenConnected(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	require.Equal(t, StateGridConnected, s.State())
	in := healthyInput(s, 1)
	m := s.Measure(in)
	m.Frequency = 52.5
	st := s.Evaluate(in, m)
	assert.Equal(t, FaultFrequencyDeviation, st.LastFault)
}

func TestRecovery_CompletesWhenStableAndEfficient(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	preEff := s.Status().Efficiency
	require.Greater(t, preEff, 0.0)

	in := healthyInput(s, 1.0)
	m := s.Measure(in)
	m.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, m)
	require.Equal(t, StateFault, s.State())

	steps := s.Config().RecoverySteps
	var prevPower float64
	for i := 1; i < steps; i++ {
		st := s.Update(healthyInput(s, 1.0+float64(i)*0.1))
		require.Equal(t, StateFault, st.State, "step %d", i)
		require.True(t, st.RecoveryActive)
		require.Equal(t, i, st.RecoveryStep)
		require.GreaterOrEqual(t, st.ElectricalPower, prevPower)
		prevPower = st.ElectricalPower
	}
	st := s.Update(healthyInput(s, 2.0))
	assert.Equal(t, StateGenerating, st.State)
	assert.GreaterOrEqual(t, st.Efficiency, 0.9*preEff)
	assert.False(t, st.RecoveryActive)
	assert.Equal(t, 1, st.FaultCount)
}

func TestRecovery_StaysFaultedWhenEfficiencyTooLow(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	in := healthyInput(s, 1.0)
	m := s.Measure(in)
	m.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, m)

	weak := s.Measure(in)
	weak.Efficiency = 0.5
	for i := 0; i < s.Config().RecoverySteps; i++ {
		s.Evaluate(in, weak)
	}
	st := s.Status()
	assert.Equal(t, StateFault, st.State)
	assert.False(t, st.RecoveryActive)
	assert.Equal(t, 1, st.RecoveryAttempts)
	assert.Equal(t, 1, st.FaultCount)
	assert.Zero(t, st.ElectricalPower)

	for i := 0; i < 100; i++ {
		st = s.Evaluate(in, weak)
		require.Equal(t, StateFault, st.State)
	}
	assert.Greater(t, st.RecoveryAttempts, 1, "recovery is retried after the cooldown")
}

func TestRecovery_AbortsAndRedeclaresOnInstability(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	in := healthyInput(s, 1.0)
	bad := s.Measure(in)
	bad.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, bad)

	st := s.Evaluate(in, bad)
	assert.Equal(t, StateFault, st.State)
	assert.Equal(t, 2, st.FaultCount)
	assert.Equal(t, FaultUnstableRecovery, st.LastFault)
	assert.False(t, st.RecoveryActive)
}

func TestRecovery_AbortsOnPersistentlyLowEfficiency(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	in := healthyInput(s, 1.0)
	low := s.Measure(in)
	low.Efficiency = 0.6
	for i := 0; i < s.Config().EfficiencyWindow; i++ {
		s.Evaluate(in, low)
	}
	require.True(t, s.persistentlyLow())

	bad := s.Measure(in)
	bad.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, bad)
	st := s.Evaluate(in, s.Measure(in))
	assert.Equal(t, StateFault, st.State)
	assert.Equal(t, FaultUnstableRecovery, st.LastFault)
}

func TestRecovery_ManualWhenAutoRecoverOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoRecover = false
	s := generatingSystem(t, cfg)
	in := healthyInput(s, 1.0)
	bad := s.Measure(in)
	bad.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, bad)

	for i := 0; i < 10; i++ {
		st := s.Update(healthyInput(s, 1.0))
		require.False(t, st.RecoveryActive)
	}
	require.True(t, s.RequestRecovery())
	for i := 0; i < s.Config().RecoverySteps; i++ {
		s.Update(healthyInput(s, 2.0))
	}
	assert.Equal(t, StateGenerating, s.State())
	assert.False(t, s.RequestRecovery(), "no recovery outside FAULT")
}

func TestLoadTorque(t *testing.T) {
	s := NewSystem(DefaultConfig())
	w := s.Config().RatedSpeed()
	assert.Zero(t, s.LoadTorque(w, 20000), "idle generator applies no load")

	require.True(t, s.StartGeneration(1, w))
	assert.InDelta(t, 20000/w, s.LoadTorque(w, 20000), 1e-9)
	assert.Zero(t, s.LoadTorque(0.01, 20000), "below cut-in")
	maxTorque := s.Config().OverloadRatio * s.Config().RatedPower / w
	assert.InDelta(t, maxTorque, s.LoadTorque(w, 1e9), 1e-9)
}

func TestLoadTorque_ScalesWithSpeedBelowRated(t *testing.T) {
	s := NewSystem(DefaultConfig())
	c := s.Config()
	w := c.RatedSpeed()
	require.True(t, s.StartGeneration(1, w))

	full := s.LoadTorque(w, 20000)
	assert.InDelta(t, full/2, s.LoadTorque(w/2, 20000), 1e-9)
	assert.InDelta(t, full/4, s.LoadTorque(w/4, 20000), 1e-9)
	assert.Less(t, s.LoadTorque(w/2, 20000)*w/2, 20000.0, "a slow shaft is never asked for the full setpoint")

	maxTorque := c.OverloadRatio * c.RatedPower / w
	assert.InDelta(t, maxTorque, s.LoadTorque(w*(1+c.GovernorBand), 20000), 1e-9)
	mid := s.LoadTorque(w*(1+c.GovernorBand/2), 20000)
	assert.Greater(t, mid, full)
	assert.Less(t, mid, maxTorque)
}

func TestLoadTorque_FaultFollowsRecoveryRamp(t *testing.T) {
	s := generatingSystem(t, DefaultConfig())
	w := s.Config().RatedSpeed()
	in := healthyInput(s, 1.0)
	bad := s.Measure(in)
	bad.Current = 1.1 * s.Config().MaxCurrent
	s.Evaluate(in, bad)
	require.Equal(t, StateFault, s.State())

	pre := s.preFault
	require.Greater(t, pre.ElectricalPower, 0.0)
	steps := float64(s.Config().RecoverySteps)
	assert.InDelta(t, pre.ElectricalPower/steps/pre.Efficiency/w, s.LoadTorque(w, 0), 1e-9)

	s.Update(healthyInput(s, 1.1))
	require.True(t, s.Status().RecoveryActive)
	assert.InDelta(t, 2*pre.ElectricalPower/steps/pre.Efficiency/w, s.LoadTorque(w, 0), 1e-9)

	s.Evaluate(in, bad)
	require.False(t, s.Status().RecoveryActive)
	assert.Zero(t, s.LoadTorque(w, 0), "no load while waiting out the retry cooldown")
	assert.Greater(t, s.LoadTorque(w*1.01, 0), 0.0, "the governor still holds back overspeed")
}
