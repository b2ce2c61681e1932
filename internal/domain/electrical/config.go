package electrical

import "math"

type Config struct {
	RatedPower     float64
	RatedVoltage   float64
	RatedFrequency float64
	PolePairs      int
	PowerFactor    float64

	ArmatureResistance        float64
	IronLossCoefficient       float64
	MechanicalLossCoefficient float64

	MaxCurrent float64
	// Voltage and speed limits are per unit of rated.
	OvervoltageLimit       float64
	OverspeedLimit         float64
	MaxTemperature         float64
	FrequencyTripDeviation float64
	DesyncDeviation        float64

	SyncVoltageTolerance   float64
	SyncFrequencyTolerance float64

	EnableThermal       bool
	AmbientTemperature  float64
	ThermalResistance   float64
	ThermalTimeConstant float64

	AutoRecover        bool
	RecoverySteps      int
	RecoveryRetryTicks int
	EfficiencyWindow   int
	LowEfficiency      float64
	RecoveryEfficiency float64

	CutInFraction float64
	OverloadRatio float64
	// GovernorBand is the overspeed, per unit of rated, over which reaction
	// torque rises from the setpoint to the overload limit.
	GovernorBand float64
}

func DefaultConfig() Config {
	return Config{
		RatedPower:                25000,
		RatedVoltage:              400,
		RatedFrequency:            50,
		PolePairs:                 20,
		PowerFactor:               0.9,
		ArmatureResistance:        0.1,
		IronLossCoefficient:       0.2,
		MechanicalLossCoefficient: 0.05,
		MaxCurrent:                80,
		OvervoltageLimit:          1.15,
		OverspeedLimit:            1.25,
		MaxTemperature:            120,
		FrequencyTripDeviation:    2.0,
		DesyncDeviation:           0.5,
		SyncVoltageTolerance:      0.05,
		SyncFrequencyTolerance:    0.1,
		EnableThermal:             true,
		AmbientTemperature:        25,
		ThermalResistance:         0.02,
		ThermalTimeConstant:       300,
		AutoRecover:               true,
		RecoverySteps:             5,
		RecoveryRetryTicks:        20,
		EfficiencyWindow:          10,
		LowEfficiency:             0.75,
		RecoveryEfficiency:        0.9,
		CutInFraction:             0.1,
		OverloadRatio:             1.5,
		GovernorBand:              0.02,
	}
}

// withDefaults fills zero fields from DefaultConfig; booleans are taken as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	pick := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	pick(&c.RatedPower, d.RatedPower)
	pick(&c.RatedVoltage, d.RatedVoltage)
	pick(&c.RatedFrequency, d.RatedFrequency)
	pick(&c.PowerFactor, d.PowerFactor)
	pick(&c.MaxCurrent, d.MaxCurrent)
	pick(&c.OvervoltageLimit, d.OvervoltageLimit)
	pick(&c.OverspeedLimit, d.OverspeedLimit)
	pick(&c.MaxTemperature, d.MaxTemperature)
	pick(&c.FrequencyTripDeviation, d.FrequencyTripDeviation)
	pick(&c.DesyncDeviation, d.DesyncDeviation)
	pick(&c.SyncVoltageTolerance, d.SyncVoltageTolerance)
	pick(&c.SyncFrequencyTolerance, d.SyncFrequencyTolerance)
	pick(&c.ThermalTimeConstant, d.ThermalTimeConstant)
	pick(&c.LowEfficiency, d.LowEfficiency)
	pick(&c.RecoveryEfficiency, d.RecoveryEfficiency)
	pick(&c.CutInFraction, d.CutInFraction)
	pick(&c.OverloadRatio, d.OverloadRatio)
	pick(&c.GovernorBand, d.GovernorBand)
	if c.PowerFactor > 1 {
		c.PowerFactor = 1
	}
	if c.PolePairs <= 0 {
		c.PolePairs = d.PolePairs
	}
	if c.RecoverySteps <= 0 {
		c.RecoverySteps = d.RecoverySteps
	}
	if c.RecoveryRetryTicks < 0 {
		c.RecoveryRetryTicks = 0
	}
	if c.EfficiencyWindow <= 0 {
		c.EfficiencyWindow = d.EfficiencyWindow
	}
	return c
}

// RatedSpeed is the shaft speed in rad/s that produces rated frequency.
func (c Config) RatedSpeed() float64 {
	return 2 * math.Pi * c.RatedFrequency / float64(c.PolePairs)
}
