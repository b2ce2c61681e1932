package grid

// Flags selects which of the standard services start enabled.
type Flags struct {
	PrimaryFrequency   bool
	SecondaryFrequency bool
	SyntheticInertia   bool
	VoltageRegulation  bool
	PowerFactor        bool
	BatteryStorage     bool
	DemandResponse     bool
	EconomicDispatch   bool
}

func AllEnabled() Flags {
	return Flags{true, true, true, true, true, true, true, true}
}

// StandardServices builds the full controller set sized against rated power.
func StandardServices(rated float64, flags Flags) []Service {
	primary := NewPrimaryFrequency(Settings{Deadband: 0.02, Gain: 0.05, RampRate: 0.5, Capacity: 0.2 * rated, Priority: 1.0})
	secondary := NewSecondaryFrequency(Settings{Deadband: 0.01, Gain: 1, RampRate: 0.2, Capacity: 0.1 * rated, Priority: 0.8})
	inertia := NewSyntheticInertia(Settings{Deadband: 0.05, Gain: 8, RampRate: 5, Capacity: 0.1 * rated, Priority: 0.9})
	voltage := NewVoltageRegulator(Settings{Deadband: 0.01, Gain: 0.05, RampRate: 1, Capacity: 0.3 * rated, Priority: 1.0})
	pf := NewPowerFactorCorrection(Settings{Deadband: 0.01, Gain: 0.95, RampRate: 0.5, Capacity: 0.2 * rated, Priority: 0.6})
	battery := NewBattery(BatteryConfig{
		Settings:       Settings{Deadband: 0.05, Gain: 0.05, RampRate: 1, Capacity: 0.4 * rated, Priority: 0.7},
		EnergyCapacity: 2 * rated,
		InitialSOC:     0.5,
		MinSOC:         0.1,
		MaxSOC:         0.9,
		Efficiency:     0.95,
		PriceHigh:      80,
		PriceLow:       30,
		PeakThreshold:  0.8 * rated,
	})
	demand := NewDemandResponse(Settings{Deadband: 0.02, RampRate: 0.5, Capacity: 0.1 * rated, Priority: 0.5}, 150)
	economic := NewEconomicDispatch(Settings{RampRate: 0.1, Capacity: 0.2 * rated, Priority: 0.3}, 30, 80)

	primary.SetEnabled(flags.PrimaryFrequency)
	secondary.SetEnabled(flags.SecondaryFrequency)
	inertia.SetEnabled(flags.SyntheticInertia)
	voltage.SetEnabled(flags.VoltageRegulation)
	pf.SetEnabled(flags.PowerFactor)
	battery.SetEnabled(flags.BatteryStorage)
	demand.SetEnabled(flags.DemandResponse)
	economic.SetEnabled(flags.EconomicDispatch)

	return []Service{primary, secondary, inertia, voltage, pf, battery, demand, economic}
}

// Apply pushes a flag set onto an existing coordinator built from StandardServices.
func (c *Coordinator) Apply(flags Flags) error {
	set := []struct {
		name string
		on   bool
	}{
		{"primary_frequency", flags.PrimaryFrequency},
		{"secondary_frequency", flags.SecondaryFrequency},
		{"synthetic_inertia", flags.SyntheticInertia},
		{"voltage_regulation", flags.VoltageRegulation},
		{"power_factor", flags.PowerFactor},
		{"battery_storage", flags.BatteryStorage},
		{"demand_response", flags.DemandResponse},
		{"economic_dispatch", flags.EconomicDispatch},
	}
	for _, s := range set {
		if err := c.SetEnabled(s.name, s.on); err != nil {
			return err
		}
	}
	return nil
}
