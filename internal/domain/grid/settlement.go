package grid

import "github.com/shopspring/decimal"

var wattSecondsPerMWh = decimal.NewFromInt(3_600_000_000)

// Settlement accumulates exported energy and its value at the spot price.
type Settlement struct {
	energy  decimal.Decimal
	revenue decimal.Decimal
}

// Record credits power (W) exported for dt seconds at price per MWh.
// Imports and non-positive prices are ignored.
func (s *Settlement) Record(power, price, dt float64) {
	if power <= 0 || dt <= 0 {
		return
	}
	mwh := decimal.NewFromFloat(power).Mul(decimal.NewFromFloat(dt)).Div(wattSecondsPerMWh)
	s.energy = s.energy.Add(mwh)
	if price > 0 {
		s.revenue = s.revenue.Add(mwh.Mul(decimal.NewFromFloat(price)))
	}
}

func (s Settlement) EnergyMWh() decimal.Decimal {
	return s.energy
}

func (s Settlement) Revenue() decimal.Decimal {
	return s.revenue
}

func (s *Settlement) Reset() {
	s.energy = decimal.Zero
	s.revenue = decimal.Zero
}
