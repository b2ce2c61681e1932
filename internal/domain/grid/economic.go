package grid

// EconomicDispatch shifts output with price: full capacity up at or above
// PriceHigh, full capacity down at or below PriceLow. A non-positive price
// carries no signal.
type EconomicDispatch struct {
	base
	priceHigh float64
	priceLow  float64
}

func NewEconomicDispatch(cfg Settings, priceLow, priceHigh float64) *EconomicDispatch {
	return &EconomicDispatch{base: newBase("economic_dispatch", KindEconomic, cfg), priceLow: priceLow, priceHigh: priceHigh}
}

func (c *EconomicDispatch) Update(m Measurement, dt float64) Response {
	price := m.ElectricityPrice
	target := 0.0
	c.mode = "standby"
	switch {
	case price <= 0:
	case c.priceHigh > 0 && price >= c.priceHigh:
		target = c.cfg.Capacity
		c.mode = "selling"
	case c.priceLow > 0 && price <= c.priceLow:
		target = -c.cfg.Capacity
		c.mode = "curtailing"
	}
	return active(c.lim.step(target, dt))
}
