package grid

// DemandResponse curtails (positive) or adds (negative) flexible load when
// the grid is stressed or prices spike. Deadband is in Hz.
type DemandResponse struct {
	base
	priceThreshold float64
}

func NewDemandResponse(cfg Settings, priceThreshold float64) *DemandResponse {
	return &DemandResponse{base: newBase("demand_response", KindDemandResponse, cfg), priceThreshold: priceThreshold}
}

func (c *DemandResponse) Update(m Measurement, dt float64) Response {
	df := m.FrequencyDeviation()
	stressed := m.Condition == ConditionStressed || m.Condition == ConditionRestoration
	target := 0.0
	c.mode = "standby"
	switch {
	case stressed && df < -c.cfg.Deadband:
		target = c.cfg.Capacity
		c.mode = "curtailing"
	case stressed && df > c.cfg.Deadband:
		target = -c.cfg.Capacity
		c.mode = "absorbing"
	case c.priceThreshold > 0 && m.ElectricityPrice > c.priceThreshold:
		target = c.cfg.Capacity
		c.mode = "price_curtailing"
	}
	return active(c.lim.step(target, dt))
}
