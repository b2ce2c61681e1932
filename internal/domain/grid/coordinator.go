package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDuplicateService = errors.New("duplicate grid service")
	ErrUnknownService   = errors.New("unknown grid service")
)

type Config struct {
	Thresholds         Thresholds
	RatedPower         float64
	RatedApparentPower float64
}

type Plant struct {
	ElectricalPower float64
	ReactivePower   float64
}

type Contribution struct {
	Name          string  `json:"name"`
	Kind          Kind    `json:"kind"`
	Weight        float64 `json:"weight"`
	ActivePower   float64 `json:"active_power"`
	ReactivePower float64 `json:"reactive_power"`
}

// Command is the combined adjustment for one tick. Positive active power asks
// the plant for more supply.
type Command struct {
	ActivePower   float64        `json:"active_power"`
	ReactivePower float64        `json:"reactive_power"`
	Condition     Condition      `json:"condition"`
	Saturated     bool           `json:"saturated"`
	Contributions []Contribution `json:"contributions"`
}

type Status struct {
	Condition Condition       `json:"condition"`
	Command   Command         `json:"command"`
	Services  []ServiceStatus `json:"services"`
	EnergyMWh string          `json:"energy_mwh"`
	Revenue   string          `json:"revenue"`
}

// Coordinator runs every registered service each tick and arbitrates their
// recommendations into one command.
type Coordinator struct {
	cfg        Config
	classifier *Classifier
	services   []Service
	byName     map[string]Service
	last       Command
	settlement Settlement
}

func NewCoordinator(cfg Config, services ...Service) (*Coordinator, error) {
	if cfg.RatedPower <= 0 {
		cfg.RatedPower = 25000
	}
	if cfg.RatedApparentPower <= 0 {
		cfg.RatedApparentPower = cfg.RatedPower
	}
	c := &Coordinator{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Thresholds),
		byName:     map[string]Service{},
	}
	c.cfg.Thresholds = c.classifier.th
	c.last.Condition = ConditionNormal
	for _, s := range services {
		if err := c.Register(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Rerate builds a coordinator for a new rating from fresh services. Settled
// energy and revenue carry over.
func (c *Coordinator) Rerate(cfg Config, services ...Service) (*Coordinator, error) {
	next, err := NewCoordinator(cfg, services...)
	if err != nil {
		return nil, err
	}
	next.settlement = c.settlement
	return next, nil
}

func (c *Coordinator) Register(s Service) error {
	if _, ok := c.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateService, s.Name())
	}
	c.byName[s.Name()] = s
	c.services = append(c.services, s)
	return nil
}

// SetEnabled toggles a service. A disabled service is reset so it ramps from
// zero when it comes back.
func (c *Coordinator) SetEnabled(name string, on bool) error {
	s, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if s.Enabled() && !on {
		s.Reset()
	}
	s.SetEnabled(on)
	return nil
}

func (c *Coordinator) Condition() Condition {
	return c.classifier.Current()
}

func (c *Coordinator) Update(cond Conditions, plant Plant, dt float64) Command {
	condition := c.classifier.Classify(cond)
	m := Measurement{
		Conditions:       cond,
		Condition:        condition,
		NominalFrequency: c.cfg.Thresholds.NominalFrequency,
		RatedPower:       c.cfg.RatedPower,
		PlantPower:       plant.ElectricalPower,
		PlantReactive:    plant.ReactivePower,
	}

	cmd := Command{Condition: condition, Contributions: make([]Contribution, 0, len(c.services))}
	for _, s := range c.services {
		if !s.Enabled() {
			continue
		}
		resp := s.Update(m, dt)
		w := weight(s.Kind(), s.Priority(), condition)
		cmd.ActivePower += w * resp.ActivePower
		cmd.ReactivePower += w * resp.ReactivePower
		cmd.Contributions = append(cmd.Contributions, Contribution{
			Name:          s.Name(),
			Kind:          s.Kind(),
			Weight:        w,
			ActivePower:   resp.ActivePower,
			ReactivePower: resp.ReactivePower,
		})
	}
	cmd.ActivePower, cmd.ReactivePower, cmd.Saturated = clampApparent(cmd.ActivePower, cmd.ReactivePower, c.cfg.RatedApparentPower)

	if cond.GridConnected {
		c.settlement.Record(plant.ElectricalPower, cond.ElectricityPrice, dt)
	}
	c.last = cmd
	return cmd
}

// weight is the arbitration rule. Under EMERGENCY frequency, storage and
// voltage services get full weight and economic/demand-response are excluded.
func weight(kind Kind, priority float64, condition Condition) float64 {
	if condition != ConditionEmergency {
		return priority
	}
	switch kind {
	case KindEconomic, KindDemandResponse:
		return 0
	}
	return 1
}

// clampApparent keeps (p, q) inside a circle of radius s, giving active power
// precedence.
func clampApparent(p, q, s float64) (float64, float64, bool) {
	saturated := false
	if math.Abs(p) > s {
		p = math.Copysign(s, p)
		saturated = true
	}
	qmax := math.Sqrt(math.Max(0, s*s-p*p))
	if math.Abs(q) > qmax {
		q = math.Copysign(qmax, q)
		saturated = true
	}
	return p, q, saturated
}

func (c *Coordinator) Last() Command {
	return c.last
}

func (c *Coordinator) Settlement() Settlement {
	return c.settlement
}

func (c *Coordinator) Status() Status {
	st := Status{
		Condition: c.classifier.Current(),
		Command:   c.last,
		Services:  make([]ServiceStatus, 0, len(c.services)),
		EnergyMWh: c.settlement.EnergyMWh().StringFixed(6),
		Revenue:   c.settlement.Revenue().StringFixed(4),
	}
	st.Command.Contributions = append([]Contribution(nil), c.last.Contributions...)
	for _, s := range c.services {
		st.Services = append(st.Services, s.Status())
	}
	return st
}

func (c *Coordinator) Reset() {
	c.classifier.Reset()
	for _, s := range c.services {
		s.Reset()
	}
	c.last = Command{Condition: ConditionNormal}
	c.settlement.Reset()
}
