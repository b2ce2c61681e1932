package grid

import "math"

// Conditions is the externally produced grid state for one tick. Voltage is
// per unit; price is currency per MWh.
type Conditions struct {
	Frequency        float64 `json:"frequency"`
	Voltage          float64 `json:"voltage"`
	ActivePower      float64 `json:"active_power"`
	ReactivePower    float64 `json:"reactive_power"`
	AGCSignal        float64 `json:"agc_signal"`
	ElectricityPrice float64 `json:"electricity_price"`
	GridConnected    bool    `json:"grid_connected"`
}

func Nominal(frequency float64) Conditions {
	return Conditions{Frequency: frequency, Voltage: 1, ElectricityPrice: 50, GridConnected: true}
}

type Condition string

const (
	ConditionNormal      Condition = "NORMAL"
	ConditionStressed    Condition = "STRESSED"
	ConditionEmergency   Condition = "EMERGENCY"
	ConditionRestoration Condition = "RESTORATION"
)

var conditionTransitions = map[Condition][]Condition{
	ConditionNormal:      {ConditionStressed, ConditionEmergency},
	ConditionStressed:    {ConditionNormal, ConditionEmergency},
	ConditionEmergency:   {ConditionRestoration},
	ConditionRestoration: {ConditionNormal, ConditionEmergency},
}

// CanTransitionCondition reports whether the classifier may move from one
// condition to another between ticks. Staying put is always allowed.
func CanTransitionCondition(from, to Condition) bool {
	if from == to {
		_, ok := conditionTransitions[from]
		return ok
	}
	for _, next := range conditionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Thresholds struct {
	NominalFrequency   float64
	StressedFrequency  float64
	StressedVoltage    float64
	EmergencyFrequency float64
	EmergencyVoltage   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		NominalFrequency:   50,
		StressedFrequency:  0.5,
		StressedVoltage:    0.05,
		EmergencyFrequency: 1.0,
		EmergencyVoltage:   0.1,
	}
}

type Classifier struct {
	th      Thresholds
	current Condition
}

func NewClassifier(th Thresholds) *Classifier {
	d := DefaultThresholds()
	if th.NominalFrequency <= 0 {
		th.NominalFrequency = d.NominalFrequency
	}
	if th.StressedFrequency <= 0 {
		th.StressedFrequency = d.StressedFrequency
	}
	if th.StressedVoltage <= 0 {
		th.StressedVoltage = d.StressedVoltage
	}
	if th.EmergencyFrequency <= 0 {
		th.EmergencyFrequency = d.EmergencyFrequency
	}
	if th.EmergencyVoltage <= 0 {
		th.EmergencyVoltage = d.EmergencyVoltage
	}
	return &Classifier{th: th, current: ConditionNormal}
}

func (c *Classifier) Current() Condition {
	return c.current
}

// Classify folds one tick of conditions into the running classification.
// Leaving EMERGENCY always passes through RESTORATION, which holds until both
// deviations are back under the stressed thresholds.
func (c *Classifier) Classify(cond Conditions) Condition {
	fdev := math.Abs(cond.Frequency - c.th.NominalFrequency)
	vdev := math.Abs(cond.Voltage - 1)
	emergency := fdev > c.th.EmergencyFrequency || vdev > c.th.EmergencyVoltage
	stressed := fdev > c.th.StressedFrequency || vdev > c.th.StressedVoltage

	switch {
	case emergency:
		c.current = ConditionEmergency
	case c.current == ConditionEmergency:
		c.current = ConditionRestoration
	case c.current == ConditionRestoration:
		if !stressed {
			c.current = ConditionNormal
		}
	case stressed:
		c.current = ConditionStressed
	default:
		c.current = ConditionNormal
	}
	return c.current
}

func (c *Classifier) Reset() {
	c.current = ConditionNormal
}
