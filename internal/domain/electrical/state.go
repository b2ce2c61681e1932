package electrical

type State string

const (
	StateIdle          State = "IDLE"
	StateStarting      State = "STARTING"
	StateGenerating    State = "GENERATING"
	StateGridConnected State = "GRID_CONNECTED"
	StateFault         State = "FAULT"
)

var transitions = map[State][]State{
	StateIdle:          {StateStarting},
	StateStarting:      {StateGenerating, StateFault, StateIdle},
	StateGenerating:    {StateGridConnected, StateFault, StateIdle},
	StateGridConnected: {StateGenerating, StateFault, StateIdle},
	StateFault:         {StateIdle, StateGenerating},
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Active() bool {
	return s == StateStarting || s == StateGenerating || s == StateGridConnected
}

type FaultKind string

const (
	FaultOvercurrent        FaultKind = "OVERCURRENT"
	FaultOvervoltage        FaultKind = "OVERVOLTAGE"
	FaultOvertemperature    FaultKind = "OVERTEMPERATURE"
	FaultOverspeed          FaultKind = "OVERSPEED"
	FaultFrequencyDeviation FaultKind = "FREQUENCY_DEVIATION"
	FaultUnstableRecovery   FaultKind = "UNSTABLE_RECOVERY"
)

type FaultRecord struct {
	Kind FaultKind `json:"kind"`
	Time float64   `json:"time"`
	From State     `json:"from"`
}
