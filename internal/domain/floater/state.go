package floater

type State string

const (
	StateHeavy   State = "HEAVY"
	StateFilling State = "FILLING"
	StateBuoyant State = "BUOYANT"
	StateVenting State = "VENTING"
)

// transitions is the only legal edge set: each state has exactly one successor.
var transitions = map[State]State{
	StateHeavy:   StateFilling,
	StateFilling: StateBuoyant,
	StateBuoyant: StateVenting,
	StateVenting: StateHeavy,
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s State) Next() State {
	return transitions[s]
}

func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	return ok && next == to
}
