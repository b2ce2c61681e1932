package pulse

type Phase string

const (
	PhasePulse Phase = "PULSE"
	PhaseCoast Phase = "COAST"
)

var transitions = map[Phase]Phase{
	PhasePulse: PhaseCoast,
	PhaseCoast: PhasePulse,
}

func CanTransition(from, to Phase) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// timerEpsilon absorbs float accumulation so a 3.0s phase at dt=0.1 ends on
// the 30th tick rather than the 31st.
const timerEpsilon = 1e-9

type Config struct {
	PulseDuration float64
	CoastDuration float64
}

type State struct {
	Phase            Phase   `json:"phase"`
	PhaseTimer       float64 `json:"phase_timer"`
	PulseDuration    float64 `json:"pulse_duration"`
	CoastDuration    float64 `json:"coast_duration"`
	ClutchEngaged    bool    `json:"clutch_engaged"`
	PhaseTransitions int     `json:"phase_transitions"`
}

// Controller runs the PULSE/COAST duty cycle. The phase switches strictly on
// elapsed time; every other output is a pure function of the phase.
type Controller struct {
	cfg         Config
	phase       Phase
	timer       float64
	transitions int
}

func NewController(cfg Config) *Controller {
	return &Controller{cfg: withDefaults(cfg), phase: PhasePulse}
}

func withDefaults(cfg Config) Config {
	if cfg.PulseDuration <= 0 {
		cfg.PulseDuration = 3
	}
	if cfg.CoastDuration <= 0 {
		cfg.CoastDuration = 2
	}
	return cfg
}

// Reconfigure swaps the durations in place; the current phase and timer are kept.
func (c *Controller) Reconfigure(cfg Config) {
	c.cfg = withDefaults(cfg)
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) Transitions() int {
	return c.transitions
}

func (c *Controller) duration(p Phase) float64 {
	if p == PhasePulse {
		return c.cfg.PulseDuration
	}
	return c.cfg.CoastDuration
}

// Update advances the phase timer and reports whether the phase switched.
func (c *Controller) Update(dt float64) bool {
	if dt <= 0 {
		return false
	}
	c.timer += dt
	if c.timer+timerEpsilon < c.duration(c.phase) {
		return false
	}
	c.switchTo(transitions[c.phase])
	return true
}

// ForcePhase jumps to p immediately. The timer restarts and the jump counts as
// a transition even when p is the current phase.
func (c *Controller) ForcePhase(p Phase) bool {
	if _, ok := transitions[p]; !ok {
		return false
	}
	c.switchTo(p)
	return true
}

func (c *Controller) switchTo(p Phase) {
	c.phase = p
	c.timer = 0
	c.transitions++
}

func (c *Controller) ClutchEngaged() bool {
	return c.phase == PhasePulse
}

func (c *Controller) InjectionAuthorized() bool {
	return c.phase == PhasePulse
}

func (c *Controller) TorqueMultiplier() float64 {
	if c.ClutchEngaged() {
		return 1
	}
	return 0
}

func (c *Controller) State() State {
	return State{
		Phase:            c.phase,
		PhaseTimer:       c.timer,
		PulseDuration:    c.cfg.PulseDuration,
		CoastDuration:    c.cfg.CoastDuration,
		ClutchEngaged:    c.ClutchEngaged(),
		PhaseTransitions: c.transitions,
	}
}
