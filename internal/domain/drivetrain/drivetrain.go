package drivetrain

import "math"

type Config struct {
	SprocketRadius  float64
	FlywheelInertia float64
	ChainInertia    float64
	// GearRatio multiplies sprocket torque into flywheel torque; the flywheel
	// turns at sprocket speed divided by GearRatio.
	GearRatio           float64
	EngagementThreshold float64
	BearingFriction     float64
	ChainFriction       float64
	MaxSpeed            float64
}

func (c Config) withDefaults() Config {
	if c.SprocketRadius <= 0 {
		c.SprocketRadius = 0.5
	}
	if c.FlywheelInertia <= 0 {
		c.FlywheelInertia = 200
	}
	if c.ChainInertia <= 0 {
		c.ChainInertia = 100
	}
	if c.GearRatio <= 0 {
		c.GearRatio = 1
	}
	if c.EngagementThreshold < 0 {
		c.EngagementThreshold = 0
	}
	return c
}

type Input struct {
	ChainTension    float64
	PulseMultiplier float64
	LoadTorque      float64
}

type State struct {
	ChainSpeed        float64     `json:"chain_speed"`
	FlywheelSpeed     float64     `json:"flywheel_speed"`
	ChainTension      float64     `json:"chain_tension"`
	ChainTorque       float64     `json:"chain_torque"`
	TransmittedTorque float64     `json:"transmitted_torque"`
	LoadTorque        float64     `json:"load_torque"`
	NetTorque         float64     `json:"net_torque"`
	ClutchState       ClutchState `json:"clutch_state"`
	GearRatio         float64     `json:"gear_ratio"`
	FlywheelEnergy    float64     `json:"flywheel_energy"`
}

// Drivetrain couples the floater chain to the flywheel through the sprocket,
// gearing and the one-way clutch.
type Drivetrain struct {
	cfg   Config
	state State
}

func New(cfg Config) *Drivetrain {
	cfg = cfg.withDefaults()
	return &Drivetrain{cfg: cfg, state: State{ClutchState: ClutchDisengaged, GearRatio: cfg.GearRatio}}
}

// Reconfigure applies new limits and constants without touching shaft speeds.
func (d *Drivetrain) Reconfigure(cfg Config) {
	d.cfg = cfg.withDefaults()
	d.state.GearRatio = d.cfg.GearRatio
}

func (d *Drivetrain) State() State {
	return d.state
}

func (d *Drivetrain) FlywheelSpeed() float64 {
	return d.state.FlywheelSpeed
}

// ChainLinearSpeed is the chain travel speed in m/s.
func (d *Drivetrain) ChainLinearSpeed() float64 {
	return d.state.ChainSpeed * d.cfg.SprocketRadius
}

// ReflectedChainSpeed is the sprocket speed seen from the flywheel shaft.
func (d *Drivetrain) ReflectedChainSpeed() float64 {
	return d.state.ChainSpeed / d.cfg.GearRatio
}

func (d *Drivetrain) Step(in Input, dt float64) State {
	s := &d.state
	s.ChainTension = in.ChainTension
	s.ChainTorque = in.ChainTension * d.cfg.SprocketRadius
	s.LoadTorque = math.Max(0, in.LoadTorque) + d.cfg.BearingFriction*s.FlywheelSpeed

	gate := in.PulseMultiplier > 0
	engaged := Engages(gate, d.ReflectedChainSpeed(), s.FlywheelSpeed, d.cfg.EngagementThreshold)
	if !engaged && gate && s.ChainTorque > 0 {
		// A free chain can pass through the band between two ticks.
		chain, flywheel := d.freeWheel(dt)
		engaged = Crossed(d.ReflectedChainSpeed()-s.FlywheelSpeed, chain/d.cfg.GearRatio-flywheel)
	}
	// One-way: a chain pulling backwards overruns the clutch.
	if engaged && s.ChainTorque <= 0 {
		engaged = false
	}

	if engaged {
		s.ClutchState = ClutchEngaged
		s.TransmittedTorque = s.ChainTorque * d.cfg.GearRatio * in.PulseMultiplier
		s.NetTorque = s.TransmittedTorque - s.LoadTorque
		s.FlywheelSpeed = d.limit(s.FlywheelSpeed + s.NetTorque/d.cfg.FlywheelInertia*dt)
		s.ChainSpeed = s.FlywheelSpeed * d.cfg.GearRatio
	} else {
		s.ClutchState = ClutchDisengaged
		s.TransmittedTorque = 0
		s.NetTorque = -s.LoadTorque
		s.ChainSpeed, s.FlywheelSpeed = d.freeWheel(dt)
	}
	s.FlywheelEnergy = 0.5 * d.cfg.FlywheelInertia * s.FlywheelSpeed * s.FlywheelSpeed
	return *s
}

// freeWheel integrates both shafts one tick apart from each other: the chain
// under its own tension and friction, the flywheel under load alone.
func (d *Drivetrain) freeWheel(dt float64) (chain, flywheel float64) {
	s := &d.state
	flywheel = d.limit(s.FlywheelSpeed - s.LoadTorque/d.cfg.FlywheelInertia*dt)
	chainNet := s.ChainTorque - d.cfg.ChainFriction*s.ChainSpeed
	chain = math.Max(0, s.ChainSpeed+chainNet/d.cfg.ChainInertia*dt)
	if d.cfg.MaxSpeed > 0 {
		chain = math.Min(chain, d.cfg.MaxSpeed*d.cfg.GearRatio)
	}
	return chain, flywheel
}

func (d *Drivetrain) limit(w float64) float64 {
	if w < 0 {
		return 0
	}
	if d.cfg.MaxSpeed > 0 && w > d.cfg.MaxSpeed {
		return d.cfg.MaxSpeed
	}
	return w
}
