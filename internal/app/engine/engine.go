package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kppsim/internal/app/params"
	"kppsim/internal/app/ports"
	"kppsim/internal/app/queue"
	"kppsim/internal/domain/drivetrain"
	"kppsim/internal/domain/electrical"
	"kppsim/internal/domain/floater"
	"kppsim/internal/domain/grid"
	"kppsim/internal/domain/plant"
	"kppsim/internal/domain/pulse"
)

var (
	ErrAlreadyRunning = errors.New("engine already running")
	ErrNotRunning     = errors.New("engine not running")
	ErrTickPanicked   = errors.New("tick panicked")
	ErrInvalidLoad    = errors.New("invalid load torque")
)

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithConditions(src ports.ConditionsSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.conditions = src
		}
	}
}

func WithMetrics(m ports.EngineMetrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Engine owns one plant and drives it either manually through Step or on a
// paced background loop between Start and Stop.
type Engine struct {
	log        *slog.Logger
	conditions ports.ConditionsSource
	metrics    ports.EngineMetrics
	// ownConditions is set when conditions is the built-in nominal grid.
	ownConditions bool

	// mu guards everything below it.
	mu           sync.Mutex
	params       params.Params
	runID        string
	fleet        *floater.Fleet
	pulse        *pulse.Controller
	drive        *drivetrain.Drivetrain
	elec         *electrical.System
	grid         *grid.Coordinator
	tick         int64
	simTime      float64
	loadTorque   float64
	externalLoad float64
	tickErrors   int

	queue  *queue.Queue[plant.Snapshot]
	latest atomic.Pointer[plant.Snapshot]

	lifecycle sync.Mutex
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// New validates p and builds a stopped engine holding the initial snapshot.
func New(p params.Params, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		log:     slog.Default(),
		metrics: noopMetrics{},
		params:  p,
		queue:   queue.New[plant.Snapshot](p.QueueCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.conditions == nil {
		e.conditions = nominal{freq: p.RatedFrequency}
		e.ownConditions = true
	}
	if err := e.rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) rebuild() error {
	p := e.params
	coord, err := grid.NewCoordinator(p.Grid(), grid.StandardServices(p.RatedPower, p.GridFlags())...)
	if err != nil {
		return fmt.Errorf("build grid services: %w", err)
	}
	e.fleet = floater.NewFleet(p.Fleet(), floater.NewSupply(p.Supply()))
	e.pulse = pulse.NewController(p.Pulse())
	e.drive = drivetrain.New(p.Drivetrain())
	e.elec = electrical.NewSystem(p.Electrical())
	e.grid = coord
	e.runID = uuid.NewString()
	e.tick = 0
	e.simTime = 0
	e.loadTorque = 0
	e.tickErrors = 0
	e.queue.Resize(p.QueueCapacity)
	e.queue.Clear()

	snap := e.snapshot(e.drive.State(), e.elec.Status(), e.grid.Status(), grid.Nominal(p.RatedFrequency))
	e.latest.Store(&snap)
	return nil
}

// Start launches the paced loop. It fails with ErrAlreadyRunning when a loop
// is active.
func (e *Engine) Start() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.running.Load() {
		return ErrAlreadyRunning
	}
	if e.done != nil {
		<-e.done
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.running.Store(true)
	go e.loop(e.stop, e.done)
	e.log.Info("simulation started", "run_id", e.RunID())
	return nil
}

// Stop clears the running flag and waits for the loop to exit.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.running.Swap(false) {
		return ErrNotRunning
	}
	close(e.stop)
	<-e.done
	e.log.Info("simulation stopped", "run_id", e.RunID(), "sim_time", e.LatestState().Time)
	return nil
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

// Reset rebuilds the plant from the current parameters, including the ones
// that only apply on reset, and starts a new run.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.runID
	if err := e.rebuild(); err != nil {
		return err
	}
	e.log.Info("simulation reset", "previous_run_id", prev, "run_id", e.runID)
	return nil
}

// Step advances the plant by dt seconds, or by time_step when dt <= 0.
func (e *Engine) Step(dt float64) (plant.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked(dt)
}

func (e *Engine) stepLocked(dt float64) (plant.Snapshot, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = e.params.TimeStep
	}
	started := time.Now()
	snap, err := e.tickLocked(dt)
	if err != nil {
		e.tickErrors++
		e.metrics.RecordTickError()
		e.log.Error("tick failed", "tick", e.tick, "sim_time", e.simTime, "consecutive", e.tickErrors, "err", err)
		return e.lastSnapshot(), err
	}
	e.tickErrors = 0
	e.metrics.RecordTick(time.Since(started))
	for _, f := range snap.NewFaults {
		e.metrics.RecordFault(string(f.Kind))
		e.log.Warn("protection trip", "tick", snap.Tick, "sim_time", f.Time, "fault", f.Kind, "from", f.From)
	}
	if n := e.queue.Put(snap); n > 0 {
		e.metrics.RecordDropped(n)
	}
	e.latest.Store(&snap)
	return snap, nil
}

// tickLocked runs one fixed-order tick. Nothing becomes visible to readers
// unless the whole tick completes.
func (e *Engine) tickLocked(dt float64) (snap plant.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanicked, r)
		}
	}()
	p := e.params
	now := e.simTime + dt
	cond := e.conditions.Conditions(now)

	if e.pulse.Update(dt) {
		e.log.Debug("pulse phase switched", "tick", e.tick+1, "sim_time", now, "to", e.pulse.Phase())
		// Every PULSE opens with an air pulse.
		if e.pulse.Phase() == pulse.PhasePulse {
			e.fleet.RequestInjection()
		}
	}

	res := e.fleet.Step(floater.StepInput{
		ChainSpeed:          e.drive.ChainLinearSpeed(),
		InjectionAuthorized: e.pulse.InjectionAuthorized(),
	}, dt)

	ds := e.drive.Step(drivetrain.Input{
		ChainTension:    res.Tension,
		PulseMultiplier: e.pulse.TorqueMultiplier(),
		LoadTorque:      e.loadTorque + e.externalLoad,
	}, dt)

	before := e.elec.State()
	if p.AutoStartGenerator && before == electrical.StateIdle && ds.TransmittedTorque > 0 {
		e.elec.StartGeneration(ds.TransmittedTorque, ds.FlywheelSpeed)
	}
	es := e.elec.Update(electrical.Input{
		Torque: e.loadTorque,
		Speed:  ds.FlywheelSpeed,
		Dt:     dt,
		Time:   now,
		Grid: electrical.Grid{
			Voltage:   cond.Voltage * p.RatedVoltage,
			Frequency: cond.Frequency,
			Connected: cond.GridConnected,
		},
	})
	if es.State != before {
		e.log.Info("generator state changed", "tick", e.tick+1, "sim_time", now, "from", before, "to", es.State)
	}

	var cmd grid.Command
	if p.EnableGridServices {
		cmd = e.grid.Update(cond, grid.Plant{ElectricalPower: es.ElectricalPower, ReactivePower: es.ReactivePower}, dt)
	}
	e.loadTorque = e.elec.LoadTorque(ds.FlywheelSpeed, math.Max(0, p.TargetPower+cmd.ActivePower))

	e.tick++
	e.simTime = now
	return e.snapshot(ds, es, e.grid.Status(), cond), nil
}

func (e *Engine) snapshot(ds drivetrain.State, es electrical.Status, gs grid.Status, cond grid.Conditions) plant.Snapshot {
	floaters := e.fleet.Floaters()
	views := make([]plant.FloaterView, len(floaters))
	for i, f := range floaters {
		views[i] = plant.FloaterView{
			ID:           f.ID,
			Position:     f.Position,
			Velocity:     f.Velocity,
			FillFraction: f.FillFraction,
			State:        string(f.State),
		}
	}
	var faults []electrical.FaultRecord
	if len(es.NewFaults) > 0 {
		faults = append(faults, es.NewFaults...)
	}
	return plant.Snapshot{
		RunID:             e.runID,
		Tick:              e.tick,
		Time:              e.simTime,
		Running:           e.running.Load(),
		Torque:            ds.TransmittedTorque,
		Power:             es.ElectricalPower,
		FlywheelSpeedRPM:  drivetrain.RPM(ds.FlywheelSpeed),
		ChainSpeedRPM:     drivetrain.RPM(ds.ChainSpeed),
		ClutchEngaged:     e.pulse.ClutchEngaged(),
		ClutchState:       string(ds.ClutchState),
		TankPressure:      e.fleet.TankPressure(),
		PulseCount:        e.fleet.PulseCount(),
		PhaseTransitions:  e.pulse.Transitions(),
		OverallEfficiency: overallEfficiency(ds, es),
		ChainTension:      ds.ChainTension,
		ExternalLoad:      e.externalLoad,
		TickErrors:        e.tickErrors,
		Floaters:          views,
		Pulse:             e.pulse.State(),
		Drivetrain:        ds,
		Electrical:        es,
		GridServices:      gs,
		GridConditions:    cond,
		NewFaults:         faults,
	}
}

// overallEfficiency is delivered electrical power over the mechanical power
// the chain puts into the sprocket.
func overallEfficiency(ds drivetrain.State, es electrical.Status) float64 {
	in := ds.ChainTorque * ds.ChainSpeed
	if in <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, es.ElectricalPower/in))
}

func (e *Engine) lastSnapshot() plant.Snapshot {
	if s := e.latest.Load(); s != nil {
		return *s
	}
	return plant.Snapshot{}
}

// TriggerPulse forces the PULSE phase and grants one injection on the next
// tick.
func (e *Engine) TriggerPulse() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulse.ForcePhase(pulse.PhasePulse)
	e.fleet.RequestInjection()
	e.log.Info("pulse triggered", "tick", e.tick, "sim_time", e.simTime)
}

// UpdateParams overlays updates on the current parameters. Live values apply
// on the next tick; structural ones wait for Reset. On error nothing changes.
func (e *Engine) UpdateParams(updates map[string]any) (params.Params, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := e.params.Apply(updates)
	if err != nil {
		return e.params, err
	}
	if e.params.Rerated(next) {
		coord, err := e.grid.Rerate(next.Grid(), grid.StandardServices(next.RatedPower, next.GridFlags())...)
		if err != nil {
			return e.params, fmt.Errorf("rerate grid services: %w", err)
		}
		e.grid = coord
		if e.ownConditions {
			e.conditions = nominal{freq: next.RatedFrequency}
		}
		e.log.Info("grid services rerated", "run_id", e.runID, "rated_power", next.RatedPower, "rated_frequency", next.RatedFrequency)
	} else if err := e.grid.Apply(next.GridFlags()); err != nil {
		return e.params, fmt.Errorf("apply grid flags: %w", err)
	}
	if e.params.Structural(next) {
		e.log.Info("structural params staged until reset", "run_id", e.runID)
	}
	e.params = next
	e.pulse.Reconfigure(next.Pulse())
	e.drive.Reconfigure(next.Drivetrain())
	e.elec.Reconfigure(next.Electrical())
	return next, nil
}

// SetLoad sets the external torque in N·m applied to the flywheel on top of
// the generator reaction.
func (e *Engine) SetLoad(torque float64) error {
	if torque < 0 || math.IsNaN(torque) || math.IsInf(torque, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidLoad, torque)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.externalLoad = torque
	return nil
}

// LatestState returns the most recently published snapshot.
func (e *Engine) LatestState() plant.Snapshot {
	return e.lastSnapshot()
}

func (e *Engine) Params() params.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

func (e *Engine) Queue() *queue.Queue[plant.Snapshot] {
	return e.queue
}

func (e *Engine) interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := time.Duration(e.params.TimeStep / e.params.RealtimeFactor * float64(time.Second))
	if d <= 0 {
		d = time.Microsecond
	}
	return d
}

func (e *Engine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := e.interval()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if !e.running.Load() {
			return
		}

		e.mu.Lock()
		_, err := e.stepLocked(0)
		failures, limit := e.tickErrors, e.params.MaxTickErrors
		e.mu.Unlock()
		if err != nil && failures >= limit {
			e.running.Store(false)
			e.log.Error("simulation stopped after repeated tick failures", "consecutive", failures, "err", err)
			return
		}

		if next := e.interval(); next != every {
			every = next
			ticker.Reset(every)
		}
	}
}

type nominal struct {
	freq float64
}

func (n nominal) Conditions(float64) grid.Conditions {
	return grid.Nominal(n.freq)
}

type noopMetrics struct{}

func (noopMetrics) RecordTick(time.Duration) {}
func (noopMetrics) RecordTickError()         {}
func (noopMetrics) RecordDropped(int)        {}
func (noopMetrics) RecordFault(string)       {}
