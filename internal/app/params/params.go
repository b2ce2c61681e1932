package params

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"kppsim/internal/domain/drivetrain"
	"kppsim/internal/domain/electrical"
	"kppsim/internal/domain/floater"
	"kppsim/internal/domain/grid"
	"kppsim/internal/domain/pulse"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrInvalidParams = errors.New("invalid params")

// Params is the flat, user-facing parameter set of one plant. Keys match the
// snake_case names accepted by UpdateParams and the params file.
type Params struct {
	NumFloaters      int     `yaml:"num_floaters" json:"num_floaters"`
	FloaterVolume    float64 `yaml:"floater_volume" json:"floater_volume"`
	FloaterMassEmpty float64 `yaml:"floater_mass_empty" json:"floater_mass_empty"`
	FloaterMassFull  float64 `yaml:"floater_mass_full" json:"floater_mass_full"`
	FloaterArea      float64 `yaml:"floater_area" json:"floater_area"`
	DragCoefficient  float64 `yaml:"drag_coefficient" json:"drag_coefficient"`
	AirFillTime      float64 `yaml:"air_fill_time" json:"air_fill_time"`
	VentTime         float64 `yaml:"vent_time" json:"vent_time"`
	InjectionZone    float64 `yaml:"injection_zone" json:"injection_zone"`

	AirPressure            float64 `yaml:"air_pressure" json:"air_pressure"`
	CompressorRechargeRate float64 `yaml:"compressor_recharge_rate" json:"compressor_recharge_rate"`
	InjectionPressureDrop  float64 `yaml:"injection_pressure_drop" json:"injection_pressure_drop"`
	InjectionValves        int     `yaml:"injection_valves" json:"injection_valves"`
	PulseInterval          float64 `yaml:"pulse_interval" json:"pulse_interval"`

	TankHeight   float64 `yaml:"tank_height" json:"tank_height"`
	WaterDensity float64 `yaml:"water_density" json:"water_density"`
	Gravity      float64 `yaml:"gravity" json:"gravity"`

	SprocketRadius            float64 `yaml:"sprocket_radius" json:"sprocket_radius"`
	FlywheelInertia           float64 `yaml:"flywheel_inertia" json:"flywheel_inertia"`
	ChainInertia              float64 `yaml:"chain_inertia" json:"chain_inertia"`
	GearRatio                 float64 `yaml:"gear_ratio" json:"gear_ratio"`
	ClutchEngagementThreshold float64 `yaml:"clutch_engagement_threshold" json:"clutch_engagement_threshold"`
	BearingFriction           float64 `yaml:"bearing_friction" json:"bearing_friction"`
	ChainFriction             float64 `yaml:"chain_friction" json:"chain_friction"`
	MaxSpeed                  float64 `yaml:"max_speed" json:"max_speed"`

	PulseDuration float64 `yaml:"pulse_duration" json:"pulse_duration"`
	CoastDuration float64 `yaml:"coast_duration" json:"coast_duration"`

	TimeStep       float64 `yaml:"time_step" json:"time_step"`
	RealtimeFactor float64 `yaml:"realtime_factor" json:"realtime_factor"`
	QueueCapacity  int     `yaml:"queue_capacity" json:"queue_capacity"`
	MaxTickErrors  int     `yaml:"max_tick_errors" json:"max_tick_errors"`

	TargetPower        float64 `yaml:"target_power" json:"target_power"`
	RatedPower         float64 `yaml:"rated_power" json:"rated_power"`
	RatedVoltage       float64 `yaml:"rated_voltage" json:"rated_voltage"`
	RatedFrequency     float64 `yaml:"rated_frequency" json:"rated_frequency"`
	PolePairs          int     `yaml:"pole_pairs" json:"pole_pairs"`
	PowerFactor        float64 `yaml:"power_factor" json:"power_factor"`
	MaxCurrent         float64 `yaml:"max_current" json:"max_current"`
	MaxTemperature     float64 `yaml:"max_temperature" json:"max_temperature"`
	OvervoltageLimit   float64 `yaml:"overvoltage_limit" json:"overvoltage_limit"`
	OverspeedLimit     float64 `yaml:"overspeed_limit" json:"overspeed_limit"`
	AmbientTemperature float64 `yaml:"ambient_temperature" json:"ambient_temperature"`
	RecoverySteps      int     `yaml:"recovery_steps" json:"recovery_steps"`
	RecoveryRetryTicks int     `yaml:"recovery_retry_ticks" json:"recovery_retry_ticks"`
	EfficiencyWindow   int     `yaml:"efficiency_window" json:"efficiency_window"`

	EnableDrag            bool `yaml:"enable_drag" json:"enable_drag"`
	EnablePneumaticLimits bool `yaml:"enable_pneumatic_limits" json:"enable_pneumatic_limits"`
	EnableThermalModel    bool `yaml:"enable_thermal_model" json:"enable_thermal_model"`
	EnableGridServices    bool `yaml:"enable_grid_services" json:"enable_grid_services"`
	AutoStartGenerator    bool `yaml:"auto_start_generator" json:"auto_start_generator"`
	AutoRecover           bool `yaml:"auto_recover" json:"auto_recover"`

	EnablePrimaryFrequency   bool `yaml:"enable_primary_frequency" json:"enable_primary_frequency"`
	EnableSecondaryFrequency bool `yaml:"enable_secondary_frequency" json:"enable_secondary_frequency"`
	EnableSyntheticInertia   bool `yaml:"enable_synthetic_inertia" json:"enable_synthetic_inertia"`
	EnableVoltageRegulation  bool `yaml:"enable_voltage_regulation" json:"enable_voltage_regulation"`
	EnablePowerFactor        bool `yaml:"enable_power_factor" json:"enable_power_factor"`
	EnableBatteryStorage     bool `yaml:"enable_battery_storage" json:"enable_battery_storage"`
	EnableDemandResponse     bool `yaml:"enable_demand_response" json:"enable_demand_response"`
	EnableEconomicDispatch   bool `yaml:"enable_economic_dispatch" json:"enable_economic_dispatch"`
}

// Defaults returns the embedded default parameter set.
func Defaults() Params {
	var p Params
	if err := decodeStrict(defaultsYAML, &p); err != nil {
		panic(fmt.Sprintf("parse embedded defaults: %v", err))
	}
	return p
}

// Load overlays the YAML file at path on the embedded defaults. An empty path
// yields the defaults.
func Load(path string) (Params, error) {
	p := Defaults()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read params file: %w", err)
	}
	if err := decodeStrict(data, &p); err != nil {
		return Params{}, fmt.Errorf("%w: parse params file: %v", ErrInvalidParams, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Apply returns a copy of p with the given flat mapping overlaid. Unknown keys
// and values of the wrong type are rejected; p itself is never modified.
func (p Params) Apply(updates map[string]any) (Params, error) {
	if len(updates) == 0 {
		return p, nil
	}
	data, err := yaml.Marshal(updates)
	if err != nil {
		return p, fmt.Errorf("%w: encode updates: %v", ErrInvalidParams, err)
	}
	next := p
	if err := decodeStrict(data, &next); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := next.Validate(); err != nil {
		return p, err
	}
	return next, nil
}

func decodeStrict(data []byte, out *Params) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := wholeNumbers(raw); err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// intKeys are the yaml keys of integer fields. The decoder truncates a
// fractional value into an int, so those are caught first.
var intKeys = func() map[string]bool {
	keys := map[string]bool{}
	t := reflect.TypeOf(Params{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Int {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		keys[name] = true
	}
	return keys
}()

func wholeNumbers(raw map[string]any) error {
	for key, v := range raw {
		f, ok := v.(float64)
		if ok && intKeys[key] && f != math.Trunc(f) {
			return fmt.Errorf("%s must be a whole number, got %v", key, f)
		}
	}
	return nil
}

type check struct {
	ok  bool
	msg string
}

func (p Params) Validate() error {
	checks := []check{
		{p.NumFloaters >= 1, "num_floaters must be at least 1"},
		{p.FloaterVolume > 0, "floater_volume must be positive"},
		{p.FloaterMassEmpty > 0, "floater_mass_empty must be positive"},
		{p.FloaterMassFull >= p.FloaterMassEmpty, "floater_mass_full must be at least floater_mass_empty"},
		{p.FloaterArea > 0, "floater_area must be positive"},
		{p.DragCoefficient >= 0, "drag_coefficient must not be negative"},
		{p.AirFillTime > 0, "air_fill_time must be positive"},
		{p.VentTime > 0, "vent_time must be positive"},
		{p.InjectionZone > 0 && p.InjectionZone < 0.5, "injection_zone must be in (0, 0.5)"},
		{p.AirPressure > 0, "air_pressure must be positive"},
		{p.CompressorRechargeRate >= 0, "compressor_recharge_rate must not be negative"},
		{p.InjectionPressureDrop >= 0, "injection_pressure_drop must not be negative"},
		{p.InjectionValves >= 1, "injection_valves must be at least 1"},
		{p.PulseInterval >= 0, "pulse_interval must not be negative"},
		{p.TankHeight > 0, "tank_height must be positive"},
		{p.WaterDensity > 0, "water_density must be positive"},
		{p.Gravity > 0, "gravity must be positive"},
		{p.SprocketRadius > 0, "sprocket_radius must be positive"},
		{p.FlywheelInertia > 0, "flywheel_inertia must be positive"},
		{p.ChainInertia > 0, "chain_inertia must be positive"},
		{p.GearRatio > 0, "gear_ratio must be positive"},
		{p.ClutchEngagementThreshold >= 0, "clutch_engagement_threshold must not be negative"},
		{p.BearingFriction >= 0, "bearing_friction must not be negative"},
		{p.ChainFriction >= 0, "chain_friction must not be negative"},
		{p.MaxSpeed >= 0, "max_speed must not be negative"},
		{p.PulseDuration > 0, "pulse_duration must be positive"},
		{p.CoastDuration > 0, "coast_duration must be positive"},
		{p.TimeStep > 0, "time_step must be positive"},
		{p.RealtimeFactor > 0, "realtime_factor must be positive"},
		{p.QueueCapacity >= 1, "queue_capacity must be at least 1"},
		{p.MaxTickErrors >= 1, "max_tick_errors must be at least 1"},
		{p.TargetPower >= 0, "target_power must not be negative"},
		{p.RatedPower > 0, "rated_power must be positive"},
		{p.RatedVoltage > 0, "rated_voltage must be positive"},
		{p.RatedFrequency > 0, "rated_frequency must be positive"},
		{p.PolePairs >= 1, "pole_pairs must be at least 1"},
		{p.PowerFactor > 0 && p.PowerFactor <= 1, "power_factor must be in (0, 1]"},
		{p.MaxCurrent > 0, "max_current must be positive"},
		{p.MaxTemperature > p.AmbientTemperature, "max_temperature must exceed ambient_temperature"},
		{p.OvervoltageLimit > 1, "overvoltage_limit must exceed 1 p.u."},
		{p.OverspeedLimit > 1, "overspeed_limit must exceed 1 p.u."},
		{p.RecoverySteps >= 1, "recovery_steps must be at least 1"},
		{p.RecoveryRetryTicks >= 0, "recovery_retry_ticks must not be negative"},
		{p.EfficiencyWindow >= 1, "efficiency_window must be at least 1"},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s", ErrInvalidParams, c.msg)
		}
	}
	return nil
}

// Structural reports whether q differs from p in a parameter that only takes
// effect when the plant is rebuilt.
func (p Params) Structural(q Params) bool {
	return p.NumFloaters != q.NumFloaters ||
		p.FloaterVolume != q.FloaterVolume ||
		p.FloaterMassEmpty != q.FloaterMassEmpty ||
		p.FloaterMassFull != q.FloaterMassFull ||
		p.FloaterArea != q.FloaterArea ||
		p.DragCoefficient != q.DragCoefficient ||
		p.AirFillTime != q.AirFillTime ||
		p.VentTime != q.VentTime ||
		p.InjectionZone != q.InjectionZone ||
		p.AirPressure != q.AirPressure ||
		p.CompressorRechargeRate != q.CompressorRechargeRate ||
		p.InjectionPressureDrop != q.InjectionPressureDrop ||
		p.InjectionValves != q.InjectionValves ||
		p.PulseInterval != q.PulseInterval ||
		p.TankHeight != q.TankHeight ||
		p.WaterDensity != q.WaterDensity ||
		p.Gravity != q.Gravity ||
		p.EnableDrag != q.EnableDrag ||
		p.EnablePneumaticLimits != q.EnablePneumaticLimits ||
		p.QueueCapacity != q.QueueCapacity
}

// Rerated reports whether q changes the ratings the grid services are sized
// and classified against.
func (p Params) Rerated(q Params) bool {
	return p.RatedFrequency != q.RatedFrequency ||
		p.RatedPower != q.RatedPower ||
		p.PowerFactor != q.PowerFactor
}

func (p Params) Physics() floater.Physics {
	return floater.Physics{
		Volume:          p.FloaterVolume,
		MassEmpty:       p.FloaterMassEmpty,
		MassFull:        p.FloaterMassFull,
		Area:            p.FloaterArea,
		DragCoefficient: p.DragCoefficient,
		WaterDensity:    p.WaterDensity,
		Gravity:         p.Gravity,
		AirFillTime:     p.AirFillTime,
		VentTime:        p.VentTime,
		EnableDrag:      p.EnableDrag,
	}
}

func (p Params) Fleet() floater.Config {
	return floater.Config{
		Count:      p.NumFloaters,
		TankHeight: p.TankHeight,
		Valves:     p.InjectionValves,
		Zone:       p.InjectionZone,
		Physics:    p.Physics(),
	}
}

func (p Params) Supply() floater.SupplyConfig {
	return floater.SupplyConfig{
		SetPoint:      p.AirPressure,
		RechargeRate:  p.CompressorRechargeRate,
		InjectionDrop: p.InjectionPressureDrop,
		MinInterval:   p.PulseInterval,
		Enabled:       p.EnablePneumaticLimits,
	}
}

func (p Params) Pulse() pulse.Config {
	return pulse.Config{PulseDuration: p.PulseDuration, CoastDuration: p.CoastDuration}
}

func (p Params) Drivetrain() drivetrain.Config {
	return drivetrain.Config{
		SprocketRadius:      p.SprocketRadius,
		FlywheelInertia:     p.FlywheelInertia,
		ChainInertia:        p.ChainInertia,
		GearRatio:           p.GearRatio,
		EngagementThreshold: p.ClutchEngagementThreshold,
		BearingFriction:     p.BearingFriction,
		ChainFriction:       p.ChainFriction,
		MaxSpeed:            p.MaxSpeed,
	}
}

// Electrical starts from the generator defaults and overrides what the flat
// parameter set exposes.
func (p Params) Electrical() electrical.Config {
	c := electrical.DefaultConfig()
	c.RatedPower = p.RatedPower
	c.RatedVoltage = p.RatedVoltage
	c.RatedFrequency = p.RatedFrequency
	c.PolePairs = p.PolePairs
	c.PowerFactor = p.PowerFactor
	c.MaxCurrent = p.MaxCurrent
	c.MaxTemperature = p.MaxTemperature
	c.OvervoltageLimit = p.OvervoltageLimit
	c.OverspeedLimit = p.OverspeedLimit
	c.AmbientTemperature = p.AmbientTemperature
	c.EnableThermal = p.EnableThermalModel
	c.AutoRecover = p.AutoRecover
	c.RecoverySteps = p.RecoverySteps
	c.RecoveryRetryTicks = p.RecoveryRetryTicks
	c.EfficiencyWindow = p.EfficiencyWindow
	return c
}

func (p Params) Grid() grid.Config {
	th := grid.DefaultThresholds()
	th.NominalFrequency = p.RatedFrequency
	return grid.Config{
		Thresholds:         th,
		RatedPower:         p.RatedPower,
		RatedApparentPower: p.RatedPower / p.PowerFactor,
	}
}

func (p Params) GridFlags() grid.Flags {
	return grid.Flags{
		PrimaryFrequency:   p.EnablePrimaryFrequency,
		SecondaryFrequency: p.EnableSecondaryFrequency,
		SyntheticInertia:   p.EnableSyntheticInertia,
		VoltageRegulation:  p.EnableVoltageRegulation,
		PowerFactor:        p.EnablePowerFactor,
		BatteryStorage:     p.EnableBatteryStorage,
		DemandResponse:     p.EnableDemandResponse,
		EconomicDispatch:   p.EnableEconomicDispatch,
	}
}

// Map returns the flat key/value view served by GET params.
func (p Params) Map() (map[string]any, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return out, nil
}
