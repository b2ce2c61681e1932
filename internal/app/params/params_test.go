package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_MatchDocumentedValues(t *testing.T) {
	p := Defaults()
	require.NoError(t, p.Validate())

	assert.Equal(t, 8, p.NumFloaters)
	assert.Equal(t, 0.6, p.FloaterVolume)
	assert.Equal(t, 250000.0, p.AirPressure)
	assert.Equal(t, 0.6, p.GearRatio)
	assert.Equal(t, 3.0, p.PulseDuration)
	assert.Equal(t, 2.0, p.CoastDuration)
	assert.Equal(t, 0.1, p.TimeStep)
	assert.Equal(t, 20000.0, p.TargetPower)
	assert.Equal(t, 20, p.PolePairs)
	assert.Equal(t, 1000, p.QueueCapacity)
	assert.Equal(t, 3, p.MaxTickErrors)
	assert.True(t, p.EnableGridServices)
	assert.True(t, p.EnableBatteryStorage)
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_floaters: 4\npulse_duration: 1.5\nenable_drag: false\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, p.NumFloaters)
	assert.Equal(t, 1.5, p.PulseDuration)
	assert.False(t, p.EnableDrag)
	assert.Equal(t, 2.0, p.CoastDuration)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_floatrs: 4\n"), 0o600))

	_, err := Load(path)
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestLoad_RejectsFractionalCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_floaters: 6.5\n"), 0o600))

	_, err := Load(path)
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestLoad_EmptyPathIsDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestApply(t *testing.T) {
	base := Defaults()
	cases := []struct {
		name    string
		updates map[string]any
		wantErr bool
		check   func(t *testing.T, p Params)
	}{
		{
			name:    "numeric from json float",
			updates: map[string]any{"num_floaters": float64(6), "pulse_duration": 2.5},
			check: func(t *testing.T, p Params) {
				assert.Equal(t, 6, p.NumFloaters)
				assert.Equal(t, 2.5, p.PulseDuration)
			},
		},
		{
			name:    "flag",
			updates: map[string]any{"enable_battery_storage": false},
			check: func(t *testing.T, p Params) {
				assert.False(t, p.EnableBatteryStorage)
			},
		},
		{name: "unknown key", updates: map[string]any{"warp_drive": 1}, wantErr: true},
		{name: "wrong type", updates: map[string]any{"num_floaters": "many"}, wantErr: true},
		{name: "fractional count", updates: map[string]any{"num_floaters": 2.5}, wantErr: true},
		{name: "fractional retry ticks", updates: map[string]any{"recovery_retry_ticks": 20.2}, wantErr: true},
		{name: "zero time step", updates: map[string]any{"time_step": 0}, wantErr: true},
		{name: "negative pulse", updates: map[string]any{"pulse_duration": -1}, wantErr: true},
		{name: "mass inversion", updates: map[string]any{"floater_mass_full": 10}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := base.Apply(tc.updates)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidParams) {
					t.Fatalf("expected ErrInvalidParams, got %v", err)
				}
				assert.Equal(t, base, got)
				return
			}
			require.NoError(t, err)
			tc.check(t, got)
		})
	}
	assert.Equal(t, Defaults(), base, "Apply must not mutate the receiver")
}

func TestStructural(t *testing.T) {
	base := Defaults()

	live, err := base.Apply(map[string]any{"pulse_duration": 1.0, "target_power": 1000, "max_current": 50})
	require.NoError(t, err)
	assert.False(t, base.Structural(live))

	rebuilt, err := base.Apply(map[string]any{"num_floaters": 12})
	require.NoError(t, err)
	assert.True(t, base.Structural(rebuilt))

	resized, err := base.Apply(map[string]any{"queue_capacity": 10})
	require.NoError(t, err)
	assert.True(t, base.Structural(resized))
}

func TestRerated(t *testing.T) {
	base := Defaults()
	for key, v := range map[string]float64{"rated_frequency": 60, "rated_power": 30000, "power_factor": 0.95} {
		next, err := base.Apply(map[string]any{key: v})
		require.NoError(t, err, key)
		assert.True(t, base.Rerated(next), key)
		assert.False(t, base.Structural(next), key)
	}

	live, err := base.Apply(map[string]any{"target_power": 15000})
	require.NoError(t, err)
	assert.False(t, base.Rerated(live))
}

func TestBuilders_CarryValues(t *testing.T) {
	p := Defaults()

	fleet := p.Fleet()
	assert.Equal(t, p.NumFloaters, fleet.Count)
	assert.Equal(t, p.TankHeight, fleet.TankHeight)
	assert.Equal(t, p.EnableDrag, fleet.Physics.EnableDrag)

	dt := p.Drivetrain()
	assert.Equal(t, p.GearRatio, dt.GearRatio)
	assert.Equal(t, p.ClutchEngagementThreshold, dt.EngagementThreshold)

	ec := p.Electrical()
	assert.Equal(t, p.MaxCurrent, ec.MaxCurrent)
	assert.Equal(t, p.RecoverySteps, ec.RecoverySteps)
	assert.Equal(t, p.EnableThermalModel, ec.EnableThermal)

	gc := p.Grid()
	assert.Equal(t, p.RatedFrequency, gc.Thresholds.NominalFrequency)
	assert.InDelta(t, p.RatedPower/p.PowerFactor, gc.RatedApparentPower, 1e-9)

	assert.True(t, p.GridFlags().EconomicDispatch)
}

func TestMap_FlatSnakeCaseKeys(t *testing.T) {
	m, err := Defaults().Map()
	require.NoError(t, err)
	assert.Equal(t, 8, m["num_floaters"])
	assert.Equal(t, true, m["enable_drag"])
	assert.Contains(t, m, "clutch_engagement_threshold")
}
