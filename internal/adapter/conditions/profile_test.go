package conditions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `time,frequency,voltage,active_power,reactive_power,agc_signal,electricity_price,grid_connected
0,50.0,1.00,0,0,0,40,true
10,49.6,0.98,1000,0,0.5,80,true
20,50.0,1.00,0,0,0,40,false
`

func TestParseProfile_InterpolatesBetweenRows(t *testing.T) {
	p, err := ParseProfile(strings.NewReader(sampleProfile), Config{})
	require.NoError(t, err)

	c := p.Conditions(5)
	assert.InDelta(t, 49.8, c.Frequency, 1e-9)
	assert.InDelta(t, 0.99, c.Voltage, 1e-9)
	assert.InDelta(t, 60.0, c.ElectricityPrice, 1e-9)
	assert.InDelta(t, 0.25, c.AGCSignal, 1e-9)
	assert.True(t, c.GridConnected)

	c = p.Conditions(15)
	assert.True(t, c.GridConnected, "connection holds the earlier row's value")
	assert.InDelta(t, 49.8, c.Frequency, 1e-9)
}

func TestProfile_ClampsOutsideRange(t *testing.T) {
	p, err := ParseProfile(strings.NewReader(sampleProfile), Config{})
	require.NoError(t, err)

	assert.Equal(t, 50.0, p.Conditions(-3).Frequency)
	end := p.Conditions(100)
	assert.Equal(t, 50.0, end.Frequency)
	assert.False(t, end.GridConnected)
}

func TestProfile_Loop(t *testing.T) {
	p, err := ParseProfile(strings.NewReader(sampleProfile), Config{Loop: true})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, p.Duration(), 1e-9)
	assert.InDelta(t, p.Conditions(5).Frequency, p.Conditions(25).Frequency, 1e-9)
}

func TestNewProfile_SortsRowsAndRejectsEmpty(t *testing.T) {
	_, err := NewProfile(nil, Config{})
	if !errors.Is(err, ErrEmptyProfile) {
		t.Fatalf("expected ErrEmptyProfile, got %v", err)
	}
	p, err := NewProfile([]Row{{Time: 10, Frequency: 51}, {Time: 0, Frequency: 49}}, Config{})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, p.Conditions(5).Frequency, 1e-9)
}

func TestLoadProfile_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))
	p, err := LoadProfile(path, Config{})
	require.NoError(t, err)
	assert.InDelta(t, 40.0, p.Conditions(0).ElectricityPrice, 1e-9)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.csv"), Config{})
	require.Error(t, err)
}

func TestStatic_Nominal(t *testing.T) {
	s := NewNominal(60)
	c := s.Conditions(123)
	assert.Equal(t, 60.0, c.Frequency)
	assert.Equal(t, 1.0, c.Voltage)
	assert.True(t, c.GridConnected)
}
