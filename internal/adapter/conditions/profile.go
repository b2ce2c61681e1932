package conditions

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"kppsim/internal/domain/grid"
)

var ErrEmptyProfile = errors.New("grid profile has no rows")

// Row is one line of a grid conditions CSV. Voltage is per unit.
type Row struct {
	Time             float64 `csv:"time"`
	Frequency        float64 `csv:"frequency"`
	Voltage          float64 `csv:"voltage"`
	ActivePower      float64 `csv:"active_power"`
	ReactivePower    float64 `csv:"reactive_power"`
	AGCSignal        float64 `csv:"agc_signal"`
	ElectricityPrice float64 `csv:"electricity_price"`
	GridConnected    bool    `csv:"grid_connected"`
}

type Config struct {
	// Loop replays the profile from the start once simulated time passes
	// the last row.
	Loop bool
}

// Profile replays recorded or scripted grid conditions. Analog values are
// interpolated linearly between rows; grid_connected holds the value of the
// row at or before the requested time.
type Profile struct {
	cfg  Config
	rows []Row
}

func NewProfile(rows []Row, cfg Config) (Profile, error) {
	if len(rows) == 0 {
		return Profile{}, ErrEmptyProfile
	}
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return Profile{cfg: cfg, rows: sorted}, nil
}

func ParseProfile(r io.Reader, cfg Config) (Profile, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return Profile{}, fmt.Errorf("parse grid profile: %w", err)
	}
	return NewProfile(rows, cfg)
}

func LoadProfile(path string, cfg Config) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("open grid profile: %w", err)
	}
	defer f.Close()
	return ParseProfile(f, cfg)
}

func (p Profile) Duration() float64 {
	return p.rows[len(p.rows)-1].Time - p.rows[0].Time
}

func (p Profile) Conditions(simTime float64) grid.Conditions {
	first, last := p.rows[0], p.rows[len(p.rows)-1]
	t := simTime
	if p.cfg.Loop && p.Duration() > 0 && t > last.Time {
		t = first.Time + math.Mod(t-first.Time, p.Duration())
	}
	switch {
	case t <= first.Time:
		return first.conditions()
	case t >= last.Time:
		return last.conditions()
	}

	i := sort.Search(len(p.rows), func(i int) bool { return p.rows[i].Time > t })
	a, b := p.rows[i-1], p.rows[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.conditions()
	}
	w := (t - a.Time) / span
	return grid.Conditions{
		Frequency:        lerp(a.Frequency, b.Frequency, w),
		Voltage:          lerp(a.Voltage, b.Voltage, w),
		ActivePower:      lerp(a.ActivePower, b.ActivePower, w),
		ReactivePower:    lerp(a.ReactivePower, b.ReactivePower, w),
		AGCSignal:        lerp(a.AGCSignal, b.AGCSignal, w),
		ElectricityPrice: lerp(a.ElectricityPrice, b.ElectricityPrice, w),
		GridConnected:    a.GridConnected,
	}
}

func (r Row) conditions() grid.Conditions {
	return grid.Conditions{
		Frequency:        r.Frequency,
		Voltage:          r.Voltage,
		ActivePower:      r.ActivePower,
		ReactivePower:    r.ReactivePower,
		AGCSignal:        r.AGCSignal,
		ElectricityPrice: r.ElectricityPrice,
		GridConnected:    r.GridConnected,
	}
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}
