package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"kppsim/internal/app/ports"
	"kppsim/internal/domain/plant"
)

const (
	measurementPlant = "kpp_plant"
	measurementFault = "kpp_fault"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Epoch anchors simulated time to wall-clock timestamps.
	Epoch time.Time
}

// Writer stores one point per snapshot and one per protection trip.
type Writer struct {
	api   api.WriteAPIBlocking
	epoch time.Time
}

func NewClient(cfg Config) influxdb2.Client {
	return influxdb2.NewClient(cfg.URL, cfg.Token)
}

func NewWriter(client influxdb2.Client, cfg Config) Writer {
	return newWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Epoch)
}

func newWriter(w api.WriteAPIBlocking, epoch time.Time) Writer {
	if epoch.IsZero() {
		epoch = time.Now().UTC()
	}
	return Writer{api: w, epoch: epoch}
}

func (w Writer) Name() string { return "influx" }

func (w Writer) Publish(ctx context.Context, batch []plant.Snapshot) error {
	points := Points(batch, w.epoch)
	if len(points) == 0 {
		return nil
	}
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Points maps a batch to line-protocol points stamped at epoch + sim time.
func Points(batch []plant.Snapshot, epoch time.Time) []*write.Point {
	out := make([]*write.Point, 0, len(batch))
	for _, s := range batch {
		out = append(out, influxdb2.NewPoint(measurementPlant,
			map[string]string{
				"run_id":       s.RunID,
				"system_state": string(s.Electrical.State),
				"phase":        string(s.Pulse.Phase),
				"condition":    string(s.GridServices.Condition),
			},
			map[string]any{
				"tick":               s.Tick,
				"power":              s.Power,
				"torque":             s.Torque,
				"flywheel_speed_rpm": s.FlywheelSpeedRPM,
				"chain_speed_rpm":    s.ChainSpeedRPM,
				"tank_pressure":      s.TankPressure,
				"pulse_count":        s.PulseCount,
				"overall_efficiency": s.OverallEfficiency,
				"voltage":            s.Electrical.Voltage,
				"current":            s.Electrical.Current,
				"temperature":        s.Electrical.Temperature,
				"grid_active_cmd":    s.GridServices.Command.ActivePower,
				"grid_reactive_cmd":  s.GridServices.Command.ReactivePower,
				"fault_count":        s.Electrical.FaultCount,
			},
			stamp(epoch, s.Time)))
	}
	for _, ev := range ports.FaultEvents(batch) {
		out = append(out, influxdb2.NewPoint(measurementFault,
			map[string]string{"run_id": ev.RunID, "kind": ev.Kind, "from": ev.From},
			map[string]any{"tick": ev.Tick},
			stamp(epoch, ev.SimTime)))
	}
	return out
}

func stamp(epoch time.Time, simTime float64) time.Time {
	return epoch.Add(time.Duration(simTime * float64(time.Second)))
}
