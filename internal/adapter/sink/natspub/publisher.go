package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"kppsim/internal/app/ports"
	"kppsim/internal/domain/plant"
)

const DefaultSubject = "kpp.snapshots"

type Config struct {
	URL            string
	Name           string
	Subject        string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Conn is the part of *nats.Conn the sink needs.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Sink publishes every snapshot on Subject and every protection trip on
// Subject + ".faults".
type Sink struct {
	conn    Conn
	subject string
}

func Connect(cfg Config) (*nats.Conn, error) {
	if cfg.Name == "" {
		cfg.Name = "kppsim"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func NewSink(conn Conn, subject string) Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	return Sink{conn: conn, subject: subject}
}

func (s Sink) Name() string { return "nats" }

func (s Sink) Publish(ctx context.Context, batch []plant.Snapshot) error {
	for _, snap := range batch {
		msg, err := SnapshotMsg(s.subject, snap)
		if err != nil {
			return err
		}
		if err := s.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish snapshot %d: %w", snap.Tick, err)
		}
	}
	for _, ev := range ports.FaultEvents(batch) {
		msg, err := FaultMsg(s.subject, ev)
		if err != nil {
			return err
		}
		if err := s.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish fault: %w", err)
		}
	}
	return s.conn.FlushWithContext(ctx)
}

// SnapshotMsg builds the wire message for one snapshot. The message id lets
// JetStream consumers drop redelivered ticks.
func SnapshotMsg(subject string, snap plant.Snapshot) (*nats.Msg, error) {
	data, err := snap.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, snap.RunID+":"+strconv.FormatInt(snap.Tick, 10))
	msg.Header.Set("Kpp-Run-Id", snap.RunID)
	return msg, nil
}

type faultBody struct {
	RunID   string  `json:"run_id"`
	Tick    int64   `json:"tick"`
	SimTime float64 `json:"sim_time"`
	Kind    string  `json:"kind"`
	From    string  `json:"from"`
}

func FaultMsg(subject string, ev ports.FaultEvent) (*nats.Msg, error) {
	data, err := json.Marshal(faultBody(ev))
	if err != nil {
		return nil, fmt.Errorf("encode fault: %w", err)
	}
	msg := nats.NewMsg(subject + ".faults")
	msg.Data = data
	msg.Header.Set("Kpp-Run-Id", ev.RunID)
	return msg, nil
}
