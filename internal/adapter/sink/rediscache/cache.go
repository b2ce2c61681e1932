package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kppsim/internal/app/ports"
	"kppsim/internal/domain/plant"
)

const (
	DefaultPrefix   = "kpp"
	defaultFaultCap = 100
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL expires per-run keys; zero keeps them.
	TTL time.Duration
	// FaultHistory bounds the per-run fault list.
	FaultHistory int
}

// Cache keeps the newest snapshot of each run, and of the plant overall,
// where dashboards can poll it without touching the engine.
type Cache struct {
	client redis.Cmdable
	cfg    Config
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewCache(client redis.Cmdable, cfg Config) Cache {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.FaultHistory <= 0 {
		cfg.FaultHistory = defaultFaultCap
	}
	return Cache{client: client, cfg: cfg}
}

func (c Cache) Name() string { return "redis" }

func (c Cache) Publish(ctx context.Context, batch []plant.Snapshot) error {
	plan, err := Plan(c.cfg.Prefix, batch)
	if err != nil {
		return err
	}
	if len(plan.Latest) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for key, value := range plan.Latest {
		ttl := c.cfg.TTL
		if key == LatestKey(c.cfg.Prefix) {
			ttl = 0
		}
		pipe.Set(ctx, key, value, ttl)
	}
	for key, values := range plan.Faults {
		pipe.LPush(ctx, key, values...)
		pipe.LTrim(ctx, key, 0, int64(c.cfg.FaultHistory-1))
		if c.cfg.TTL > 0 {
			pipe.Expire(ctx, key, c.cfg.TTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func LatestKey(prefix string) string {
	return prefix + ":latest"
}

func RunLatestKey(prefix, runID string) string {
	return prefix + ":run:" + runID + ":latest"
}

func RunFaultsKey(prefix, runID string) string {
	return prefix + ":run:" + runID + ":faults"
}

// WritePlan is the set of Redis writes one batch turns into.
type WritePlan struct {
	Latest map[string][]byte
	Faults map[string][]any
}

// Plan maps a batch onto keys. Only the newest snapshot of each run is kept;
// fault lists are pushed newest first.
func Plan(prefix string, batch []plant.Snapshot) (WritePlan, error) {
	plan := WritePlan{Latest: map[string][]byte{}, Faults: map[string][]any{}}
	if len(batch) == 0 {
		return plan, nil
	}
	newest := map[string]plant.Snapshot{}
	for _, s := range batch {
		if cur, ok := newest[s.RunID]; !ok || s.Tick >= cur.Tick {
			newest[s.RunID] = s
		}
	}
	for runID, s := range newest {
		b, err := s.JSON()
		if err != nil {
			return WritePlan{}, fmt.Errorf("encode snapshot: %w", err)
		}
		plan.Latest[RunLatestKey(prefix, runID)] = b
	}
	last := batch[len(batch)-1]
	b, err := last.JSON()
	if err != nil {
		return WritePlan{}, fmt.Errorf("encode snapshot: %w", err)
	}
	plan.Latest[LatestKey(prefix)] = b

	for _, ev := range ports.FaultEvents(batch) {
		b, err := json.Marshal(map[string]any{
			"tick":     ev.Tick,
			"sim_time": ev.SimTime,
			"kind":     ev.Kind,
			"from":     ev.From,
		})
		if err != nil {
			return WritePlan{}, fmt.Errorf("encode fault: %w", err)
		}
		key := RunFaultsKey(prefix, ev.RunID)
		plan.Faults[key] = append(plan.Faults[key], string(b))
	}
	return plan, nil
}
