package rediscache

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kppsim/internal/domain/electrical"
	"kppsim/internal/domain/plant"
)

func TestPlan_KeepsNewestPerRun(t *testing.T) {
	batch := []plant.Snapshot{
		{RunID: "a", Tick: 1, Power: 1},
		{RunID: "a", Tick: 2, Power: 2, NewFaults: []electrical.FaultRecord{{Kind: electrical.FaultOvercurrent, Time: 0.2, From: electrical.StateGenerating}}},
		{RunID: "b", Tick: 7, Power: 7},
	}
	plan, err := Plan("kpp", batch)
	require.NoError(t, err)

	require.Len(t, plan.Latest, 3)
	var a map[string]any
	require.NoError(t, json.Unmarshal(plan.Latest["kpp:run:a:latest"], &a))
	assert.Equal(t, 2.0, a["tick"])

	var overall map[string]any
	require.NoError(t, json.Unmarshal(plan.Latest["kpp:latest"], &overall))
	assert.Equal(t, "b", overall["run_id"])

	faults := plan.Faults["kpp:run:a:faults"]
	require.Len(t, faults, 1)
	assert.Contains(t, faults[0], `"kind":"OVERCURRENT"`)
	assert.Empty(t, plan.Faults["kpp:run:b:faults"])
}

func TestPlan_EmptyBatch(t *testing.T) {
	plan, err := Plan("kpp", nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Latest)
	assert.Empty(t, plan.Faults)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "x:latest", LatestKey("x"))
	assert.Equal(t, "x:run:r1:latest", RunLatestKey("x", "r1"))
	assert.Equal(t, "x:run:r1:faults", RunFaultsKey("x", "r1"))
}

func TestCache_AgainstServer(t *testing.T) {
	addr := os.Getenv("KPP_REDIS_ADDR")
	if addr == "" {
		t.Skip("KPP_REDIS_ADDR is required for integration test")
	}
	client := NewClient(Config{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	cache := NewCache(client, Config{Prefix: "it-kpp"})
	require.NoError(t, cache.Publish(ctx, []plant.Snapshot{{RunID: "it", Tick: 3}}))

	got, err := client.Get(ctx, RunLatestKey("it-kpp", "it")).Bytes()
	require.NoError(t, err)
	var s map[string]any
	require.NoError(t, json.Unmarshal(got, &s))
	assert.Equal(t, 3.0, s["tick"])
}
