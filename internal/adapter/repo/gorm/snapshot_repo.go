package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"kppsim/internal/adapter/repo/gorm/model"
	"kppsim/internal/domain/plant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const snapshotInsertBatch = 200

type SnapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) SnapshotRepo {
	return SnapshotRepo{db: db}
}

// Append stores the batch. Ticks already stored for a run are skipped.
func (r SnapshotRepo) Append(ctx context.Context, batch []plant.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]model.SimSnapshot, 0, len(batch))
	for _, s := range batch {
		row, err := snapshotRow(s)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return dbFor(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "tick"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, snapshotInsertBatch).Error
}

// ListByRun returns up to limit of the newest snapshots, oldest first.
func (r SnapshotRepo) ListByRun(ctx context.Context, runID string, limit int) ([]plant.Snapshot, error) {
	rows := []model.SimSnapshot{}
	query := dbFor(ctx, r.db).
		Where(&model.SimSnapshot{RunID: runID}).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "tick"}, Desc: true}},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	slices.Reverse(rows)

	out := make([]plant.Snapshot, 0, len(rows))
	for _, row := range rows {
		var s plant.Snapshot
		if err := json.Unmarshal([]byte(row.Payload), &s); err != nil {
			return nil, fmt.Errorf("decode snapshot %s/%d: %w", row.RunID, row.Tick, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func snapshotRow(s plant.Snapshot) (model.SimSnapshot, error) {
	payload, err := s.JSON()
	if err != nil {
		return model.SimSnapshot{}, err
	}
	return model.SimSnapshot{
		RunID:            s.RunID,
		Tick:             s.Tick,
		SimTime:          s.Time,
		Power:            s.Power,
		Torque:           s.Torque,
		FlywheelSpeedRpm: s.FlywheelSpeedRPM,
		PulseCount:       int32(s.PulseCount),
		SystemState:      string(s.Electrical.State),
		GridCondition:    string(s.GridServices.Condition),
		Payload:          string(payload),
	}, nil
}
