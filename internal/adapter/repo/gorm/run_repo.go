package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kppsim/internal/adapter/repo/gorm/model"
	"kppsim/internal/app/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RunRepo struct {
	db *gorm.DB
}

func NewRunRepo(db *gorm.DB) RunRepo {
	return RunRepo{db: db}
}

func (r RunRepo) Create(ctx context.Context, run ports.RunRecord) error {
	params := run.Params
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}
	m := model.SimRun{
		RunID:     run.RunID,
		Params:    string(b),
		StartedAt: run.StartedAt,
		StoppedAt: run.StoppedAt,
	}
	res := dbFor(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}
	return nil
}

func (r RunRepo) MarkStopped(ctx context.Context, runID string, at time.Time) error {
	res := dbFor(ctx, r.db).Model(&model.SimRun{}).
		Where("run_id = ?", runID).
		Update("stopped_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r RunRepo) Get(ctx context.Context, runID string) (ports.RunRecord, error) {
	var m model.SimRun
	if err := dbFor(ctx, r.db).Where("run_id = ?", runID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RunRecord{}, ports.ErrNotFound
		}
		return ports.RunRecord{}, err
	}
	var params map[string]any
	if m.Params != "" {
		_ = json.Unmarshal([]byte(m.Params), &params)
	}
	return ports.RunRecord{
		RunID:     m.RunID,
		Params:    params,
		StartedAt: m.StartedAt,
		StoppedAt: m.StoppedAt,
	}, nil
}
