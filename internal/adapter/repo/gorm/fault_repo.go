package gormrepo

import (
	"context"

	"kppsim/internal/adapter/repo/gorm/model"
	"kppsim/internal/app/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FaultRepo struct {
	db *gorm.DB
}

func NewFaultRepo(db *gorm.DB) FaultRepo {
	return FaultRepo{db: db}
}

func (r FaultRepo) Append(ctx context.Context, events []ports.FaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.SimFaultEvent, 0, len(events))
	for _, e := range events {
		rows = append(rows, model.SimFaultEvent{
			RunID:     e.RunID,
			Tick:      e.Tick,
			SimTime:   e.SimTime,
			Kind:      e.Kind,
			FromState: e.From,
		})
	}
	return dbFor(ctx, r.db).Create(&rows).Error
}

func (r FaultRepo) ListByRun(ctx context.Context, runID string, limit int) ([]ports.FaultEvent, error) {
	rows := []model.SimFaultEvent{}
	query := dbFor(ctx, r.db).
		Where(&model.SimFaultEvent{RunID: runID}).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "tick"}}, {Column: clause.Column{Name: "id"}}},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.FaultEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.FaultEvent{
			RunID:   row.RunID,
			Tick:    row.Tick,
			SimTime: row.SimTime,
			Kind:    row.Kind,
			From:    row.FromState,
		})
	}
	return out, nil
}
