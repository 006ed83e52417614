package store

import (
	"context"

	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type redFlagStore struct {
	queries *sqlc.Queries
}

func newRedFlagStore(queries *sqlc.Queries) RedFlagStore {
	return &redFlagStore{queries: queries}
}

func (s *redFlagStore) Create(ctx context.Context, ev *model.RedFlagEvent) error {
	row, err := s.queries.CreateRedFlag(ctx, sqlc.CreateRedFlagParams{
		ID:            ev.ID,
		QuestionID:    ev.QuestionID,
		TriggerPhrase: ev.TriggerPhrase,
		WhoTriggered:  string(ev.WhoTriggered),
		Severity:      string(ev.Severity),
		Category:      string(ev.Category),
		ActionTaken:   ev.ActionTaken,
	})
	if err != nil {
		return mapErr(err)
	}
	*ev = *toRedFlagModel(row)
	return nil
}

func (s *redFlagStore) CountByQuestion(ctx context.Context, questionID int64) (int64, error) {
	return s.queries.CountRedFlagsByQuestion(ctx, questionID)
}

func (s *redFlagStore) ListByQuestion(ctx context.Context, questionID int64) ([]model.RedFlagEvent, error) {
	rows, err := s.queries.ListRedFlagsByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	events := make([]model.RedFlagEvent, len(rows))
	for i, row := range rows {
		events[i] = *toRedFlagModel(row)
	}
	return events, nil
}

func toRedFlagModel(row sqlc.RedFlag) *model.RedFlagEvent {
	return &model.RedFlagEvent{
		ID:            row.ID,
		QuestionID:    row.QuestionID,
		TriggerPhrase: row.TriggerPhrase,
		WhoTriggered:  model.Role(row.WhoTriggered),
		Severity:      model.Severity(row.Severity),
		Category:      model.Category(row.Category),
		ActionTaken:   row.ActionTaken,
		CreatedAt:     row.CreatedAt.Time,
	}
}
