package store

import (
	"context"
	"fmt"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type reflectionStore struct {
	queries *sqlc.Queries
}

func newReflectionStore(queries *sqlc.Queries) ReflectionStore {
	return &reflectionStore{queries: queries}
}

func (s *reflectionStore) Open(ctx context.Context, questionID int64, role model.Role) (*model.ReflectionLog, error) {
	row, err := s.queries.GetOrCreateReflection(ctx, sqlc.GetOrCreateReflectionParams{
		ID:         id.New(),
		QuestionID: questionID,
		Role:       string(role),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return s.withTurns(ctx, row)
}

func (s *reflectionStore) Get(ctx context.Context, questionID int64, role model.Role) (*model.ReflectionLog, error) {
	row, err := s.queries.GetReflection(ctx, sqlc.GetReflectionParams{
		QuestionID: questionID,
		Role:       string(role),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return s.withTurns(ctx, row)
}

func (s *reflectionStore) ListByQuestion(ctx context.Context, questionID int64) ([]model.ReflectionLog, error) {
	rows, err := s.queries.ListReflectionsByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	logs := make([]model.ReflectionLog, 0, len(rows))
	for _, row := range rows {
		log, err := s.withTurns(ctx, row)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	return logs, nil
}

func (s *reflectionStore) AppendTurns(ctx context.Context, logID int64, turns ...model.Turn) ([]model.Turn, error) {
	if len(turns) == 0 {
		return nil, nil
	}

	last, err := s.queries.MaxReflectionSeq(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("reading log tail: %w", err)
	}

	appended := make([]model.Turn, len(turns))
	for i, t := range turns {
		t.Seq = last + int32(i) + 1
		if err := s.queries.InsertReflectionTurn(ctx, sqlc.InsertReflectionTurnParams{
			ReflectionID: logID,
			Seq:          t.Seq,
			Speaker:      string(t.Speaker),
			Body:         t.Text,
		}); err != nil {
			return nil, mapErr(err)
		}
		appended[i] = t
	}

	if err := s.queries.TouchReflection(ctx, logID); err != nil {
		return nil, err
	}
	return appended, nil
}

func (s *reflectionStore) withTurns(ctx context.Context, row sqlc.Reflection) (*model.ReflectionLog, error) {
	turnRows, err := s.queries.ListReflectionTurns(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("listing turns for reflection %d: %w", row.ID, err)
	}

	log := &model.ReflectionLog{
		ID:         row.ID,
		QuestionID: row.QuestionID,
		Role:       model.Role(row.Role),
		Turns:      make([]model.Turn, len(turnRows)),
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
	for i, tr := range turnRows {
		log.Turns[i] = model.Turn{
			Seq:       tr.Seq,
			Speaker:   model.Speaker(tr.Speaker),
			Text:      tr.Body,
			CreatedAt: tr.CreatedAt.Time,
		}
	}
	return log, nil
}
