package store

import (
	"context"

	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type questionStore struct {
	queries *sqlc.Queries
}

func newQuestionStore(queries *sqlc.Queries) QuestionStore {
	return &questionStore{queries: queries}
}

func (s *questionStore) Create(ctx context.Context, q *model.Question) error {
	row, err := s.queries.CreateQuestion(ctx, sqlc.CreateQuestionParams{
		ID:           q.ID,
		AskerID:      q.AskerID,
		PartnerID:    q.PartnerID,
		QuestionText: q.Text,
		Status:       string(q.Status),
	})
	if err != nil {
		return mapErr(err)
	}
	*q = *toQuestionModel(row)
	return nil
}

func (s *questionStore) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	row, err := s.queries.GetQuestion(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toQuestionModel(row), nil
}

func (s *questionStore) GetForUpdate(ctx context.Context, id int64) (*model.Question, error) {
	row, err := s.queries.GetQuestionForUpdate(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toQuestionModel(row), nil
}

func (s *questionStore) Transition(ctx context.Context, id int64, from, to model.QuestionStatus) (*model.Question, error) {
	row, err := s.queries.TransitionQuestionStatus(ctx, sqlc.TransitionQuestionStatusParams{
		ToStatus:   string(to),
		ID:         id,
		FromStatus: string(from),
	})
	if err != nil {
		err = mapErr(err)
		if err == ErrNotFound {
			// Either the row is gone or it moved on; callers treat both as a lost race.
			return nil, ErrConflict
		}
		return nil, err
	}
	return toQuestionModel(row), nil
}

func (s *questionStore) SetStatus(ctx context.Context, id int64, status model.QuestionStatus) (*model.Question, error) {
	row, err := s.queries.SetQuestionStatus(ctx, sqlc.SetQuestionStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return toQuestionModel(row), nil
}

func (s *questionStore) MarkRedFlag(ctx context.Context, id int64) (*model.Question, error) {
	row, err := s.queries.MarkQuestionRedFlag(ctx, id)
	if err != nil {
		err = mapErr(err)
		if err == ErrNotFound {
			return nil, ErrConflict
		}
		return nil, err
	}
	return toQuestionModel(row), nil
}

func (s *questionStore) ListByUser(ctx context.Context, userID int64, limit int32) ([]model.Question, error) {
	rows, err := s.queries.ListQuestionsByUser(ctx, sqlc.ListQuestionsByUserParams{
		AskerID: userID,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	questions := make([]model.Question, len(rows))
	for i, row := range rows {
		questions[i] = *toQuestionModel(row)
	}
	return questions, nil
}

func toQuestionModel(row sqlc.Question) *model.Question {
	return &model.Question{
		ID:              row.ID,
		AskerID:         row.AskerID,
		PartnerID:       row.PartnerID,
		Text:            row.QuestionText,
		Status:          model.QuestionStatus(row.Status),
		RedFlagDetected: row.RedFlagDetected,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}
