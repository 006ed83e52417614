package store

import (
	"context"

	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type insightStore struct {
	queries *sqlc.Queries
}

func newInsightStore(queries *sqlc.Queries) InsightStore {
	return &insightStore{queries: queries}
}

func (s *insightStore) Create(ctx context.Context, in *model.Insight) error {
	row, err := s.queries.CreateInsight(ctx, sqlc.CreateInsightParams{
		ID:                in.ID,
		QuestionID:        in.QuestionID,
		EmotionalSummary:  in.EmotionalSummary,
		ContextualSummary: in.ContextualSummary,
		SuggestedAction:   in.SuggestedAction,
	})
	if err != nil {
		return mapErr(err)
	}
	*in = *toInsightModel(row)
	return nil
}

func (s *insightStore) GetByQuestion(ctx context.Context, questionID int64) (*model.Insight, error) {
	row, err := s.queries.GetInsightByQuestion(ctx, questionID)
	if err != nil {
		return nil, mapErr(err)
	}
	return toInsightModel(row), nil
}

func toInsightModel(row sqlc.Insight) *model.Insight {
	return &model.Insight{
		ID:                row.ID,
		QuestionID:        row.QuestionID,
		EmotionalSummary:  row.EmotionalSummary,
		ContextualSummary: row.ContextualSummary,
		SuggestedAction:   row.SuggestedAction,
		CreatedAt:         row.CreatedAt.Time,
	}
}
