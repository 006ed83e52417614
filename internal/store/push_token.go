package store

import (
	"context"

	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type pushTokenStore struct {
	queries *sqlc.Queries
}

func newPushTokenStore(queries *sqlc.Queries) PushTokenStore {
	return &pushTokenStore{queries: queries}
}

func (s *pushTokenStore) ListByUser(ctx context.Context, userID int64) ([]model.PushToken, error) {
	rows, err := s.queries.ListPushTokensByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokens := make([]model.PushToken, len(rows))
	for i, row := range rows {
		tokens[i] = model.PushToken{
			UserID:      row.UserID,
			DeviceToken: row.DeviceToken,
			UpdatedAt:   row.UpdatedAt.Time,
		}
	}
	return tokens, nil
}
