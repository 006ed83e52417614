package store

import (
	"context"

	"safetalk.app/mediator/core/db/sqlc"
	"safetalk.app/mediator/internal/model"
)

type userStore struct {
	queries *sqlc.Queries
}

func newUserStore(queries *sqlc.Queries) UserStore {
	return &userStore{queries: queries}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toUserModel(row), nil
}

func (s *userStore) GetByInviteCode(ctx context.Context, code string) (*model.User, error) {
	row, err := s.queries.GetUserByInviteCode(ctx, code)
	if err != nil {
		return nil, mapErr(err)
	}
	return toUserModel(row), nil
}

func (s *userStore) GetForUpdate(ctx context.Context, id int64) (*model.User, error) {
	row, err := s.queries.GetUserForUpdate(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toUserModel(row), nil
}

func (s *userStore) SetPartner(ctx context.Context, id int64, partnerID *int64) error {
	return s.queries.SetUserPartner(ctx, sqlc.SetUserPartnerParams{
		ID:        id,
		PartnerID: partnerID,
	})
}

func toUserModel(row sqlc.User) *model.User {
	return &model.User{
		ID:         row.ID,
		Email:      row.Email,
		FullName:   row.FullName,
		InviteCode: row.InviteCode,
		PartnerID:  row.PartnerID,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}
