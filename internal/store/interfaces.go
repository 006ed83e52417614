package store

import (
	"context"
	"errors"

	"safetalk.app/mediator/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write loses a uniqueness race or a status
// compare-and-set finds the row in a different state.
var ErrConflict = errors.New("conflict")

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByInviteCode(ctx context.Context, code string) (*model.User, error)
	// GetForUpdate locks the user row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.User, error)
	SetPartner(ctx context.Context, id int64, partnerID *int64) error
}

// QuestionStore defines the contract for question data access
type QuestionStore interface {
	Create(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	// GetForUpdate locks the question row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Question, error)
	// Transition moves the question from one status to another, returning
	// ErrConflict if it is no longer in the expected status.
	Transition(ctx context.Context, id int64, from, to model.QuestionStatus) (*model.Question, error)
	SetStatus(ctx context.Context, id int64, status model.QuestionStatus) (*model.Question, error)
	// MarkRedFlag sets red_flag status and the detection flag unless the question
	// is already answered or rejected, in which case it returns ErrConflict.
	MarkRedFlag(ctx context.Context, id int64) (*model.Question, error)
	ListByUser(ctx context.Context, userID int64, limit int32) ([]model.Question, error)
}

// ReflectionStore defines the contract for reflection log data access
type ReflectionStore interface {
	// Open returns the log for (question, role), creating an empty one if needed.
	Open(ctx context.Context, questionID int64, role model.Role) (*model.ReflectionLog, error)
	Get(ctx context.Context, questionID int64, role model.Role) (*model.ReflectionLog, error)
	ListByQuestion(ctx context.Context, questionID int64) ([]model.ReflectionLog, error)
	// AppendTurns adds turns after the current tail; turn Seq values are assigned here.
	AppendTurns(ctx context.Context, logID int64, turns ...model.Turn) ([]model.Turn, error)
}

// RedFlagStore is append-only.
type RedFlagStore interface {
	Create(ctx context.Context, ev *model.RedFlagEvent) error
	CountByQuestion(ctx context.Context, questionID int64) (int64, error)
	ListByQuestion(ctx context.Context, questionID int64) ([]model.RedFlagEvent, error)
}

// InsightStore defines the contract for insight data access
type InsightStore interface {
	// Create returns ErrConflict if the question already has an insight.
	Create(ctx context.Context, in *model.Insight) error
	GetByQuestion(ctx context.Context, questionID int64) (*model.Insight, error)
}

// PushTokenStore defines the contract for device token lookups
type PushTokenStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.PushToken, error)
}
