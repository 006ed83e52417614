package store

import (
	"safetalk.app/mediator/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.queries)
}

func (s *Stores) Questions() QuestionStore {
	return newQuestionStore(s.queries)
}

func (s *Stores) Reflections() ReflectionStore {
	return newReflectionStore(s.queries)
}

func (s *Stores) RedFlags() RedFlagStore {
	return newRedFlagStore(s.queries)
}

func (s *Stores) Insights() InsightStore {
	return newInsightStore(s.queries)
}

func (s *Stores) PushTokens() PushTokenStore {
	return newPushTokenStore(s.queries)
}
