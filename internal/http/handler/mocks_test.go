package handler_test

import (
	"context"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

type mockOrchestrator struct {
	submitFn     func(ctx context.Context, askerID int64, text string) (*brain.SubmitResult, error)
	advanceFn    func(ctx context.Context, req brain.AdvanceRequest) (*brain.AdvanceResult, error)
	statusFn     func(ctx context.Context, questionID, userID int64) (*brain.StatusView, error)
	insightFn    func(ctx context.Context, questionID, userID int64) (*model.Insight, error)
	transcriptFn func(ctx context.Context, questionID, userID int64, role model.Role) (*model.ReflectionLog, error)
	completeFn   func(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error)
	declineFn    func(ctx context.Context, questionID, userID int64) (*model.Question, error)
	linkFn       func(ctx context.Context, userID int64, inviteCode string) (*model.User, error)
	checkFn      func(text string) (safety.Classification, *safety.Guidance)
}

func (m *mockOrchestrator) SubmitQuestion(ctx context.Context, askerID int64, text string) (*brain.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, askerID, text)
	}
	return nil, nil
}

func (m *mockOrchestrator) AdvanceDialog(ctx context.Context, req brain.AdvanceRequest) (*brain.AdvanceResult, error) {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, req)
	}
	return nil, nil
}

func (m *mockOrchestrator) GetStatus(ctx context.Context, questionID, userID int64) (*brain.StatusView, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, questionID, userID)
	}
	return nil, nil
}

func (m *mockOrchestrator) GetInsight(ctx context.Context, questionID, userID int64) (*model.Insight, error) {
	if m.insightFn != nil {
		return m.insightFn(ctx, questionID, userID)
	}
	return nil, nil
}

func (m *mockOrchestrator) GetTranscript(ctx context.Context, questionID, userID int64, role model.Role) (*model.ReflectionLog, error) {
	if m.transcriptFn != nil {
		return m.transcriptFn(ctx, questionID, userID, role)
	}
	return nil, nil
}

func (m *mockOrchestrator) CompletePartnerPhase(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, questionID, userID)
	}
	return nil, nil
}

func (m *mockOrchestrator) DeclineQuestion(ctx context.Context, questionID, userID int64) (*model.Question, error) {
	if m.declineFn != nil {
		return m.declineFn(ctx, questionID, userID)
	}
	return nil, nil
}

func (m *mockOrchestrator) LinkPartners(ctx context.Context, userID int64, inviteCode string) (*model.User, error) {
	if m.linkFn != nil {
		return m.linkFn(ctx, userID, inviteCode)
	}
	return nil, nil
}

func (m *mockOrchestrator) CheckText(text string) (safety.Classification, *safety.Guidance) {
	if m.checkFn != nil {
		return m.checkFn(text)
	}
	return safety.Classification{RecommendedAction: safety.ActionContinueConversation}, nil
}
