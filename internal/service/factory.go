package service

import (
	"fmt"

	"safetalk.app/mediator/common/llm"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/lock"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/safety"
	"safetalk.app/mediator/internal/store"
)

type ServicesConfig struct {
	Stores    *store.Stores
	TxRunner  brain.TxRunner
	Locker    lock.Locker
	Notifier  notify.Notifier
	Scheduler brain.Scheduler

	ClarifyLLM    config.LLMConfig
	ReflectionLLM config.LLMConfig
	InsightLLM    config.LLMConfig
	Dialog        config.DialogConfig
}

// Services is the composition root shared by the API server and the worker.
type Services struct {
	engine       *safety.Engine
	orchestrator *brain.Orchestrator
}

func NewServices(cfg ServicesConfig) (*Services, error) {
	engine, err := safety.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("loading safety policy: %w", err)
	}

	clarify, err := modelSettings("clarify", cfg.ClarifyLLM)
	if err != nil {
		return nil, err
	}
	reflection, err := modelSettings("reflection", cfg.ReflectionLLM)
	if err != nil {
		return nil, err
	}
	insight, err := modelSettings("insight", cfg.InsightLLM)
	if err != nil {
		return nil, err
	}

	escalator := brain.NewEscalator(cfg.Stores, cfg.TxRunner, engine)
	driver := brain.NewDialogDriver(cfg.Stores, cfg.TxRunner, engine, escalator, cfg.Locker, clarify, reflection, cfg.Dialog)
	synthesizer := brain.NewSynthesizer(cfg.Stores, cfg.TxRunner, insight, cfg.Dialog.LLMTimeout, cfg.Notifier)

	return &Services{
		engine: engine,
		orchestrator: brain.NewOrchestrator(
			cfg.Stores,
			cfg.TxRunner,
			engine,
			driver,
			escalator,
			synthesizer,
			cfg.Notifier,
			cfg.Scheduler,
			cfg.Dialog,
		),
	}, nil
}

func (s *Services) Orchestrator() *brain.Orchestrator {
	return s.orchestrator
}

func (s *Services) Safety() *safety.Engine {
	return s.engine
}

func modelSettings(phase string, cfg config.LLMConfig) (brain.ModelSettings, error) {
	client, err := llm.NewClient(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	})
	if err != nil {
		return brain.ModelSettings{}, fmt.Errorf("creating %s llm client: %w", phase, err)
	}
	return brain.ModelSettings{
		Client:      client,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil
}
