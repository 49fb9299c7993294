package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nimec77/deepseek-agents/internal/app/agent"
	"github.com/nimec77/deepseek-agents/internal/app/pipeline"
	"github.com/nimec77/deepseek-agents/internal/config"
	"github.com/nimec77/deepseek-agents/internal/delivery/console"
	"github.com/nimec77/deepseek-agents/internal/infra/filestore"
	"github.com/nimec77/deepseek-agents/internal/infra/httpclient"
	"github.com/nimec77/deepseek-agents/internal/infra/llm"
	"github.com/nimec77/deepseek-agents/internal/infra/observability"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// Container holds the wired dependencies for one CLI invocation.
type Container struct {
	Config        config.Config
	Observability *observability.Observability
	Client        *llm.Client
	Producer      *agent.Agent
	Auditor       *agent.Agent
	Store         *filestore.ArtifactStore
	Renderer      *console.Renderer
	Orchestrator  *pipeline.Orchestrator
}

// buildContainer wires observability, the shared HTTP transport, both agents,
// the artifact store and the orchestrator. On error the observability stack
// it started is shut down again.
func buildContainer(cfg config.Config, renderer *console.Renderer, producerOnly bool) (_ *Container, err error) {
	obs := observability.New(cfg.Observability)
	logger := logging.NewComponentLogger("cli")
	defer func() {
		if err == nil {
			return
		}
		if serr := shutdownObservability(obs); serr != nil {
			logger.Warn("Observability shutdown after failed setup: %v", serr)
		}
	}()
	logger.Debug("Using API key %s against %s", logging.SanitizeAPIKey(cfg.APIKey), cfg.BaseURL)

	// Per-request deadlines come from each agent's timeout.
	httpClient := httpclient.New(httpclient.Options{ProxyMode: cfg.ProxyMode}, logging.NewComponentLogger("httpclient"))
	client, err := llm.NewClient(llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		JSONMode:   cfg.JSONMode,
		Retry:      cfg.RetryPolicy(),
		HTTPClient: httpClient,
		Logger:     logging.NewComponentLogger("llm"),
		Metrics:    obs.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	producer, err := agent.New(agent.RoleProducer, client, agentConfig(cfg, cfg.Producer))
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	auditor, err := agent.New(agent.RoleAuditor, client, agentConfig(cfg, cfg.Auditor))
	if err != nil {
		return nil, fmt.Errorf("create auditor: %w", err)
	}

	store := filestore.NewArtifactStore(cfg.OutDir, logging.NewComponentLogger("filestore"))
	orchestrator, err := pipeline.New(producer, auditor, pipeline.Options{
		ProducerOnly: producerOnly,
		Sinks:        []pipeline.Sink{store, renderer},
		OnTransition: renderer.Transition,
		Metrics:      obs.Metrics,
		Tracer:       obs.Tracer,
		Logger:       logging.NewComponentLogger("pipeline"),
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return &Container{
		Config:        cfg,
		Observability: obs,
		Client:        client,
		Producer:      producer,
		Auditor:       auditor,
		Store:         store,
		Renderer:      renderer,
		Orchestrator:  orchestrator,
	}, nil
}

func agentConfig(cfg config.Config, role config.RoleConfig) agent.Config {
	return agent.Config{
		Model:                role.Model,
		Temperature:          role.Temperature,
		MaxTokens:            cfg.MaxTokens,
		Timeout:              cfg.Timeout,
		LenientJSON:          cfg.LenientJSON,
		EvidencePromptTokens: cfg.EvidencePromptTokens,
		ContextWindow:        cfg.ContextWindow,
	}
}

// Cleanup flushes metrics and traces.
func (c *Container) Cleanup() error {
	if c == nil {
		return nil
	}
	return shutdownObservability(c.Observability)
}

func shutdownObservability(obs *observability.Observability) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return obs.Shutdown(ctx)
}
