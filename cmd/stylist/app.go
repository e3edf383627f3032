package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/orchestrator"
	llmx "github.com/tanpawarit/ali-stylist-agent/agent/llm"
	"github.com/tanpawarit/ali-stylist-agent/agent/memory"
	nodex "github.com/tanpawarit/ali-stylist-agent/agent/nodes"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
	configx "github.com/tanpawarit/ali-stylist-agent/pkg/config"
	"github.com/tanpawarit/ali-stylist-agent/pkg/openmeteo"
	"github.com/tanpawarit/ali-stylist-agent/pkg/outfit"
)

// app owns everything a running stylist needs and closes it in reverse order.
type app struct {
	orch    *orchestrator.Orchestrator
	closers []io.Closer
}

func buildApp(ctx context.Context) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	stylistCfg, err := configx.New[orchestrator.Config]("STYLIST")
	if err != nil {
		return nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	memCfg, err := configx.New[memory.Config]("MEMORY")
	if err != nil {
		return nil, err
	}
	outfitCfg, err := configx.New[outfit.Config]("OUTFIT")
	if err != nil {
		return nil, err
	}
	weatherCfg, err := configx.New[openmeteo.Config]("WEATHER")
	if err != nil {
		return nil, err
	}

	store, err := memory.New(ctx, *memCfg)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	a.closers = append(a.closers, store)

	var outfits outfit.Repository
	if repo, err := outfit.New(ctx, *outfitCfg); err != nil {
		log.Warn().Err(err).Str("backend", string(outfitCfg.Backend)).Msg("outfit catalog unavailable; continuing without outfit of the day")
	} else {
		outfits = repo
		if c, ok := repo.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	weather, err := openmeteo.NewClient(*weatherCfg)
	if err != nil {
		return nil, fmt.Errorf("build weather client: %w", err)
	}

	agents, err := orchestrator.NewAgentsFromConfig(ctx, *stylistCfg, *llmCfg)
	if err != nil {
		return nil, fmt.Errorf("build agents: %w", err)
	}

	sessions := statex.NewRegistry(statex.WithIdleTTL(stylistCfg.SessionIdleTTL))
	a.closers = append(a.closers, sessions)

	a.orch, err = orchestrator.New(
		sessions,
		agents,
		memory.NewSummaryStore(store),
		orchestrator.Sources{
			Outfits:     nodex.OutfitSource(outfits),
			Environment: nodex.EnvironmentSource(openmeteo.NewCached(weather, weatherCfg.CacheTTL)),
		},
		*stylistCfg,
	)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("memory", string(memCfg.Backend)).
		Str("outfits", string(outfitCfg.Backend)).
		Str("llm_provider", string(llmCfg.Provider)).
		Msg("stylist ready")
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
