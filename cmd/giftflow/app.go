package main

import (
	"context"
	"errors"
	"fmt"

	"giftflow/internal/browser"
	"giftflow/internal/card"
	"giftflow/internal/checkout"
	"giftflow/internal/config"
	"giftflow/internal/discovery"
	"giftflow/internal/logging"
	"giftflow/internal/orchestrator"
	"giftflow/internal/riddle"
	"giftflow/internal/store"

	"go.uber.org/zap"
)

// app is the wired pipeline shared by every command.
type app struct {
	store   store.Store
	factory *browser.RodFactory
	engine  *orchestrator.Engine
}

// newApp builds the store, the browser factory and the engine. Riddle and
// card generation stay unwired when their keys are missing.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.New(ctx, cfg.Store, logging.Get(logging.CategoryStore))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	factory := browser.NewRodFactory(browser.ConfigFrom(cfg), logging.Get(logging.CategoryBrowser))

	deps := orchestrator.Deps{
		Store:     st,
		Factory:   factory,
		Discovery: discovery.NewEngine(factory, discovery.OptionsFrom(cfg), logging.Get(logging.CategoryDiscovery)),
		Checkout:  checkout.NewAutomaton(factory, checkout.OptionsFrom(cfg), logging.Get(logging.CategoryCheckout)),
		Logger:    logging.Get(logging.CategoryOrchestrator),
	}

	boot := logging.Get(logging.CategoryBoot)
	if g, err := riddle.NewGenAIGenerator(ctx, cfg, logging.Get(logging.CategoryRiddle)); err == nil {
		deps.Riddles = g
	} else if !errors.Is(err, riddle.ErrNoAPIKey) {
		_ = st.Close()
		return nil, err
	} else {
		boot.Warn("riddle generation disabled: no API key")
	}
	if c, err := card.NewGammaClient(cfg, logging.Get(logging.CategoryCard)); err == nil {
		deps.Cards = c
	} else if !errors.Is(err, card.ErrNoAPIKey) {
		_ = st.Close()
		return nil, err
	} else {
		boot.Warn("card generation disabled: no API key")
	}

	eng := orchestrator.New(deps)
	eng.ShutdownTimeout = cfg.GetShutdownTimeout()

	boot.Info("pipeline ready",
		zap.String("store", cfg.Store.Backend),
		zap.Bool("riddles", deps.Riddles != nil),
		zap.Bool("cards", deps.Cards != nil))
	return &app{store: st, factory: factory, engine: eng}, nil
}

// Close releases the browser and the store.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.factory.Shutdown(context.WithoutCancel(ctx)), a.store.Close())
}
