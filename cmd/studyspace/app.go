package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/thywilljoshua/studyspace/internal/ai"
	"github.com/thywilljoshua/studyspace/internal/config"
	"github.com/thywilljoshua/studyspace/internal/gateway"
	"github.com/thywilljoshua/studyspace/internal/logger"
	"github.com/thywilljoshua/studyspace/internal/notes"
	"github.com/thywilljoshua/studyspace/internal/pdf"
	"github.com/thywilljoshua/studyspace/internal/recent"
	"github.com/thywilljoshua/studyspace/internal/storage"
	"github.com/thywilljoshua/studyspace/internal/study"
)

type app struct {
	cfg   *config.Config
	log   *logger.ZapLogger
	store *storage.Store
}

func load(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Production: cfg.Log.Production})
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) openStore() error {
	b, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.Path, a.cfg.Storage.RedisAddr, a.cfg.Storage.RedisPrefix)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	a.store = storage.NewStore(b, a.log)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.log.Sync()
}

func (a *app) gateway() *gateway.Client {
	return gateway.New(gateway.Options{
		BaseURL:    a.cfg.Gateway.BaseURL,
		RatePerSec: a.cfg.Gateway.RatePerSec,
		Timeout:    a.cfg.Gateway.Timeout,
	})
}

func (a *app) session(notifier study.Notifier, exportDir string) *study.Session {
	return study.NewSession(study.Deps{
		Renderer:           study.NewPDFRenderer(pdf.NewLoader(&http.Client{Timeout: a.cfg.Gateway.Timeout})),
		Completer:          a.gateway(),
		Store:              a.store,
		Recent:             recent.NewTracker(a.store),
		Notifier:           notifier,
		Exporter:           notes.Exporter{Dir: exportDir},
		Logger:             a.log,
		Token:              a.cfg.Auth.Token,
		ExtractPages:       a.cfg.PDF.ExtractPages,
		ChatTemperature:    a.cfg.Chat.Temperature,
		SummaryTemperature: a.cfg.Chat.SummaryTemperature,
	})
}

// models builds the providers the server needs. Missing keys leave the
// matching provider unset.
func (a *app) models(ctx context.Context) (*ai.Gemini, ai.Completer, ai.Refiner, error) {
	var gem *ai.Gemini
	if a.cfg.Gemini.APIKey != "" {
		g, err := ai.NewGemini(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model)
		if err != nil {
			return nil, nil, nil, err
		}
		gem = g
	}
	if a.cfg.AI.Provider == "openai" {
		if a.cfg.OpenAI.APIKey == "" {
			return gem, nil, nil, nil
		}
		o, err := ai.NewOpenAI(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.Model)
		if err != nil {
			return nil, nil, nil, err
		}
		return gem, o, o, nil
	}
	if gem == nil {
		return nil, nil, nil, nil
	}
	return gem, gem, gem, nil
}
