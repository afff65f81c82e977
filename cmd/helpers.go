package cmd

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/agent"
	"github.com/ziadkadry99/healthagent/internal/assistant"
	"github.com/ziadkadry99/healthagent/internal/audit"
	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/config"
	"github.com/ziadkadry99/healthagent/internal/db"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/llm"
	"github.com/ziadkadry99/healthagent/internal/logging"
	"github.com/ziadkadry99/healthagent/internal/metrics"
	"github.com/ziadkadry99/healthagent/internal/session"
)

// app holds the shared dependencies every command builds on.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	db      *db.DB
	metrics *metrics.Metrics
	store   *health.Store
	router  *changelog.Router
	audit   *audit.Store
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `healthagent init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openApp loads config, builds the logger and opens the database.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Pretty: cfg.Log.Pretty})

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	m := metrics.New()
	store := health.NewStore(database)
	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		metrics: m,
		store:   store,
		router:  changelog.NewRouter(store, logging.Component(logger, "changelog"), m),
		audit:   audit.NewStore(database),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// newProvider creates the configured LLM provider, rate limited when
// rate_limit_rpm is set.
func (a *app) newProvider() (llm.StreamingProvider, error) {
	provider, err := llm.NewProvider(string(a.cfg.Provider), a.cfg.Model, a.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if a.cfg.RateLimitRPM > 0 {
		return llm.NewRateLimitedProvider(provider, a.cfg.RateLimitRPM), nil
	}
	return provider, nil
}

// newAssistant wires the provider, transport, session controller and
// recommendation advisor into an assistant service.
func (a *app) newAssistant() (*assistant.Service, error) {
	provider, err := a.newProvider()
	if err != nil {
		return nil, err
	}

	opts := agent.Options{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	transport := agent.NewLLMTransport(provider, opts, logging.Component(a.logger, "transport"))
	sessions := session.NewController(transport, session.Config{
		FailureMessage: a.cfg.Assistant.FailureMessage,
		Buffer:         a.cfg.Assistant.StreamBuffer,
	}, logging.Component(a.logger, "session"), a.metrics)

	return assistant.NewService(assistant.Deps{
		Store:    a.store,
		Router:   a.router,
		Audit:    a.audit,
		Sessions: sessions,
		Advisor:  agent.NewSuggester(provider, opts, logging.Component(a.logger, "suggest")),
		Window:   a.cfg.HistoryLimit,
		Logger:   logging.Component(a.logger, "assistant"),
		Metrics:  a.metrics,
	}), nil
}
