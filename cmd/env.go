package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/leadvault/chatimport-cli/internal/cache"
	"github.com/leadvault/chatimport-cli/internal/classify"
	"github.com/leadvault/chatimport-cli/internal/extract"
	"github.com/leadvault/chatimport-cli/internal/importer"
	"github.com/leadvault/chatimport-cli/internal/resilience"
	"github.com/leadvault/chatimport-cli/internal/store"
	"github.com/leadvault/chatimport-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "chatimport.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initDetector builds the status detector. The LLM path is wired only when
// an API key is configured; otherwise every call uses the heuristic.
func initDetector() *classify.Detector {
	heuristic := classify.NewHeuristicClassifier()

	var llm classify.Classifier
	if cfg.Anthropic.Key != "" {
		llmCfg := classify.DefaultLLMConfig(cfg.Anthropic.Model)
		if cfg.Classifier.MaxTokens > 0 {
			llmCfg.MaxTokens = int64(cfg.Classifier.MaxTokens)
		}
		if cfg.Classifier.Temperature > 0 {
			llmCfg.Temperature = cfg.Classifier.Temperature
		}
		if cfg.Classifier.MaxPromptLength > 0 {
			llmCfg.MaxPromptLen = cfg.Classifier.MaxPromptLength
		}
		if cfg.Classifier.MaxMessages > 0 {
			llmCfg.MaxMessages = cfg.Classifier.MaxMessages
		}
		if cfg.Classifier.MaxMessageLength > 0 {
			llmCfg.MaxMessageLen = cfg.Classifier.MaxMessageLength
		}

		rps := cfg.Classifier.RequestsPerSec
		if rps <= 0 {
			rps = 2.0
		}
		limiter := rate.NewLimiter(rate.Limit(rps), 1)
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})

		llm = classify.NewLLMClassifier(
			anthropic.NewClient(cfg.Anthropic.Key),
			llmCfg,
			limiter,
			breaker,
		)
	}

	return classify.NewDetector(heuristic, llm, cfg.Import.UseLLM, cfg.Import.FallbackOnError)
}

// initCache builds the shared TTL cache and starts its background sweeper,
// which evicts expired entries until ctx is cancelled.
func initCache(ctx context.Context) *cache.Cache {
	ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	sweep := time.Duration(cfg.Cache.SweepSecs) * time.Second
	if sweep <= 0 {
		sweep = time.Minute
	}

	c := cache.New(ttl)
	go c.RunSweeper(ctx, sweep)
	return c
}

// initImporter wires the full import pipeline against an extractor.
func initImporter(st store.Store, ex extract.Extractor, c *cache.Cache) *importer.Importer {
	return importer.New(
		st,
		ex,
		initDetector(),
		importer.NewDuplicateDetector(st, c),
		importer.NewSettingsLoader(st, c),
	)
}
