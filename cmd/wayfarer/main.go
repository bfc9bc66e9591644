package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wayfarer/internal/api"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/config"
	"wayfarer/pkg/db"
	"wayfarer/pkg/db/maintenance"
	"wayfarer/pkg/exposure"
	"wayfarer/pkg/facts"
	"wayfarer/pkg/history"
	"wayfarer/pkg/llm"
	"wayfarer/pkg/llm/deepseek"
	"wayfarer/pkg/llm/failover"
	"wayfarer/pkg/llm/gemini"
	"wayfarer/pkg/llm/groq"
	"wayfarer/pkg/llm/nvidia"
	"wayfarer/pkg/llm/openai"
	"wayfarer/pkg/llm/perplexity"
	"wayfarer/pkg/logging"
	"wayfarer/pkg/model"
	"wayfarer/pkg/normalize"
	"wayfarer/pkg/orchestrator"
	"wayfarer/pkg/prompt"
	"wayfarer/pkg/request"
	"wayfarer/pkg/scorer"
	"wayfarer/pkg/source"
	"wayfarer/pkg/store"
	"wayfarer/pkg/tracker"
	"wayfarer/pkg/tts/edgetts"
	"wayfarer/pkg/version"
	"wayfarer/pkg/wikidata"
	"wayfarer/pkg/wikipedia"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.Save("configs/wayfarer.yaml", config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/wayfarer.yaml")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, "configs/wayfarer.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Wayfarer started", "version", version.Version)

	var durable *store.SQLiteStore
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		slog.Warn("durable store unavailable, degrading to in-memory-only operation", "error", err)
	} else {
		defer dbConn.Close()
		durable = store.NewSQLiteStore(dbConn)
		if err := maintenance.Run(ctx, dbConn); err != nil {
			slog.Error("startup maintenance failed", "error", err)
		}
	}

	tr := tracker.New()
	var cacher cache.DurableStore
	if durable != nil {
		cacher = durable
	}
	reqClient := request.New(cache.NewStoreBackedCache(cacher), tr)

	narrationProvider, err := buildLLMProvider(appCfg, reqClient, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM providers: %w", err)
	}

	ttsProvider := edgetts.NewProvider(tr)

	wdClient := wikidata.NewClient(reqClient, slog.With("component", "wikidata"))
	wpClient := wikipedia.NewClient(reqClient)

	fanout := source.NewFanout(
		source.NewOSM(appCfg.OSM, reqClient),
		source.NewGraph(wdClient),
		source.NewPlaces(appCfg.Places, reqClient),
	)

	geoCacheTTL := time.Duration(appCfg.Geo.GeoCacheTTL)
	normalizer := normalize.New(geoCacheTTL)

	pipeline := orchestrator.NewFactPipeline(
		facts.NewGraphExtractor(wdClient, geoCacheTTL),
		facts.NewEncyclopediaExtractor(wpClient, wdClient, narrationProvider, appCfg.Filler.SignalByLang, geoCacheTTL),
		appCfg.Filler.SensitiveByLang,
	)

	var historyStore store.HistoryStore
	var exposureStore store.ExposureStore
	var tasteStore api.TasteStore
	if durable != nil {
		historyStore = durable
		exposureStore = durable
		tasteStore = durable
	} else {
		tasteStore = noopTasteStore{}
	}

	orc := orchestrator.New(orchestrator.Config{
		Fanout:     fanout,
		Normalizer: normalizer,
		Scorer:     scorer.New(pipeline),
		History:    history.New(historyStore),
		Generator:  narrationProvider,
		TTS:        ttsProvider,
		Exposure:   exposure.New(exposureStore, slog.With("component", "exposure")),
		Bounds: prompt.Bounds{
			MinWords: appCfg.Story.MinWords,
			MaxWords: appCfg.Story.MaxWords,
		},
		BannedByLang:      appCfg.Filler.BannedByLang,
		RadiusStepsMeters: appCfg.Geo.RadiusStepsMeters,
		Logger:            slog.With("component", "orchestrator"),
	})

	storyH := api.NewStoryHandler(orc)
	tasteH := api.NewTasteHandler(tasteStore)
	statsH := api.NewStatsHandler(tr)

	srv := api.NewServer(appCfg.Server.Address, appCfg.Server.CORSAllowOrigins, storyH, tasteH, statsH)

	return serve(ctx, srv)
}

func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildLLMProvider constructs every configured provider client and wraps
// them in the failover chain, per the fallback order in
// appCfg.LLM.Fallback.
func buildLLMProvider(appCfg *config.Config, rc *request.Client, tr *tracker.Tracker) (*failover.Provider, error) {
	providers := make([]llm.Provider, 0, len(appCfg.LLM.Fallback))
	names := make([]string, 0, len(appCfg.LLM.Fallback))
	timeouts := make([]time.Duration, 0, len(appCfg.LLM.Fallback))

	for _, name := range appCfg.LLM.Fallback {
		cfg, ok := appCfg.LLM.Providers[name]
		if !ok {
			slog.Warn("llm provider configured in fallback chain but missing profile config, skipping", "provider", name)
			continue
		}

		p, err := newLLMClient(cfg, rc, tr)
		if err != nil {
			slog.Warn("failed to initialize llm provider, skipping", "provider", name, "error", err)
			continue
		}

		providers = append(providers, p)
		names = append(names, name)
		timeouts = append(timeouts, time.Duration(appCfg.Request.TimeoutMs)*time.Millisecond)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no llm providers could be initialized")
	}

	return failover.New(providers, names, timeouts, appCfg.LLM.LogPath, appCfg.LLM.LogEnabled, tr)
}

func newLLMClient(cfg config.ProviderConfig, rc *request.Client, tr *tracker.Tracker) (llm.Provider, error) {
	switch cfg.Type {
	case "gemini":
		return gemini.NewClient(cfg, rc, tr)
	case "groq":
		return groq.NewClient(cfg, rc)
	case "nvidia":
		return nvidia.NewClient(cfg, rc)
	case "deepseek":
		return deepseek.NewClient(cfg, rc)
	case "perplexity":
		return perplexity.NewClient(cfg, rc)
	case "openai", "":
		return openai.NewClient(cfg, "https://api.openai.com/v1", rc)
	default:
		return nil, fmt.Errorf("unknown llm provider type %q", cfg.Type)
	}
}

// noopTasteStore backs the taste endpoints when no durable store is
// available, keeping the service in-memory-only per spec.md §6.
type noopTasteStore struct{}

func (noopTasteStore) GetTasteProfile(ctx context.Context, id string) (*model.TasteProfile, bool, error) {
	return nil, false, nil
}

func (noopTasteStore) SaveTasteProfile(ctx context.Context, p model.TasteProfile) error {
	return nil
}
