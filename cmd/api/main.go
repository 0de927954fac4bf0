package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mediscan-iq/mediscan-iq/cmd/mainconfig"
	"github.com/mediscan-iq/mediscan-iq/internal/analyze"
	"github.com/mediscan-iq/mediscan-iq/internal/api/router"
	appconfig "github.com/mediscan-iq/mediscan-iq/internal/config"
	"github.com/mediscan-iq/mediscan-iq/internal/http/handlers"
	"github.com/mediscan-iq/mediscan-iq/internal/llm"
	"github.com/mediscan-iq/mediscan-iq/internal/nli"
	"github.com/mediscan-iq/mediscan-iq/internal/observability/metrics"
	"github.com/mediscan-iq/mediscan-iq/internal/phi"
	"github.com/mediscan-iq/mediscan-iq/internal/report"
	"github.com/mediscan-iq/mediscan-iq/internal/risk"
	"github.com/mediscan-iq/mediscan-iq/internal/summarize"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

func main() {
	// Running without a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting mediscan-iq API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	library := phi.NewLibrary(phi.LibraryOptions{MinIdentifierDigits: cfg.MinIdentifierDigits})
	detector := phi.NewDetector(library, logger.Component("phi_detector"))
	anonymizer := phi.NewAnonymizer(detector, phi.AnonymizerConfig{
		Strategy:         phi.Strategy(cfg.AnonymizeStrategy),
		MaskChar:         []rune(cfg.MaskChar)[0],
		MaskFixedWidth:   cfg.MaskFixedWidth,
		HashSalt:         cfg.HashSalt,
		KeepDates:        cfg.KeepDates,
		ReduceWhitespace: cfg.ReduceWhitespace,
	}, logger.Component("phi_anonymizer"))

	lexicon := risk.DefaultLexicon()
	if cfg.RiskLexiconPath != "" {
		loaded, err := risk.LoadLexicon(cfg.RiskLexiconPath)
		if err != nil {
			logger.Error("failed to load risk lexicon", "path", cfg.RiskLexiconPath, "error", err)
			os.Exit(1)
		}
		lexicon = loaded
	}
	scanner, err := risk.NewHeuristicScanner(lexicon, logger.Component("risk_scanner"))
	if err != nil {
		logger.Error("failed to build heuristic scanner", "error", err)
		os.Exit(1)
	}
	fusion, err := risk.NewFusionEngine(risk.Thresholds{
		Moderate: cfg.RiskThresholdModerate,
		High:     cfg.RiskThresholdHigh,
	}, cfg.RiskModelWeight, logger.Component("risk_fusion"))
	if err != nil {
		logger.Error("failed to build fusion engine", "error", err)
		os.Exit(1)
	}

	llmClient := buildLLMClient(ctx, cfg, logger)
	if llmClient == nil {
		logger.Warn("no model provider configured, running in heuristic-only mode")
	}

	var scorer nli.Scorer
	if llmClient != nil {
		llmScorer := nli.NewLLMScorer(llmClient, cfg.ModelTimeout, logger.Component("nli_scorer"))
		if cfg.RedisAddr != "" {
			cacheClient := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})
			scorer = nli.NewScoreCache(llmScorer, cacheClient, cfg.ScoreCacheTTL, logger.Component("nli_cache"))
			logger.Info("score cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ScoreCacheTTL.String())
		} else {
			scorer = llmScorer
		}
	}

	summarizer := summarize.New(llmClient, summarize.Config{
		PromptStyle:     cfg.SummarizerPromptStyle,
		MaxOutputTokens: int32(cfg.SummarizerMaxOutputToken),
	}, logger.Component("summarizer"))

	pipelineMetrics := metrics.NewPipelineMetrics(nil)
	validator := report.NewValidator(cfg.MaxChars, cfg.AcceptedReportTypes)

	service := analyze.NewService(
		validator,
		anonymizer,
		scanner,
		scorer,
		fusion,
		summarizer,
		pipelineMetrics,
		logger.Component("analyze"),
	)

	r := router.New(&router.Config{
		Logger:             logger,
		ReportsHandler:     handlers.NewReportsHandler(service, cfg.MaxChars, logger.Component("http")),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildLLMClient assembles the model stack: Bedrock primary, Gemini
// fallback, either alone when only one is configured, nil when neither is.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) llm.Client {
	var bedrock llm.Client
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config, skipping Bedrock", "error", err)
		} else {
			client, err := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
			if err != nil {
				logger.Error("failed to create Bedrock client", "error", err)
			} else {
				bedrock = client
			}
		}
	}

	var gemini llm.Client
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create Gemini client", "error", err)
		} else {
			gemini = client
		}
	}

	switch {
	case bedrock != nil && gemini != nil:
		return llm.NewFallbackClient(bedrock, gemini, logger.Component("llm"))
	case bedrock != nil:
		return bedrock
	case gemini != nil:
		return gemini
	default:
		return nil
	}
}
