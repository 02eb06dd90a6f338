// Command curator-service exposes the Curator Workflow's produced
// interfaces (spec §6.2) over HTTP: curate_org, refine_proposal, and
// workflow status lookups.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mntogether/curator/internal/config"
	"github.com/mntogether/curator/internal/database"
	"github.com/mntogether/curator/internal/logging"
	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/briefs"
	"github.com/mntogether/curator/pkg/curator/document"
	"github.com/mntogether/curator/pkg/curator/orchestrator"
	"github.com/mntogether/curator/pkg/curator/reasoner"
	"github.com/mntogether/curator/pkg/curator/refinement"
	"github.com/mntogether/curator/pkg/curator/safety"
	"github.com/mntogether/curator/pkg/curator/stager"
	"github.com/mntogether/curator/pkg/curator/workflow"
	"github.com/mntogether/curator/pkg/curator/writer"
	"github.com/mntogether/curator/pkg/datastorage/repository"
	"github.com/mntogether/curator/pkg/extraction"
	"github.com/mntogether/curator/pkg/httpapi"
)

const shutdownGracePeriod = 10 * time.Second

func main() {
	logrusLogger := logrus.New()

	cfg, err := config.Load(configPath())
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to load configuration")
	}

	zapLogger, err := logging.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to build logger")
	}
	defer zapLogger.Sync() //nolint:errcheck
	log := logging.NewLogr(zapLogger)

	dbCfg := database.DefaultConfig()
	dbCfg.LoadFromEnv()
	db, err := database.Connect(dbCfg, logrusLogger)
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	repo := repository.New(db)
	refinementStore := repository.NewRefinementStore(repo)
	journal := workflow.NewPostgresJournal(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	cache := briefs.NewRedisCache(rdb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	primary := llm.NewAnthropicProvider(anthropicKey)
	var fallback llm.Provider
	if region := os.Getenv("AWS_REGION"); region != "" {
		fallback, err = llm.NewBedrockProvider(ctx, region)
		if err != nil {
			log.Error(err, "failed to build bedrock fallback provider, running primary-only")
		}
	}
	client := llm.New(primary, fallback)

	reader := extraction.NewHTTPReader(ctx, extraction.Config{
		BaseURL:      os.Getenv("READER_BASE_URL"),
		TokenURL:     os.Getenv("READER_TOKEN_URL"),
		ClientID:     os.Getenv("READER_CLIENT_ID"),
		ClientSecret: os.Getenv("READER_CLIENT_SECRET"),
	})

	briefCfg := briefs.DefaultConfig()
	briefCfg.Concurrency = cfg.Brief.Concurrency
	briefCfg.MaxContentBytes = cfg.Brief.MaxContentBytes
	briefCfg.MinContentBytes = cfg.Brief.MinContentBytes
	briefCfg.CacheTTLDays = int(cfg.Brief.CacheTTL.Hours() / 24)
	briefCfg.Model = llm.ModelID(cfg.Brief.Model)
	extractor := briefs.New(client, cache, briefCfg, log)

	reasonerSvc := reasoner.New(client, llm.ModelID(cfg.Reasoner.Model), log)

	writerCfg := writer.DefaultConfig()
	writerCfg.Concurrency = cfg.Writer.Concurrency
	writerCfg.PrimaryModel = llm.ModelID(cfg.Writer.PrimaryModel)
	writerCfg.FallbackModel = llm.ModelID(cfg.Writer.FallbackModel)
	writerSvc := writer.New(client, client, writerCfg, log)

	safetyCfg := safety.DefaultConfig()
	safetyCfg.MaxIterations = cfg.Safety.MaxIterations
	safetyCfg.Model = llm.ModelID(cfg.Safety.Model)
	safetySvc := safety.New(client, safetyCfg, log)

	stagerSvc := stager.New(repo, log)

	documentCfg := document.DefaultConfig()
	documentCfg.BudgetChars = cfg.Document.BudgetChars

	orch := orchestrator.New(
		journal, workflow.NoopInvoker{}, reader, extractor, reasonerSvc, writerSvc, safetySvc, stagerSvc, repo,
		orchestrator.Config{DocumentBudget: documentCfg},
		log,
	)

	refiner := refinement.New(refinementStore, client, llm.ModelID(cfg.Refinement.Model), log)

	srv := httpapi.New(orch, refiner, httpapi.JournalStatusReader{Journal: journal}, log)

	metricsServer := &http.Server{Addr: ":" + cfg.Server.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server exited")
		}
	}()

	apiServer := &http.Server{Addr: ":" + cfg.Server.Port, Handler: srv.Router(cfg.Server.AllowedOrigins)}
	go func() {
		log.Info("curator service ready", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "http server exited")
		}
	}()

	<-ctx.Done()
	log.Info("curator service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

func configPath() string {
	if p := os.Getenv("CURATOR_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
