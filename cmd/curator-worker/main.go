// Command curator-worker runs the durable Curator Workflow: it owns the
// Postgres-backed journal and the full phase 1-9 pipeline (spec §4.2).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mntogether/curator/internal/config"
	"github.com/mntogether/curator/internal/database"
	"github.com/mntogether/curator/internal/logging"
	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/alerting"
	"github.com/mntogether/curator/pkg/curator/briefs"
	"github.com/mntogether/curator/pkg/curator/document"
	"github.com/mntogether/curator/pkg/curator/orchestrator"
	"github.com/mntogether/curator/pkg/curator/reasoner"
	"github.com/mntogether/curator/pkg/curator/safety"
	"github.com/mntogether/curator/pkg/curator/stager"
	"github.com/mntogether/curator/pkg/curator/workflow"
	"github.com/mntogether/curator/pkg/curator/writer"
	"github.com/mntogether/curator/pkg/datastorage/repository"
	"github.com/mntogether/curator/pkg/extraction"
	"github.com/mntogether/curator/pkg/scheduler"
	"github.com/redis/go-redis/v9"
)

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
	journal := workflow.NewPostgresJournal(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	cache := briefs.NewRedisCache(rdb)

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	primary := llm.NewAnthropicProvider(anthropicKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var scheduledCurator scheduler.Curator = orch
	if cfg.Alerting.SlackToken != "" {
		scheduledCurator = alertingCurator{orch: orch, notifier: alerting.New(cfg.Alerting.SlackToken, cfg.Alerting.SlackChannel, log)}
	}

	sched := scheduler.New(repo, scheduledCurator, scheduler.Config{
		Interval:           cfg.Scheduler.Interval,
		StalenessThreshold: cfg.Scheduler.StalenessThreshold,
	}, log)
	go sched.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+cfg.Server.MetricsPort, mux); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server exited")
		}
	}()

	log.Info("curator worker ready")
	<-ctx.Done()
	log.Info("curator worker shutting down")
}

// alertingCurator posts a Slack alert on top of a failed curation run, per
// the spec's operator-visibility requirement for workflow failures.
type alertingCurator struct {
	orch     *orchestrator.Orchestrator
	notifier *alerting.Notifier
}

func (a alertingCurator) CurateOrg(ctx context.Context, organizationID, key string) (orchestrator.Result, error) {
	result, err := a.orch.CurateOrg(ctx, organizationID, key)
	if err != nil {
		a.notifier.WorkflowFailed(ctx, "curate_org", key, err)
		return result, err
	}
	if result.Status == orchestrator.StatusFailedSafety {
		a.notifier.FailedSafety(ctx, organizationID, result.ActionsCount)
	}
	return result, err
}

func configPath() string {
	if p := os.Getenv("CURATOR_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
