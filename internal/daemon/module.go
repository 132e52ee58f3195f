// Package daemon composes the application with fx: providers for every
// component and lifecycle hooks that bring the pipeline up and down in order.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/asr"
	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/dashboard"
	"github.com/wilofice/enel/internal/history"
	"github.com/wilofice/enel/internal/ingest"
	"github.com/wilofice/enel/internal/jobs"
	"github.com/wilofice/enel/internal/llm"
	"github.com/wilofice/enel/internal/lock"
	"github.com/wilofice/enel/internal/logging"
	"github.com/wilofice/enel/internal/ops"
	"github.com/wilofice/enel/internal/outbox"
	"github.com/wilofice/enel/internal/store"
	"github.com/wilofice/enel/internal/transcribe"
	"github.com/wilofice/enel/internal/vector"
	"github.com/wilofice/enel/internal/wa"
)

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideStateMachine,
			provideAdapter,
			provideEmbedder,
			provideVectorStore,
			provideAssembler,
			provideBackend,
			provideGenerator,
			provideTranscriber,
			provideTranscribeWorker,
			provideQueue,
			provideEventHandler,
			provideRunner,
			provideAssistant,
			provideFollowUp,
			provideVectorIndex,
			provideProfiler,
			provideScheduler,
			provideSender,
			provideOps,
			provideDashboard,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath(), cfg.Account.Name)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring account lock", zap.String("account", cfg.Account.Name))
	l, err := lock.Acquire(cfg.AccountDir())
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

// provideStore depends on the lock so the account dir exists and is owned by
// this process before any database file is created.
func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", cfg.DBPath()))
	return db, nil
}

func provideStateMachine(b *bus.Bus) *wa.Machine {
	return wa.NewMachine(b)
}

func provideAdapter(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), cfg.SessionDBPath(), logger)
}

func provideEmbedder(cfg *config.Config) vector.Embedder {
	return vector.NewHashEmbedder(cfg.Vector.Dimensions)
}

func provideVectorStore(cfg *config.Config) vector.Store {
	return vector.NewChromaStore(cfg.Vector.ChromaURL, cfg.Vector.Collection)
}

func provideAssembler(db *store.DB, embedder vector.Embedder, vectors vector.Store, logger *zap.Logger) *history.Assembler {
	return history.NewAssembler(db, embedder, vectors, logger)
}

func provideBackend(cfg *config.Config) (llm.Backend, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	switch cfg.LLM.Engine {
	case "gemini":
		return llm.NewGeminiBackend(context.Background(), cfg.LLM.GeminiAPIKey, cfg.LLM.Model, timeout)
	case "local":
		return llm.NewOllamaBackend(cfg.LLM.LocalURL, cfg.LLM.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm engine %q", cfg.LLM.Engine)
	}
}

func provideGenerator(backend llm.Backend, logger *zap.Logger) *llm.Generator {
	return llm.NewGenerator(backend, logger)
}

func provideTranscriber(cfg *config.Config) (asr.Transcriber, error) {
	switch cfg.ASR.Engine {
	case "openai":
		return asr.NewOpenAITranscriber(cfg.ASR.OpenAIAPIKey, cfg.ASR.Language), nil
	case "local":
		timeout := time.Duration(cfg.ASR.TimeoutSeconds) * time.Second
		return asr.NewWhisperCLI(cfg.ASR.WhisperModel, cfg.ASR.Language, timeout), nil
	default:
		return nil, fmt.Errorf("unknown asr engine %q", cfg.ASR.Engine)
	}
}

func provideTranscribeWorker(db *store.DB, tr asr.Transcriber, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *transcribe.Worker {
	return transcribe.NewWorker(db, tr, b, cfg.ASR.Threshold, logger)
}

func provideQueue(db *store.DB, b *bus.Bus, asm *history.Assembler, gen *llm.Generator, cfg *config.Config, logger *zap.Logger) *ingest.Queue {
	return ingest.NewQueue(db, b, asm, gen, cfg.Ingest, cfg.LLM, logger,
		ingest.NewLogObserver(logger))
}

func provideEventHandler(adapter *wa.Adapter, machine *wa.Machine, queue *ingest.Queue, db *store.DB, logger *zap.Logger) *wa.EventHandler {
	return wa.NewEventHandler(adapter, machine, queue, db, logger)
}

func provideRunner(db *store.DB, b *bus.Bus, logger *zap.Logger) *jobs.Runner {
	return jobs.NewRunner(db, b, logger)
}

func provideAssistant(db *store.DB, asm *history.Assembler, gen *llm.Generator, cfg *config.Config, logger *zap.Logger) *jobs.Assistant {
	return jobs.NewAssistant(db, asm, gen, cfg.Ingest, cfg.LLM, cfg.Jobs, logger)
}

func provideFollowUp(db *store.DB, cfg *config.Config, logger *zap.Logger) *jobs.FollowUp {
	return jobs.NewFollowUp(db, cfg.Jobs, logger)
}

func provideVectorIndex(db *store.DB, embedder vector.Embedder, vectors vector.Store, cfg *config.Config, logger *zap.Logger) *jobs.VectorIndex {
	return jobs.NewVectorIndex(db, embedder, vectors, cfg.Jobs.VectorBatchSize, logger)
}

func provideProfiler(db *store.DB, gen *llm.Generator, cfg *config.Config, logger *zap.Logger) *jobs.Profiler {
	return jobs.NewProfiler(db, gen, cfg.Jobs.ProfileHistoryLimit, logger)
}

func provideScheduler(runner *jobs.Runner, logger *zap.Logger) (*jobs.Scheduler, error) {
	return jobs.NewScheduler(runner, logger)
}

func provideSender(db *store.DB, adapter *wa.Adapter, b *bus.Bus, runner *jobs.Runner, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, b, runner, cfg.Outbox, logger)
}

func provideOps(db *store.DB, worker *transcribe.Worker, cfg *config.Config, logger *zap.Logger) *ops.Service {
	return ops.NewService(db, worker, cfg.Outbox, logger)
}

func provideDashboard(svc *ops.Service, cfg *config.Config, logger *zap.Logger) *dashboard.Server {
	return dashboard.NewServer(svc, cfg.Dashboard.ListenAddr, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	cfg *config.Config,
	lk *lock.Lock,
	adapter *wa.Adapter,
	machine *wa.Machine,
	queue *ingest.Queue,
	worker *transcribe.Worker,
	sender *outbox.Sender,
	scheduler *jobs.Scheduler,
	assistant *jobs.Assistant,
	followUp *jobs.FollowUp,
	vectorIndex *jobs.VectorIndex,
	profiler *jobs.Profiler,
	server *dashboard.Server,
	_ *wa.EventHandler,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			queue.Start(context.Background())
			worker.Watch()
			sender.Start(context.Background())

			schedule := []struct {
				name string
				cron string
				fn   func(ctx context.Context) error
			}{
				{jobs.AssistantJobName, cfg.Jobs.AssistantCron, assistant.Run},
				{jobs.FollowUpJobName, cfg.Jobs.FollowUpCron, followUp.Run},
				{jobs.VectorJobName, cfg.Jobs.VectorCron, vectorIndex.Run},
				{jobs.ProfileJobName, cfg.Jobs.ProfileCron, profiler.Run},
			}
			for _, job := range schedule {
				if err := scheduler.Add(job.name, job.cron, job.fn); err != nil {
					return fmt.Errorf("schedule %s: %w", job.name, err)
				}
			}
			scheduler.Start()

			if err := server.Start(); err != nil {
				return fmt.Errorf("start dashboard: %w", err)
			}

			if adapter.IsLoggedIn() {
				_ = machine.Transition(wa.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
					}
				}()
			} else {
				logger.Info("no credentials found, pairing required")
				_ = machine.Transition(wa.AuthRequired)
				go func() {
					if err := adapter.LoginWithQR(context.Background()); err != nil {
						logger.Error("pairing failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler shutdown error", zap.Error(err))
			}
			sender.Stop()
			worker.Close()
			queue.Stop()
			adapter.Disconnect()
			if err := server.Stop(ctx); err != nil {
				logger.Warn("dashboard shutdown error", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing account lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
