package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitswalk/molior/src/moliord/apt"
	"github.com/bitswalk/molior/src/moliord/buildlog"
	"github.com/bitswalk/molior/src/moliord/buildnode"
	"github.com/bitswalk/molior/src/moliord/clock"
	"github.com/bitswalk/molior/src/moliord/cron"
	"github.com/bitswalk/molior/src/moliord/db"
	"github.com/bitswalk/molior/src/moliord/db/migrations"
	"github.com/bitswalk/molior/src/moliord/engine"
	"github.com/bitswalk/molior/src/moliord/gitexec"
	"github.com/bitswalk/molior/src/moliord/gitrepo"
	"github.com/bitswalk/molior/src/moliord/notify"
	"github.com/bitswalk/molior/src/moliord/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// Server owns every long-running collaborator the build pipeline engine is
// built from: the database, storage backend, task queue, Worker, and
// scheduler pass trigger. It exposes no HTTP surface; admin operations are
// out of scope for the core (spec §1).
type Server struct {
	database *db.Database
	storage  storage.Backend
	queue    *engine.TaskQueue
	worker   *engine.Worker
	trigger  *cron.Trigger
	done     chan struct{}
}

// NewServer wires every collaborator together and runs the startup
// reconciler, but does not yet start the Worker loop.
func NewServer(database *db.Database, storageBackend storage.Backend) (*Server, error) {
	registry := prometheus.NewRegistry()
	engine.RegisterMetrics(registry)

	buildlog.SetLogger(log)
	buildnode.SetLogger(log)
	gitexec.SetLogger(log)
	gitrepo.SetLogger(log)
	notify.SetLogger(log)
	engine.SetLogger(log)
	cron.SetLogger(log)
	migrations.SetLogger(log)

	builds := db.NewBuildRepository(database)
	repos := db.NewSourceRepositoryRepository(database)
	chroots := db.NewChrootRepository(database)
	buildTasks := db.NewBuildTaskRepository(database)
	projectVersions := db.NewProjectVersionRepository(database)
	buildNodes := db.NewBuildNodeRepository(database)
	maintainers := db.NewMaintainerRepository(database)
	repoProjectVersions := db.NewSourceRepoProjectVersionRepository(database)

	tz, err := time.LoadLocation(viper.GetString("engine.timezone"))
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "timezone", viper.GetString("engine.timezone"))
		tz = time.UTC
	}
	sysClock := clock.NewSystem(tz)

	logWriter := buildlog.New(viper.GetString("buildlog.path"))

	notifier := notify.New()
	notifier.AddSink(notify.NewLogSink())
	if url := viper.GetString("notify.webhook_url"); url != "" {
		sink := notify.NewWebhookSink(url)
		notifier.AddHook(sink)
	}

	gitClient := gitexec.New(viper.GetBool("git.insecure_tls"))
	repoMgr := gitrepo.New(repos, builds, repoProjectVersions, gitClient, storageBackend, logWriter)

	sm := engine.NewBuildStateMachine(builds, projectVersions, notifier, sysClock, logWriter)
	governor := engine.NewChrootGovernor(viper.GetInt("engine.max_parallel_chroots"))
	backend := buildnode.NewStubBackend(buildNodes)
	scheduler := engine.NewSchedulerPass(builds, projectVersions, backend, sm)
	publishQueue := apt.New()

	reconciler := engine.NewReconciler(builds, buildTasks, repos, sm)
	if err := reconciler.Run(context.Background()); err != nil {
		return nil, fmt.Errorf("startup reconciliation failed: %w", err)
	}

	queue := engine.NewTaskQueue()
	worker := engine.NewWorker(queue, builds, repos, chroots, buildTasks, maintainers, repoMgr, sm, governor, scheduler, backend, publishQueue, storageBackend)

	var trigger *cron.Trigger
	if interval := viper.GetDuration("engine.schedule_interval"); interval > 0 {
		trigger, err = cron.New(queue, interval)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler pass trigger: %w", err)
		}
	}

	return &Server{
		database: database,
		storage:  storageBackend,
		queue:    queue,
		worker:   worker,
		trigger:  trigger,
		done:     make(chan struct{}),
	}, nil
}

// Run starts the Worker loop and, if configured, the periodic scheduler
// pass trigger, then blocks until an interrupt signal is received.
func (s *Server) Run() error {
	if s.storage != nil {
		log.Info("storage enabled", "type", s.storage.Type(), "location", s.storage.Location())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		s.worker.Run(ctx)
		close(s.done)
	}()

	if s.trigger != nil {
		s.trigger.Start()
	}

	log.Info("moliord worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received signal, shutting down", "signal", sig)

	return nil
}

// Shutdown performs a graceful shutdown: the scheduler trigger is stopped,
// the Worker is told to finish its current iteration and exit via the nil
// sentinel, and the database connection is closed.
func (s *Server) Shutdown() error {
	if s.trigger != nil {
		if err := s.trigger.Stop(); err != nil {
			log.Error("scheduler pass trigger shutdown error", "error", err)
		}
	}

	s.queue.Enqueue(nil)
	select {
	case <-s.done:
	case <-time.After(30 * time.Second):
		log.Warn("worker did not stop within shutdown timeout")
	}

	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error("database shutdown error", "error", err)
			return err
		}
	}

	return nil
}

// runServer is called by the root command to start the server.
func runServer() error {
	log.Info("moliord starting",
		"version", VersionInfo.Version,
		"build_date", VersionInfo.BuildDate,
		"log_output", log.Output(),
	)

	migrations.SetLogger(log)

	database, err := db.New(db.Config{Path: viper.GetString("database.path")})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	storageCfg := storage.Config{
		Type: viper.GetString("storage.type"),
		Local: storage.LocalConfig{
			BasePath: viper.GetString("storage.local.path"),
		},
		S3: storage.S3Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		},
	}

	storageBackend, err := storage.New(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	server, err := NewServer(database, storageBackend)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	err = server.Run()

	if shutdownErr := server.Shutdown(); shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		if err == nil {
			err = shutdownErr
		}
	}

	return err
}
