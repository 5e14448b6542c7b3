package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"git.home.luguber.info/inful/docshost/internal/build"
	"git.home.luguber.info/inful/docshost/internal/config"
	"git.home.luguber.info/inful/docshost/internal/db"
	"git.home.luguber.info/inful/docshost/internal/envcache"
	"git.home.luguber.info/inful/docshost/internal/fetch"
	"git.home.luguber.info/inful/docshost/internal/janitor"
	"git.home.luguber.info/inful/docshost/internal/lease"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/metrics"
	"git.home.luguber.info/inful/docshost/internal/perm"
	"git.home.luguber.info/inful/docshost/internal/pipeline"
	"git.home.luguber.info/inful/docshost/internal/publish"
	"git.home.luguber.info/inful/docshost/internal/queue"
	"git.home.luguber.info/inful/docshost/internal/registry"
	"git.home.luguber.info/inful/docshost/internal/retry"
	"git.home.luguber.info/inful/docshost/internal/servecache"
	"git.home.luguber.info/inful/docshost/internal/server/httpserver"
	"git.home.luguber.info/inful/docshost/internal/storage"
	"git.home.luguber.info/inful/docshost/internal/tenant"
	"git.home.luguber.info/inful/docshost/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Run the hosting service: docs, webhook, and admin servers plus the build workers"`

	Build struct {
		Owner   string `arg:"" help:"Project owner"`
		Project string `arg:"" help:"Project name"`
	} `cmd:"" help:"Run a single build for one project and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a default configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Debug("docshost starting",
		slog.String("version", version.Version), slog.String("commit", version.GitCommit))

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe(CLI.Config)
	case "build <owner> <project>":
		err = runBuild(CLI.Config, CLI.Build.Owner, CLI.Build.Project)
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}
	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

// services holds everything runServe and runBuild wire up from a config.
type services struct {
	conn     *sql.DB
	registry *registry.Store
	builds   *build.Store
	rdb      *redis.Client
	leases   *lease.Manager
	engine   *perm.Engine
	cache    *servecache.Cache
	runner   *pipeline.Runner
	recorder metrics.Recorder
	promReg  *prom.Registry
}

func wire(cfg *config.Config) (*services, error) {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	reg, err := registry.NewStore(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	builds, err := build.NewStore(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	grants, err := perm.NewStore(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	store, err := storage.NewFSStore(cfg.Storage.RootDir)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	promReg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(promReg)

	cache := servecache.New(store,
		servecache.WithTTL(cfg.Serve.CacheTTL),
		servecache.WithCounters(rec.IncServeCacheHit, rec.IncServeCacheMiss))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	leases := lease.New(rdb, cfg.Build.LeaseTTL)

	fetcher := fetch.NewRetryingFetcher(
		fetch.NewFallbackFetcher(
			fetch.NewTarballFetcher(cfg.Provider.APIURL, reg),
			fetch.NewCloneFetcher(reg)),
		retry.DefaultPolicy())

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Builds:         builds,
		Projects:       reg,
		Fetcher:        fetcher,
		EnvCache:       envcache.New(store, cfg.Storage.EnvArchiveName),
		Publisher:      publish.New(store, cache),
		Leases:         leases,
		Recorder:       rec,
		WorkRoot:       cfg.Build.WorkDir,
		CommandTimeout: cfg.Build.CommandTimeout,
	})

	return &services{
		conn:     conn,
		registry: reg,
		builds:   builds,
		rdb:      rdb,
		leases:   leases,
		engine:   perm.NewEngine(grants, reg).WithDenialCounter(rec),
		cache:    cache,
		runner:   runner,
		recorder: rec,
		promReg:  promReg,
	}, nil
}

func (s *services) close() {
	_ = s.rdb.Close()
	_ = s.conn.Close()
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	svc, err := wire(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var q queue.Queue
	if cfg.Queue.NATSURL != "" {
		q, err = queue.NewNATSQueue(ctx, queue.NATSConfig{
			URL:     cfg.Queue.NATSURL,
			Stream:  cfg.Queue.Stream,
			Subject: cfg.Queue.Subject,
			MaxSize: int64(cfg.Queue.MaxSize),
		})
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
	} else {
		slog.Info("No NATS URL configured, using in-process queue")
		q = queue.NewMemoryQueue(cfg.Queue.MaxSize)
	}
	defer func() { _ = q.Close() }()

	pool := pipeline.NewPool(svc.runner, q, cfg.Build.Workers)
	pool.Start(ctx)

	jan, err := janitor.New(cfg.Build.WorkDir, time.Hour, 2*cfg.Build.LeaseTTL)
	if err != nil {
		return err
	}
	jan.Start()
	defer func() { _ = jan.Stop() }()

	srv := httpserver.New(&cfg.HTTP, httpserver.Deps{
		Resolver:     tenant.NewResolver(cfg.Serve.BaseDomain, svc.registry),
		Permissions:  svc.engine,
		Cache:        svc.cache,
		Builds:       svc.builds,
		Registry:     svc.registry,
		Orchestrator: pipeline.NewOrchestrator(svc.builds, svc.registry, svc.leases, q, svc.recorder),
		Metrics:      svc.promReg,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http: %w", err))
	}
	if err := q.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close queue: %w", err))
	}
	if err := pool.StopAndWait(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	return errors.Join(errs...)
}

// runBuild triggers one build and runs it in-process. Useful for imports
// and for debugging a project's build without the full service.
func runBuild(configPath, owner, project string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	svc, err := wire(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := queue.NewMemoryQueue(1)
	defer func() { _ = q.Close() }()

	orch := pipeline.NewOrchestrator(svc.builds, svc.registry, svc.leases, q, svc.recorder)
	b, err := orch.Trigger(ctx, owner, project)
	if err != nil {
		return err
	}

	job := <-q.Jobs()
	if err := svc.runner.Run(ctx, job); err != nil {
		return err
	}

	done, err := svc.builds.Get(ctx, b.ID)
	if err != nil {
		return err
	}
	final := done.Unwrap()
	fmt.Print(final.Output)
	if final.Status != build.StatusSuccess {
		return fmt.Errorf("build %s/%s #%d finished %s", owner, project, final.Seq, final.Status)
	}
	slog.Info("Build finished",
		logfields.Owner(owner), logfields.Project(project), logfields.BuildSeq(final.Seq))
	return nil
}

func runInit(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	data, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	slog.Info("Wrote configuration", logfields.Path(configPath))
	return nil
}
