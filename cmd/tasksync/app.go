package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jaekwang-park/tasksync/internal/cognito"
	"github.com/jaekwang-park/tasksync/internal/config"
	"github.com/jaekwang-park/tasksync/internal/network"
	"github.com/jaekwang-park/tasksync/internal/remote"
	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/service"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

// app is the fully wired engine shared by every command.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *repository.DB
	remote  remote.TaskStore
	monitor *network.Monitor
	orch    *syncer.Orchestrator
	tasks   *service.TaskService
	auth    *service.AuthService
	closers []func() error
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.Load()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger writes JSON logs to w, or to a rotated file when LOG_FILE is set.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, func() error) {
	closeFn := func() error { return nil }
	if cfg.Log.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: 3,
			MaxAge:     28,
		}
		w = rotated
		closeFn = rotated.Close
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.ParseLogLevel(),
	})), closeFn
}

// openRemote builds the configured backend without touching the network,
// so local-only commands keep working offline.
func openRemote(ctx context.Context, cfg config.Config) (remote.TaskStore, func() error, error) {
	switch cfg.RemoteBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DB.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		store := remote.NewPostgres(db)
		return store, store.Close, nil
	case config.BackendDynamoDB:
		store, err := remote.OpenDynamoDB(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint, cfg.DynamoDB.Table, cfg.DynamoDB.OwnerIndex)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return remote.NewMemory(), func() error { return nil }, nil
	}
}

func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, closeLog := newLogger(cfg, logOut)
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	db, err := repository.Open(cfg.LocalDBPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	if err := db.Initialize(ctx); err != nil {
		a.Close()
		return nil, err
	}

	store, closeRemote, err := openRemote(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.remote = store
	a.closers = append(a.closers, closeRemote)

	var cognitoClient cognito.Client = cognito.Unconfigured{}
	if cfg.Cognito.AppClientID != "" {
		c, err := cognito.NewAWSClient(ctx, cfg.Cognito.Region, cfg.Cognito.AppClientID, cfg.Cognito.AppClientSecret)
		if err != nil {
			a.Close()
			return nil, err
		}
		cognitoClient = c
	}

	taskRepo := repository.NewSQLiteTasks(db)
	queue := repository.NewSQLiteQueue(db)
	kv := repository.NewSQLiteKV(db)

	prober := network.NewHTTPProber(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	a.monitor = network.NewMonitor(prober, cfg.Network.PollInterval, logger)

	a.orch = syncer.New(syncer.Deps{
		Tasks:       taskRepo,
		Queue:       queue,
		Remote:      store,
		Network:     a.monitor,
		Checkpoints: kv,
	}, syncer.Config{
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryBase:  cfg.Sync.RetryBase,
	}, logger)

	a.tasks = service.NewTaskService(taskRepo, queue, a.orch, a.orch.Replayer(), logger)
	a.auth = service.NewAuthService(cognitoClient, kv, taskRepo, logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	if a.orch != nil {
		a.orch.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// owner returns the explicit owner, or the signed-in account's.
func (a *app) owner(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	sess, err := a.auth.CurrentSession(ctx)
	if errors.Is(err, service.ErrNoSession) {
		return "", errors.New("not signed in: run 'tasksync login' or pass --owner")
	}
	if err != nil {
		return "", err
	}
	return sess.OwnerID, nil
}
