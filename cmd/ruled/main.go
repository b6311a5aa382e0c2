// cellrules/cmd/ruled/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cellrules/engine/pkg/config"
	"github.com/cellrules/engine/pkg/lockmanager"
	"github.com/cellrules/engine/pkg/logging"
	"github.com/cellrules/engine/pkg/ruleengine"
	"github.com/cellrules/engine/pkg/store"
)

// ruledDependencies are the engine's external collaborators, assembled
// once at startup and handed to the Manager.
type ruledDependencies struct {
	store     *store.RedisStore
	locks     *lockmanager.Manager
	runner    *ruleengine.ActionRunner
	debug     *ruleengine.DebugServer
	debugAddr string
	manager   *ruleengine.Manager
}

// StoreFactory builds the RedisStore collaborator. Exists so tests can
// substitute a fake without a real Redis instance.
type StoreFactory interface {
	NewStore(addr, password string, db int, topicPrefix string) (*store.RedisStore, error)
}

type realStoreFactory struct{}

func (realStoreFactory) NewStore(addr, password string, db int, topicPrefix string) (*store.RedisStore, error) {
	return store.NewRedisStore(addr, password, db, topicPrefix)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, realStoreFactory{}); err != nil {
		logging.Logger.Fatal().Err(err).Msg("cellrules engine failed")
	}
}

func run(ctx context.Context, args []string, storeFactory StoreFactory) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(cfg.LogLevel, cfg.LogOutput); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	deps, err := setupDependencies(cfg, storeFactory)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}

	return runMainLoop(ctx, deps)
}

func parseConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	return config.Load(*configFile)
}

func setupDependencies(cfg *config.Config, storeFactory StoreFactory) (*ruledDependencies, error) {
	redisStore, err := storeFactory.NewStore(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, cfg.RuleTopicName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	locks := lockmanager.New()
	runner := ruleengine.NewActionRunner(
		cfg.ActionPoolWorkers, cfg.ActionPoolQueueSize,
		time.Duration(cfg.ActionTimeoutMillis)*time.Millisecond, nil,
	)

	cellURLFor := func(cellID string) string {
		return fmt.Sprintf(cfg.CellBaseURLFormat, cellID)
	}

	manager, err := ruleengine.GetInstance(redisStore, locks, redisStore, runner, cfg.MaxEventHop, cellURLFor)
	if err != nil {
		return nil, fmt.Errorf("failed to start rule engine: %w", err)
	}

	var debug *ruleengine.DebugServer
	if cfg.DebugListenAddress != "" {
		debug = ruleengine.NewDebugServer(manager.Index, manager.Timers())
	}

	return &ruledDependencies{
		store: redisStore, locks: locks, runner: runner,
		debug: debug, debugAddr: cfg.DebugListenAddress, manager: manager,
	}, nil
}

func runMainLoop(ctx context.Context, deps *ruledDependencies) error {
	var debugServer *http.Server
	if deps.debug != nil {
		debugServer = &http.Server{Addr: deps.debugAddr, Handler: deps.debug.Handler()}
		go func() {
			logging.Logger.Info().Str("addr", deps.debugAddr).Msg("starting debug server")
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Logger.Error().Err(err).Msg("debug server exited")
			}
		}()
	}

	logging.Logger.Info().Msg("cellrules engine started")
	<-ctx.Done()
	logging.Logger.Info().Msg("shutting down cellrules engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if debugServer != nil {
		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			logging.Logger.Error().Err(err).Msg("failed to shut down debug server")
		}
	}

	return deps.manager.Shutdown(shutdownCtx)
}
