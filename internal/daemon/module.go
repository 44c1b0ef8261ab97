// Package daemon composes the engine: one fx module wiring the session
// lock, logging, bus, state machine, REST client, socket manager and sync
// coordinator, plus the lifecycle hooks that start and stop them.
package daemon

import (
	"context"
	"time"

	"github.com/ebarros/parley/internal/bus"
	"github.com/ebarros/parley/internal/config"
	"github.com/ebarros/parley/internal/lock"
	"github.com/ebarros/parley/internal/logging"
	"github.com/ebarros/parley/internal/rest"
	"github.com/ebarros/parley/internal/session"
	"github.com/ebarros/parley/internal/socket"
	"github.com/ebarros/parley/internal/status"
	intsync "github.com/ebarros/parley/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideCredential,
			provideRESTClient,
			provideSocketManager,
			provideCoordinator,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded", zap.String("server", cfg.ServerURL))
	return cfg, nil
}

// provideCredential loads the stored session credential. A missing
// credential is not an error at startup; the daemon boots disconnected
// and waits for a login.
func provideCredential(p Params, logger *zap.Logger) (*session.Credential, error) {
	cred, err := session.LoadCredential(p.SessionName)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		logger.Info("no credentials found, auth required")
		cred = &session.Credential{}
	}
	return cred, nil
}

func provideRESTClient(cfg *config.Config, cred *session.Credential) *rest.Client {
	return rest.NewClient(cfg.ServerURL, cred.Token)
}

func provideSocketManager(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *socket.Manager {
	return socket.NewManager(cfg.ServerURL, cfg.Reconnect, b, machine, logger)
}

func provideCoordinator(cred *session.Credential, client *rest.Client, manager *socket.Manager, b *bus.Bus, logger *zap.Logger) *intsync.Coordinator {
	return intsync.New(cred.UserID, client, manager, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, cred *session.Credential, manager *socket.Manager, coord *intsync.Coordinator, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start the coordinator first so nothing the socket pushes
			// is dropped on the floor.
			coord.Start()

			if cred.Token == "" {
				return nil
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := coord.RefreshChats(ctx); err != nil {
					logger.Error("initial roster fetch failed", zap.Error(err))
				}
				if err := manager.Connect(ctx, cred.Token); err != nil {
					logger.Error("auto-connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			coord.LeaveChat()
			coord.Stop()
			manager.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
