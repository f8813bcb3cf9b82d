package daemon

import (
	"context"
	"os"

	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/engine"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/push"
	"github.com/matheus3301/chatsync/internal/rest"
	"github.com/matheus3301/chatsync/internal/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile string
	// SkipLock lets a one-shot command run next to a daemon on the same profile.
	SkipLock bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		Providers(p),
		fx.Invoke(registerLifecycle),
	)
}

// Providers builds the engine and its collaborators without starting anything.
func Providers(p Params) fx.Option {
	return fx.Options(
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLock,
			provideBus,
			provideAuth,
			provideREST,
			provideDialer,
			provideEngine,
		),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath(p.Profile))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	path := cfg.Log.Path
	if path == "" && !p.SkipLock {
		path = session.LogPath(p.Profile)
	}
	return logging.New(path, p.Profile, cfg.Log.Level)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if p.SkipLock {
		return nil, nil
	}
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.LockPath(p.Profile), p.Profile)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideAuth(cfg *config.Config) (*auth.TokenSession, error) {
	return auth.NewTokenSession(cfg.Auth.Token)
}

func provideREST(cfg *config.Config, tokens *auth.TokenSession) *rest.Client {
	return rest.New(cfg.Server.APIBaseURL,
		rest.WithTimeout(cfg.Server.RequestTimeout),
		rest.WithTokenSource(tokens),
	)
}

func provideDialer(cfg *config.Config, tokens *auth.TokenSession, logger *zap.Logger) *push.WSDialer {
	return &push.WSDialer{
		URL:       cfg.ResolvedPushURL(),
		Tokens:    tokens,
		Heartbeat: cfg.Server.Heartbeat,
		Logger:    logger.Named("push"),
	}
}

func provideEngine(cfg *config.Config, api *rest.Client, dialer *push.WSDialer, tokens *auth.TokenSession, b *bus.Bus, logger *zap.Logger) *engine.Engine {
	return engine.New(engine.Options{
		API:                api,
		Dialer:             dialer,
		Auth:               tokens,
		Bus:                b,
		Logger:             logger,
		TypingQuietWindow:  cfg.Sync.TypingQuietWindow,
		ReconnectDelay:     cfg.Sync.ReconnectDelay,
		ReceiptTimeout:     cfg.Sync.ReceiptTimeout,
		EagerConversations: cfg.Sync.EagerConversations,
		OnUnauthorized: func() {
			logger.Error("server rejected the token; update [auth] token or set " + config.EnvToken)
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, eng *engine.Engine, tokens *auth.TokenSession, lk *lock.Lock, b *bus.Bus, logger *zap.Logger) {
	var (
		stopWatch func()
		cancel    context.CancelFunc
		// syncing is closed once the startup fetch and connect have returned.
		syncing chan struct{}
	)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			stopWatch = watchBus(b, logger)

			if !tokens.IsAuthenticated() {
				logger.Warn("no valid token, not connecting", zap.String("profile", p.Profile))
				return nil
			}
			logger.Info("starting sync", zap.String("user", tokens.CurrentUserID()))

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			syncing = make(chan struct{})
			go func() {
				defer close(syncing)
				if _, err := eng.FetchConversations(ctx); err != nil {
					logger.Warn("initial conversation fetch failed", zap.Error(err))
				}
				if ctx.Err() != nil {
					return
				}
				eng.Connect(ctx)
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			// Stop the startup sync before closing so it cannot connect afterwards.
			if cancel != nil {
				cancel()
				<-syncing
			}
			eng.Close()
			if stopWatch != nil {
				stopWatch()
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
