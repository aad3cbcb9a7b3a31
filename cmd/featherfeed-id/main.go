// Command featherfeed-id runs the federated identity service: provider
// sign-in, account provisioning, and the auth-method ledger behind one
// HTTP surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/featherfeed/featherfeed-id/internal/config"
	"github.com/featherfeed/featherfeed-id/internal/httpapi"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/handlers"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/middlewares"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/state"
	"github.com/featherfeed/featherfeed-id/internal/identity"
	"github.com/featherfeed/featherfeed-id/internal/oauth"
	"github.com/featherfeed/featherfeed-id/internal/observability/logger"
	"github.com/featherfeed/featherfeed-id/internal/session"
	"github.com/featherfeed/featherfeed-id/internal/store"
	"github.com/featherfeed/featherfeed-id/internal/store/memory"
	"github.com/featherfeed/featherfeed-id/internal/store/pg"
	"github.com/featherfeed/featherfeed-id/internal/store/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "featherfeed-id",
		Short:         "Federated identity and account provisioning service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.AddCommand(serve)

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}
	root.AddCommand(migrate)

	return root
}

func runServe(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "featherfeed-id",
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	resolver := identity.NewResolver(identity.Deps{
		Store:             st,
		ReservedUsernames: cfg.Auth.ReservedUsernames,
	})

	api := handlers.New(handlers.Deps{
		Providers: oauth.Build(cfg),
		Resolver:  resolver,
		Store:     st,
		Signer:    state.NewSigner(cfg.Auth.Secret, cfg.Auth.OriginTTL),
		Issuer:    session.NewIssuer(cfg.Auth.Secret),
	})

	router := httpapi.NewRouter(api,
		middlewares.WithRequestID,
		middlewares.WithLogging,
	)
	server := httpapi.NewServer(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })

	logger.L().Info("service started",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver))
	return g.Wait()
}

func runMigrate(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate: storage driver %q has no migrations", cfg.Storage.Driver)
	}

	st, err := pg.New(ctx, cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Migrate(ctx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.AccountStore, error) {
	switch cfg.Storage.Driver {
	case "redis":
		return redis.New(redis.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
