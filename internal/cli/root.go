// Package cli holds the fern command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/services/identify"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/redis"
)

type runtime struct {
	envFiles   []string
	configFile string
	cfg        *config.Config
	logger     ectologger.Logger
	zap        *zap.Logger
}

// NewRootCommand builds the fern command tree.
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "fern",
		Short:         "fern reconciles contact details into consolidated identities",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.zap != nil {
				_ = rt.zap.Sync()
			}
		},
	}
	root.PersistentFlags().StringSliceVar(&rt.envFiles, "env-file", nil, "env files to load before reading the environment (default .env)")
	root.PersistentFlags().StringVar(&rt.configFile, "config", "", "yaml, json or toml file with settings keyed by env name")

	root.AddCommand(serveCmd(rt, version))
	root.AddCommand(migrateCmd(rt))
	root.AddCommand(identifyCmd(rt))
	root.AddCommand(contactsCmd(rt))
	root.AddCommand(dlqCmd(rt))

	return root
}

func (rt *runtime) load() error {
	cfg, err := config.LoadFile(rt.configFile, rt.envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, zapLogger, err := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return err
	}
	rt.cfg, rt.logger, rt.zap = cfg, logger, zapLogger
	return nil
}

// withService opens the store, and the cache when enabled, for one command.
// Events are not published from the CLI.
func (rt *runtime) withService(ctx context.Context, fn func(svc *identify.Service) error) error {
	db, err := app.OpenStore(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer closeStore(db, rt.logger)

	var c cache.Cache = cache.NoopCache{}
	if rt.cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     rt.cfg.RedisAddr(),
			Password: rt.cfg.RedisPassword,
			DB:       rt.cfg.RedisDB,
		}, rt.logger)
		if err != nil {
			return err
		}
		defer client.Close()
		c = cache.NewRedisCache(client, rt.cfg.CacheTTL, rt.logger)
	}

	return fn(app.NewService(db, c, nil, rt.logger))
}

func closeStore(db database.DB, logger ectologger.Logger) {
	if err := db.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close contact store")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
