package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/oneapi-client/internal/config"
	"github.com/Sternrassler/oneapi-client/pkg/client"
	"github.com/Sternrassler/oneapi-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every command needs once the root command has initialised.
type app struct {
	cfgFile string

	cfg    *config.Config
	logger zerolog.Logger
	redis  *redis.Client
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "oneapi",
		Short: "Browse The One API movies and quotes",
		Long: `oneapi lists and looks up the movies and quotes of The One API
(https://the-one-api.dev). Listings are paged lazily and cached for the
lifetime of the process; with redis.addr configured, responses are also
shared between processes.

The API key is read from the config file or ONEAPI_API_KEY.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.initialize,
		PersistentPostRunE: a.shutdown,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./oneapi.yaml)")

	root.AddCommand(
		newMoviesCmd(a),
		newMovieCmd(a),
		newQuotesCmd(a),
		newQuoteCmd(a),
		newRandomQuoteCmd(a),
		newStatsCmd(a),
		newServeCmd(a),
	)

	return root
}

// initialize loads the configuration, sets up logging and creates the client.
func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	var err error
	a.cfg, err = config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pretty, err := logging.ParseFormat(a.cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(a.cfg.Logging.Level),
		Pretty: pretty,
		Output: cmd.ErrOrStderr(),
	})
	a.logger = logging.NewLogger("oneapi-cli")

	clientLogger := logging.NewLogger("oneapi-client")
	cc := a.cfg.ClientConfig()
	cc.Logger = &clientLogger

	if a.cfg.Redis.Addr != "" {
		a.redis = a.connectRedis(cmd.Context())
		cc.Redis = a.redis
	}

	a.client, err = client.New(cc)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// connectRedis returns a client for the shared cache, or nil when Redis is unreachable;
// the CLI then runs without it.
func (a *app) connectRedis(ctx context.Context) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Redis unavailable, continuing without shared cache")
		rdb.Close()
		return nil
	}

	a.logger.Debug().Str("addr", a.cfg.Redis.Addr).Msg("Connected to Redis")
	return rdb
}

func (a *app) shutdown(_ *cobra.Command, _ []string) error {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
