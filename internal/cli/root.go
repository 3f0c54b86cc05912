package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"tablequeue/waitlist-service/internal/config"
	"tablequeue/waitlist-service/internal/logging"
	"tablequeue/waitlist-service/internal/store"
	"tablequeue/waitlist-service/internal/store/memory"
	"tablequeue/waitlist-service/internal/store/postgres"
	"tablequeue/waitlist-service/internal/waitlist"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Opener builds the service a command runs against. The returned func
// releases whatever the service holds.
type Opener func(ctx context.Context) (*waitlist.Service, func(), error)

func NewRoot() *cobra.Command {
	return newRoot(openFromEnv)
}

func newRoot(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "waitlistctl",
		Short:         "Operate restaurant waitlists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newQueueCmd(open))
	cmd.AddCommand(newExpireCmd(open))
	cmd.AddCommand(newTablesCmd(open))
	cmd.AddCommand(newTurnoverCmd(open))
	cmd.AddCommand(newDemandCmd(open))
	return cmd
}

func openFromEnv(ctx context.Context) (*waitlist.Service, func(), error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	location, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	st, closeStore, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	svc := waitlist.NewService(st, waitlist.Options{
		Logger:       log,
		HistoryWeeks: cfg.HistoryWeeks,
		Location:     location,
	})
	return svc, closeStore, nil
}

// OpenStore connects the store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), func() {}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DB_DSN is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// run opens the service, hands it to fn and releases it afterwards.
func run(cmd *cobra.Command, open Opener, fn func(ctx context.Context, svc *waitlist.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, svc)
}

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func requireRestaurant(cmd *cobra.Command, restaurantID *string) {
	cmd.Flags().StringVar(restaurantID, "restaurant", "", "restaurant id")
	_ = cmd.MarkFlagRequired("restaurant")
}
