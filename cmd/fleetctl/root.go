package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fleet/internal/app"
	"fleet/internal/config"
	"fleet/internal/domain"
	"fleet/internal/geo"
	"fleet/internal/logger"
	internalRedis "fleet/internal/redis"
	"fleet/internal/repository/memory"
	"fleet/internal/repository/postgres"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type rootOptions struct {
	store    string
	fixtures string
	policy   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Fleet dispatch and tracking operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.store, "store", storePostgres, "backing store: postgres or memory")
	cmd.PersistentFlags().StringVar(&opts.fixtures, "fixtures", "", "JSON file seeding the memory store")
	cmd.PersistentFlags().StringVar(&opts.policy, "policy", "", "fleet policy file (defaults to FLEET_POLICY_FILE)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(newOptimizeCmd(opts), newIngestCmd(opts))
	return cmd
}

// fixtures is the seed file format of the memory store.
type fixtures struct {
	Orders    []*domain.Order    `json:"orders"`
	Vehicles  []*domain.Vehicle  `json:"vehicles"`
	Drivers   []*domain.Driver   `json:"drivers"`
	Shipments []*domain.Shipment `json:"shipments"`
}

// env is everything a command needs; close releases it.
type env struct {
	services *app.Services
	close    func()
}

func (o *rootOptions) open(ctx context.Context) (*env, error) {
	cfg := config.Load()
	if o.policy == "" {
		o.policy = cfg.PolicyFile
	}

	log, err := logger.New(o.logLevel)
	if err != nil {
		return nil, err
	}
	policy, err := config.LoadPolicy(o.policy)
	if err != nil {
		return nil, err
	}
	estimator, err := geo.New(cfg.Geo)
	if err != nil {
		return nil, err
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = log.Sync()
	}

	backend := app.Backend{Estimator: estimator}
	switch o.store {
	case storeMemory:
		store := memory.NewStore()
		if o.fixtures != "" {
			if err := loadFixtures(store, o.fixtures); err != nil {
				return nil, err
			}
		}
		backend.Tx = store
		backend.Repos = store.Repositories()

	case storePostgres:
		db, err := app.NewDatabase(ctx, cfg.Database, nil)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		backend.Tx = postgres.NewTxManager(db)
		backend.Repos = postgres.NewRepositories(db)

		// Without Redis the run goes on without locks or live positions.
		client, err := app.NewRedisClient(ctx, cfg.Redis, nil)
		if err != nil {
			log.Warnf(ctx, "redis unavailable, continuing without locks: %v", err)
		} else {
			closers = append(closers, func() { _ = client.Close() })
			backend.Positions = internalRedis.NewPositionStore(client)
			backend.Locks = internalRedis.NewLockStore(client)
			backend.Estimator = geo.NewCached(estimator, internalRedis.NewGeocodeCache(client, cfg.Geo.CacheTTL), log)
		}

	default:
		return nil, fmt.Errorf("unknown store %q", o.store)
	}

	return &env{
		services: app.NewServices(cfg, backend, policy, nil, log),
		close:    closeAll,
	}, nil
}

func loadFixtures(store *memory.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	var f fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, o := range f.Orders {
		store.AddOrder(o)
	}
	for _, v := range f.Vehicles {
		store.AddVehicle(v)
	}
	for _, d := range f.Drivers {
		store.AddDriver(d)
	}
	for _, s := range f.Shipments {
		store.AddShipment(s)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
