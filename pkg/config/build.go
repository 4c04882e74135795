package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cloud.google.com/go/storage"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/driver/gcs"
	"github.com/depotgo/depot/pkg/driver/gridfs"
	"github.com/depotgo/depot/pkg/driver/instrument"
	"github.com/depotgo/depot/pkg/driver/local"
	"github.com/depotgo/depot/pkg/driver/memory"
	"github.com/depotgo/depot/pkg/driver/s3"
	"github.com/depotgo/depot/pkg/metrics"
	"github.com/depotgo/depot/pkg/registry"
)

// DriverBuilder constructs a driver.FileStorage from a store's option map.
// Third-party drivers, or drivers this module doesn't ship, register their
// own builder under a backend key at init time instead of the registry
// importing every driver package directly - the dynamic-loading approach
// the source used dotted-import strings for.
type DriverBuilder func(ctx context.Context, opts map[string]any) (driver.FileStorage, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]DriverBuilder{
		"local":  buildLocal,
		"memory": buildMemory,
		"s3":     buildS3,
		"gcs":    buildGCS,
		"gridfs": buildGridFS,
	}
)

// RegisterDriverBuilder adds or replaces the builder for a backend key.
// Call from an init() in a driver package to make it loadable by name from
// a RegistryConfig without this package importing it directly.
func RegisterDriverBuilder(backend string, builder DriverBuilder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[backend] = builder
}

// BuildRegistry configures a *registry.Registry from cfg: one store per
// cfg.Stores entry (built via the backend's registered DriverBuilder), the
// declared default, and every alias. Mirrors the teacher's
// InitializeRegistry, but against depot's flatter single-registry model.
func BuildRegistry(ctx context.Context, cfg RegistryConfig) (*registry.Registry, error) {
	reg := registry.New()

	for _, sc := range cfg.Stores {
		logger.DebugCtx(ctx, "config: building store", logger.StoreName(sc.Name), logger.StoreType(sc.Backend))

		buildersMu.RLock()
		build, ok := builders[sc.Backend]
		buildersMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: unknown backend %q for store %q", driver.ErrConfiguration, sc.Backend, sc.Name)
		}

		store, err := build(ctx, sc.Options)
		if err != nil {
			return nil, fmt.Errorf("build store %q: %w", sc.Name, err)
		}
		if err := reg.Configure(sc.Name, instrument.Wrap(sc.Name, store)); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultStore != "" {
		if err := reg.SetDefault(cfg.DefaultStore); err != nil {
			return nil, err
		}
	}

	for alias, target := range cfg.Aliases {
		if err := reg.Alias(alias, target); err != nil {
			return nil, err
		}
	}

	if rec := metrics.GetRecorder(); rec != nil {
		rec.SetRegistryStoreCount(len(cfg.Stores), len(cfg.Aliases))
	}

	return reg, nil
}

func decodeOptions(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: configDecodeHooks(),
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(opts)
}

func buildLocal(_ context.Context, opts map[string]any) (driver.FileStorage, error) {
	var cfg local.Config
	if err := decodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	return local.New(cfg)
}

func buildMemory(context.Context, map[string]any) (driver.FileStorage, error) {
	return memory.New(), nil
}

func buildS3(ctx context.Context, opts map[string]any) (driver.FileStorage, error) {
	var cfg s3.Config
	if err := decodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	return s3.NewFromConfig(ctx, cfg)
}

func buildGCS(ctx context.Context, opts map[string]any) (driver.FileStorage, error) {
	var cfg gcs.Config
	if err := decodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create gcs client: %v", driver.ErrBackendUnavailable, err)
	}
	return gcs.New(ctx, client, cfg)
}

// gridFSOptions mirrors the flat mongouri/collection keys from §6's
// configuration-key list rather than gridfs.Storage's own constructor
// shape, since GridFS needs a live *mongo.Database a generic decode step
// can't produce.
type gridFSOptions struct {
	MongoURI   string `mapstructure:"mongouri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func buildGridFS(ctx context.Context, opts map[string]any) (driver.FileStorage, error) {
	var cfg gridFSOptions
	if err := decodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	if cfg.MongoURI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: mongouri and database are required for gridfs", driver.ErrConfiguration)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to mongo: %v", driver.ErrBackendUnavailable, err)
	}
	return gridfs.NewFromDatabase(client.Database(cfg.Database), cfg.Collection)
}
