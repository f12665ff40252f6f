package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/denim-store/storefront/internal/auth"
	"github.com/denim-store/storefront/internal/cache"
	"github.com/denim-store/storefront/internal/db"
	"github.com/denim-store/storefront/internal/logging"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/services"
	"github.com/denim-store/storefront/internal/store"
	"github.com/denim-store/storefront/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Denim store backend",
	Long: `storefront serves the denim store HTTP API and manages its database.

Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.LoadConfig()
		logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.OTELServiceName)
	},
}

// cfg is loaded once before any command runs
var cfg *config.Config

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// deps is everything the commands build on top of the database
type deps struct {
	metrics  *metrics.AppMetrics
	database *db.DB
	redis    *redis.Client

	catalog  *services.CatalogService
	orders   *services.OrderService
	accounts *services.AccountService

	shutdownMetrics func(context.Context) error
}

// bootstrap connects to the database, applies migrations and wires the
// services. Redis is optional.
func bootstrap(ctx context.Context, cfg *config.Config) (*deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &deps{shutdownMetrics: func(context.Context) error { return nil }}

	var provider metric.MeterProvider = noop.NewMeterProvider()
	if cfg.OTELMetricsEnabled {
		appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		d.metrics = appMetrics
		d.shutdownMetrics = meterProvider.Shutdown
		provider = meterProvider
	} else {
		appMetrics, err := metrics.NewAppMetrics(provider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
		if err != nil {
			return nil, err
		}
		d.metrics = appMetrics
		log.Info().Msg("metrics export disabled")
	}

	if err := db.Migrate(cfg.GetDSN(), 0); err != nil {
		d.close()
		return nil, err
	}

	database, err := db.NewDB(ctx, cfg.GetDSN(), provider, cfg.OTELServiceName)
	if err != nil {
		d.close()
		return nil, err
	}
	d.database = database

	// A nil interface, not a nil *cache.ProductCache, disables caching
	var productCache services.ProductCache
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			d.close()
			return nil, err
		}
		d.redis = client
		productCache = cache.NewProductCache(client, "", cfg.CacheTTL)
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("product cache enabled")
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenManager(auth.TokenConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		TTL:       cfg.JWTTTL,
	})

	d.catalog = services.NewCatalogService(store.NewProductStore(database, d.metrics), productCache, d.metrics)
	d.orders = services.NewOrderService(store.NewOrderStore(database, d.metrics), productCache, d.metrics)
	d.accounts = services.NewAccountService(store.NewUserStore(database, d.metrics), hasher, tokens, d.metrics)
	return d, nil
}

// ensureAdmin creates the configured administrator when one is configured
func (d *deps) ensureAdmin(ctx context.Context, cfg *config.Config) error {
	if !cfg.AdminBootstrapEnabled() {
		return nil
	}
	if _, err := d.accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	return nil
}

func (d *deps) close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis client")
		}
	}
	if d.database != nil {
		if err := d.database.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing database")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.shutdownMetrics(ctx); err != nil {
		log.Warn().Err(err).Msg("error shutting down meter provider")
	}
}
