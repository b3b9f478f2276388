package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/canvass/internal/address"
	"github.com/evcraddock/canvass/internal/auth"
	"github.com/evcraddock/canvass/internal/db"
	"github.com/evcraddock/canvass/internal/docstore"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/logging"
	"github.com/evcraddock/canvass/internal/metrics"
	"github.com/evcraddock/canvass/internal/outcome"
	"github.com/evcraddock/canvass/internal/web"
)

// serveConfig is the resolved server configuration.
type serveConfig struct {
	Port         int
	DB           string
	Memory       bool
	Dev          bool
	GeocoderURL  string
	UserAgent    string
	Email        string
	GeocodeRate  float64
	GeocodeCache bool
	Concurrency  int
	AuthRequired bool
}

func newServeCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the map server",
		Long: `Start the HTTP server for the map page and JSON API.

Settings come from flags, CANVASS_* environment variables (for example
CANVASS_PORT or CANVASS_GEOCODER_EMAIL), and an optional server.yaml in
~/.config/canvass or the working directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(v, cfgFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "server config file (default: ~/.config/canvass/server.yaml)")
	f.Int("port", 8080, "port to listen on")
	f.Bool("dev", false, "development mode (text logs at debug level)")
	f.Bool("memory", false, "keep addresses in memory only")
	f.Bool("auth", false, "require an API key on /api routes")
	f.String("geocoder-url", "https://nominatim.openstreetmap.org", "Nominatim base URL")
	f.Int("concurrency", 4, "concurrent geocoding lookups during startup backfill")

	_ = v.BindPFlag("port", f.Lookup("port"))
	_ = v.BindPFlag("dev", f.Lookup("dev"))
	_ = v.BindPFlag("memory", f.Lookup("memory"))
	_ = v.BindPFlag("auth.required", f.Lookup("auth"))
	_ = v.BindPFlag("geocoder.url", f.Lookup("geocoder-url"))
	_ = v.BindPFlag("backfill.concurrency", f.Lookup("concurrency"))

	return cmd
}

// loadServeConfig merges flags, environment and the optional config file.
func loadServeConfig(v *viper.Viper, cfgFile string) (serveConfig, error) {
	v.SetDefault("port", 8080)
	v.SetDefault("geocoder.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.rate", 1.0)
	v.SetDefault("geocoder.cache", true)
	v.SetDefault("backfill.concurrency", 4)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.SetConfigName("server")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CANVASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return serveConfig{}, fmt.Errorf("reading server config: %w", err)
		}
	}

	cfg := serveConfig{
		Port:         v.GetInt("port"),
		DB:           v.GetString("db"),
		Memory:       v.GetBool("memory"),
		Dev:          v.GetBool("dev"),
		GeocoderURL:  v.GetString("geocoder.url"),
		UserAgent:    v.GetString("geocoder.user_agent"),
		Email:        v.GetString("geocoder.email"),
		GeocodeRate:  v.GetFloat64("geocoder.rate"),
		GeocodeCache: v.GetBool("geocoder.cache"),
		Concurrency:  v.GetInt("backfill.concurrency"),
		AuthRequired: v.GetBool("auth.required"),
	}

	if flagDB != "" {
		cfg.DB = flagDB
	}
	if cfg.DB == "" {
		path, err := db.DefaultPath()
		if err != nil {
			return serveConfig{}, err
		}
		cfg.DB = path
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return serveConfig{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Memory && cfg.AuthRequired {
		return serveConfig{}, errors.New("API keys need a database; drop --memory or --auth")
	}

	return cfg, nil
}

func runServe(ctx context.Context, cfg serveConfig) error {
	logging.Setup(cfg.Dev)
	logger := slog.Default()

	var (
		store    address.Store
		database *sql.DB
	)
	if cfg.Memory {
		store = docstore.NewMemory()
		logger.Warn("memory mode: addresses are lost on exit")
	} else {
		var err error
		database, err = db.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer closeDB(database)
		store = docstore.NewSQLite(database)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := []geocode.Option{
		geocode.WithBaseURL(cfg.GeocoderURL),
		geocode.WithRateLimit(cfg.GeocodeRate),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.UserAgent))
	}
	if cfg.Email != "" {
		opts = append(opts, geocode.WithEmail(cfg.Email))
	}
	geo := geocode.NewClient(opts...)

	var (
		forward address.Geocoder    = geo
		reverse web.ReverseGeocoder = geo
	)
	if cfg.GeocodeCache && database != nil {
		cached := geocode.NewCache(database, geo, logger.With("component", "geocode_cache"))
		forward, reverse = cached, cached
	}

	registry := address.New(store, forward,
		address.WithLogger(logger),
		address.WithMetrics(m),
		address.WithConcurrency(cfg.Concurrency),
	)

	if _, err := registry.LoadRecords(ctx); err != nil {
		return fmt.Errorf("loading addresses: %w", err)
	}

	deps := web.Deps{
		Registry: registry,
		Filter:   outcome.NewFilter(),
		Reverse:  reverse,
		Gatherer: reg,
		Metrics:  m,
		Logger:   logger,
	}
	if cfg.AuthRequired {
		deps.APIKeys = auth.NewAPIKeyStore(database)
	}

	srv, err := web.NewServer(deps)
	if err != nil {
		return err
	}

	// Pins without coordinates appear as the backfill places them.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Port)
	})
	g.Go(func() error {
		if _, _, err := registry.BackfillMissing(gctx); err != nil && gctx.Err() == nil {
			logger.Warn("coordinate backfill stopped", "error", err)
		}
		return nil
	})
	return g.Wait()
}
