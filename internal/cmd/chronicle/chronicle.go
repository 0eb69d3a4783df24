// Package chronicle parses chronicle runtime flags and launches the service.
package chronicle

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/statecraft/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/statecraft/internal/platform/grpc"
	"github.com/louisbranch/statecraft/internal/platform/telemetry/metrics"
	server "github.com/louisbranch/statecraft/internal/services/chronicle/app"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/render"
	"github.com/louisbranch/statecraft/internal/services/chronicle/simclient"
	chroniclesqlite "github.com/louisbranch/statecraft/internal/services/chronicle/storage/sqlite"
)

// healthCheckTimeout bounds the -healthcheck probe.
const healthCheckTimeout = 3 * time.Second

// Config holds chronicle command configuration.
type Config struct {
	HTTPPort         int           `env:"CHRONICLE_HTTP_PORT" envDefault:"8090"`
	HealthPort       int           `env:"CHRONICLE_HEALTH_PORT" envDefault:"8091"`
	SimAddr          string        `env:"CHRONICLE_SIM_ADDR" envDefault:"http://localhost:8080"`
	SimTimeout       time.Duration `env:"CHRONICLE_SIM_TIMEOUT" envDefault:"10s"`
	SimRetries       int           `env:"CHRONICLE_SIM_RETRIES" envDefault:"3"`
	DBPath           string        `env:"CHRONICLE_DB_PATH" envDefault:"data/chronicle.db"`
	CatalogPath      string        `env:"CHRONICLE_CATALOG_PATH"`
	Locale           string        `env:"CHRONICLE_LOCALE" envDefault:"en-US"`
	ObservedPower    string        `env:"CHRONICLE_OBSERVED_POWER"`
	Retention        int           `env:"CHRONICLE_RETENTION" envDefault:"100"`
	ToastDuration    time.Duration `env:"CHRONICLE_TOAST_DURATION" envDefault:"8s"`
	BreakingDuration time.Duration `env:"CHRONICLE_BREAKING_DURATION" envDefault:"8s"`
	MaxToasts        int           `env:"CHRONICLE_MAX_TOASTS" envDefault:"5"`
	AutoAdvance      time.Duration `env:"CHRONICLE_AUTO_ADVANCE" envDefault:"0s"`

	// HealthCheck probes a running instance's health port and exits.
	HealthCheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The presentation HTTP API port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.SimAddr, "sim-addr", cfg.SimAddr, "Base URL of the simulation service")
	fs.DurationVar(&cfg.SimTimeout, "sim-timeout", cfg.SimTimeout, "Timeout for one simulation request")
	fs.IntVar(&cfg.SimRetries, "sim-retries", cfg.SimRetries, "Attempts for idempotent simulation reads")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite notification archive path (empty disables the archive)")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog override file")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for notification copy")
	fs.StringVar(&cfg.ObservedPower, "observed-power", cfg.ObservedPower, "Power whose gains and losses are worded from its point of view")
	fs.IntVar(&cfg.Retention, "retention", cfg.Retention, "Notifications kept in the inbox")
	fs.DurationVar(&cfg.ToastDuration, "toast-duration", cfg.ToastDuration, "How long a toast stays on screen")
	fs.DurationVar(&cfg.BreakingDuration, "breaking-duration", cfg.BreakingDuration, "How long a breaking-news bulletin stays on screen")
	fs.IntVar(&cfg.MaxToasts, "max-toasts", cfg.MaxToasts, "Toasts visible at once")
	fs.DurationVar(&cfg.AutoAdvance, "auto-advance", cfg.AutoAdvance, "Advance the simulation on this interval (0 disables)")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the local health port and exit")
}

// Run starts the chronicle runtime, or probes a running one with -healthcheck.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		return probeHealth(ctx, cfg)
	}
	return entrypoint.Run(ctx, entrypoint.ServiceChronicle, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func probeHealth(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.HealthPort)
	if err := platformgrpc.WaitForHealth(ctx, addr, server.HealthService, nil); err != nil {
		return fmt.Errorf("health check %s: %w", addr, err)
	}
	return nil
}

func serve(ctx context.Context, cfg Config) error {
	observed, err := observedPower(cfg.ObservedPower)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	client, err := simclient.New(simclient.Config{
		BaseURL: cfg.SimAddr,
		Timeout: cfg.SimTimeout,
		Retries: cfg.SimRetries,
	})
	if err != nil {
		return fmt.Errorf("simulation client: %w", err)
	}

	m := metrics.NewChronicle(nil)
	deps := session.Deps{
		Simulation: server.NewSimulation(client),
		Catalog:    cat,
		Localizer:  render.NewLocalizer(cfg.Locale),
		Metrics:    m,
	}
	serverDeps := server.Deps{Metrics: m}
	if strings.TrimSpace(cfg.DBPath) != "" {
		store, err := openArchive(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close chronicle archive: %v", err)
			}
		}()
		deps.Archive = store
		serverDeps.Archive = store
	}

	sess, err := session.New(session.Config{
		ObservedPower:    observed,
		Retention:        cfg.Retention,
		MaxToasts:        cfg.MaxToasts,
		ToastDuration:    cfg.ToastDuration,
		BreakingDuration: cfg.BreakingDuration,
	}, deps)
	if err != nil {
		return err
	}
	defer sess.Close()
	serverDeps.Session = sess

	if err := sess.Bootstrap(ctx); err != nil {
		// The simulation may still be starting; the first advance seeds the
		// snapshot instead.
		log.Printf("chronicle bootstrap: %v", err)
	}

	srv, err := server.New(server.Config{
		HTTPAddr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		HealthAddr:  fmt.Sprintf(":%d", cfg.HealthPort),
		AutoAdvance: cfg.AutoAdvance,
	}, serverDeps)
	if err != nil {
		return err
	}
	log.Printf("chronicle session %s observing %q", sess.ID(), observed)
	return srv.Serve(ctx)
}

func observedPower(raw string) (world.PowerID, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	power, ok := world.ParsePower(raw)
	if !ok {
		return "", fmt.Errorf("observed power %q is not a valid power id", raw)
	}
	return power, nil
}

func openArchive(path string) (*chroniclesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := chroniclesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chronicle sqlite store: %w", err)
	}
	return store, nil
}
