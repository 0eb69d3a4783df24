// Package cmd holds the shared startup sequence for statecraft processes:
// environment defaults, flag overrides, and a telemetry-wrapped run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/statecraft/internal/platform/config"
	"github.com/louisbranch/statecraft/internal/platform/otel"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// ServiceChronicle names the timeline/notification runtime in telemetry and logs.
const ServiceChronicle = "chronicle"

type runOptions struct {
	shutdownTimeout time.Duration
}

// Option customizes Run.
type Option func(*runOptions)

// WithShutdownTimeout bounds how long telemetry flushing may take on exit.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *runOptions) {
		o.shutdownTimeout = timeout
	}
}

// ParseConfigFromArgs loads env defaults into cfg, lets bind register flags
// seeded from those defaults, then parses args so flags win over env.
func ParseConfigFromArgs[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Run configures tracing for service and executes run until it returns.
func Run(ctx context.Context, service string, run func(context.Context) error, opts ...Option) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	options := runOptions{shutdownTimeout: defaultOTelShutdownTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.shutdownTimeout <= 0 {
		options.shutdownTimeout = defaultOTelShutdownTimeout
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), options.shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
