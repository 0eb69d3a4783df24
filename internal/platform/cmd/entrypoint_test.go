package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
	"time"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func bindTestFlags(fs *flag.FlagSet, cfg *testConfig) {
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
}

func TestParseConfigFromArgsFlagsOverrideEnv(t *testing.T) {
	t.Setenv("STATECRAFT_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("STATECRAFT_CMD_TEST_MODE", "env-mode")

	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseConfigFromArgs(&cfg, fs, []string{"-address", "flag:9001"}, bindTestFlags); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want flag value", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want env value", cfg.Mode)
	}
}

func TestParseConfigFromArgsDefaults(t *testing.T) {
	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseConfigFromArgs(&cfg, fs, nil, bindTestFlags); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Address != "127.0.0.1:8080" || cfg.Mode != "server" {
		t.Fatalf("cfg = %+v, want env defaults", cfg)
	}
}

func TestParseConfigFromArgsRejectsMissingInputs(t *testing.T) {
	if err := ParseConfigFromArgs[testConfig](nil, flag.NewFlagSet("x", flag.ContinueOnError), nil, nil); err == nil {
		t.Fatal("expected nil target error")
	}
	var cfg testConfig
	if err := ParseConfigFromArgs(&cfg, nil, nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestRunRejectsMissingInputs(t *testing.T) {
	if err := Run(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := Run(context.Background(), ServiceChronicle, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunReturnsRunError(t *testing.T) {
	t.Setenv("STATECRAFT_OTEL_ENDPOINT", "")
	want := errors.New("boom")

	err := Run(context.Background(), ServiceChronicle, func(context.Context) error { return want }, WithShutdownTimeout(time.Second))
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
