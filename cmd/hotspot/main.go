package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/dailyhot/hotspot/pkg/config"
	"github.com/dailyhot/hotspot/pkg/content"
	"github.com/dailyhot/hotspot/pkg/db"
	"github.com/dailyhot/hotspot/pkg/feed"
	"github.com/dailyhot/hotspot/pkg/gateway"
	"github.com/dailyhot/hotspot/pkg/llm"
	"github.com/dailyhot/hotspot/pkg/pipeline"
	"github.com/dailyhot/hotspot/pkg/repository"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	DryRun bool `long:"dry-run" description:"print the report instead of persisting it"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] failed to load config: %v", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, opts.NoColor, cfg.LLM.Primary.APIKey, cfg.LLM.Fallback.APIKey)

	log.Printf("[INFO] starting hotspot version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err = run(ctx, cfg, opts.DryRun)
	cancel()

	if err != nil {
		log.Printf("[ERROR] run failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] completed")
}

// run builds all collaborators from the config and executes one
// pipeline run
func run(ctx context.Context, cfg *config.Config, dryRun bool) error {
	gw, err := gateway.New(gateway.Config{
		Primary: gateway.ProviderConfig{
			Endpoint: cfg.LLM.Primary.Endpoint,
			APIKey:   cfg.LLM.Primary.APIKey,
			Models:   cfg.LLM.Primary.Models,
			Timeout:  cfg.LLM.Primary.Timeout,
		},
		Fallback: gateway.ProviderConfig{
			Endpoint: cfg.LLM.Fallback.Endpoint,
			APIKey:   cfg.LLM.Fallback.APIKey,
			Models:   cfg.LLM.Fallback.Models,
			Timeout:  cfg.LLM.Fallback.Timeout,
		},
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: cfg.LLM.RetryDelay,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	repos := repository.NewRepositories(database)

	var extractor pipeline.Extractor
	if cfg.Extraction.Enabled {
		extractor = content.NewExtractor(cfg.Extraction.Timeout, cfg.Fetch.UserAgent)
	}

	p := pipeline.New(cfg,
		feed.NewRSSFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		feed.NewCrawler(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		feed.NewTrendingClient(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		llm.NewSelector(gw),
		extractor,
		repos.Hotspot, repos.Trending, repos.Report)
	p.SetDryRun(dryRun)

	return p.Run(ctx)
}

func setupLog(dbg, noColor bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	for _, secret := range secrets {
		if secret != "" {
			logOpts = append(logOpts, lgr.Secret(secret))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
