// Package main is the entry point for the seoaudit command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/api"
	"github.com/spider-crawler/seoaudit/internal/audit"
	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logging"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/session"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

const usage = `Usage:
  seoaudit [flags] <domain> [flags]   audit a domain and print the JSON result
  seoaudit serve [flags]              start the HTTP API

-preset and -config cannot be combined.

Flags:
`

type options struct {
	configPath string
	preset     string
	dbPath     string
	exportPath string
	format     string
	maxPages   int
	maxDepth   int
	backend    string
	render     string
	noRobots   bool
	addr       string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	serve := len(args) > 0 && args[0] == "serve"
	if serve {
		args = args[1:]
	}

	opts := &options{}
	fs := flag.NewFlagSet("seoaudit", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "JSON config file")
	fs.StringVar(&opts.preset, "preset", "", "crawl preset: fast, polite")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite database to store audits in")
	fs.StringVar(&opts.exportPath, "export", "", "write the report to this file")
	fs.StringVar(&opts.format, "format", "json", "export format: json, csv, xlsx")
	fs.IntVar(&opts.maxPages, "max-pages", 0, "maximum pages to analyze")
	fs.IntVar(&opts.maxDepth, "max-depth", -1, "maximum link depth (0 = unlimited)")
	fs.StringVar(&opts.backend, "backend", "", "primary backend: dataforseo, none")
	fs.StringVar(&opts.render, "render", "", "page source: html, js")
	fs.BoolVar(&opts.noRobots, "no-robots", false, "ignore robots.txt")
	fs.StringVar(&opts.addr, "addr", ":8080", "listen address for serve")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if (serve && len(positional) != 0) || (!serve && len(positional) != 1) {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Setup context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *storage.Database
	if cfg.DatabasePath != "" {
		db, err = storage.Open(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open database", zap.Error(err))
			return 1
		}
		defer db.Close()
	}

	svcOpts := []audit.Option{}
	if db != nil {
		svcOpts = append(svcOpts, audit.WithDatabase(db))
	}

	if serve {
		sessions := session.NewMemoryStore(1000)
		svcOpts = append(svcOpts, audit.WithSessionStore(sessions))
		svc, err := audit.New(cfg, logger, svcOpts...)
		if err != nil {
			logger.Error("failed to create audit service", zap.Error(err))
			return 1
		}
		defer svc.Close()

		if err := api.NewServer(svc, sessions, db, logger).Run(ctx, opts.addr); err != nil {
			logger.Error("server stopped", zap.Error(err))
			return 1
		}
		return 0
	}

	svc, err := audit.New(cfg, logger, svcOpts...)
	if err != nil {
		logger.Error("failed to create audit service", zap.Error(err))
		return 1
	}
	defer svc.Close()

	result := svc.AnalyzeDomain(ctx, positional[0])
	if err := report.WriteJSON(os.Stdout, result); err != nil {
		logger.Error("failed to write result", zap.Error(err))
		return 1
	}

	if result.Success && opts.exportPath != "" {
		if err := export(result.Data, opts); err != nil {
			logger.Error("export failed", zap.Error(err))
			return 1
		}
		logger.Info("report exported", zap.String("path", opts.exportPath))
	}

	if !result.Success {
		return 1
	}
	return 0
}

// parseArgs parses flags wherever they appear and returns the positional
// arguments in order. Everything after "--" is positional.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

var errPresetAndConfig = errors.New("-preset and -config cannot be combined")

// loadConfig starts from a preset or the config file, then applies
// environment and flag overrides.
func loadConfig(opts *options) (*config.AuditConfig, error) {
	if opts.preset != "" && opts.configPath != "" {
		return nil, errPresetAndConfig
	}
	cfg := config.DefaultConfig()
	if opts.preset != "" {
		preset, err := config.FromPreset(opts.preset)
		if err != nil {
			return nil, err
		}
		cfg = preset
	}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if opts.dbPath != "" {
		cfg.DatabasePath = opts.dbPath
	}
	if opts.maxPages > 0 {
		cfg.MaxPages = opts.maxPages
	}
	if opts.maxDepth >= 0 {
		cfg.MaxDepth = opts.maxDepth
	}
	if opts.backend != "" {
		cfg.Backend = config.BackendKind(opts.backend)
	}
	if opts.render != "" {
		cfg.RenderMode = config.RenderMode(opts.render)
	}
	if opts.noRobots {
		cfg.RespectRobotsTxt = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func export(rep *report.AggregatedReport, opts *options) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	return report.NewExporter(&report.ExportOptions{
		Format:    format,
		FilePath:  opts.exportPath,
		Delimiter: ',',
	}).Export(rep)
}
