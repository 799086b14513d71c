// Command dropwatch watches the lunch-delivery calendar for dates that
// open up for ordering and posts the changes to Slack.
//
// Usage:
//
//	dropwatch -config dropwatch.yaml             # one change-detection run
//	dropwatch -config dropwatch.yaml -summary    # report every date's state
//	dropwatch -config dropwatch.yaml -probe 3    # diagnose a single date
//	dropwatch -config dropwatch.yaml -mcp        # serve tools over stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dropwatch/artifact"
	"github.com/hazyhaar/dropwatch/auth"
	"github.com/hazyhaar/dropwatch/browser"
	"github.com/hazyhaar/dropwatch/extract"
	"github.com/hazyhaar/dropwatch/monitor"
	"github.com/hazyhaar/dropwatch/notify"
	"github.com/hazyhaar/dropwatch/store"
)

func main() {
	configPath := flag.String("config", "dropwatch.yaml", "path to dropwatch.yaml config file")
	summary := flag.Bool("summary", false, "report current state of every date instead of diffing")
	probe := flag.Int("probe", 0, "probe a single date N calendar days from today and exit")
	serveMCP := flag.Bool("mcp", false, "serve monitor tools over MCP stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *summary, *probe, *serveMCP); err != nil {
		logger.Error("dropwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, summary bool, probe int, serveMCP bool) error {
	cfg, err := monitor.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Summary = cfg.Summary || summary

	mgr := browser.NewManager(browser.Config{
		Remote:           cfg.Browser.Remote,
		Headless:         *cfg.Browser.Headless,
		NavTimeout:       cfg.Browser.NavTimeout(),
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	st, err := store.Open(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer st.Close()

	artifacts := artifact.New(cfg.ArtifactDir, logger)

	authn := auth.New(mgr, auth.Config{
		SignInURL:   cfg.SignInURL,
		HomeURL:     cfg.BaseURL,
		Username:    cfg.Email,
		Password:    cfg.Password,
		SessionFile: cfg.SessionFile,
		Artifacts:   artifacts,
		Logger:      logger,
	})

	var notifier notify.Notifier = &notify.Stdout{}
	if cfg.SlackWebhookURL != "" {
		notifier = notify.NewSlack(cfg.SlackWebhookURL, notify.WithSlackLogger(logger))
	}

	runner := monitor.NewRunner(monitor.RunnerConfig{
		Pages:   monitor.Pages(cfg.BaseURL, time.Now(), cfg.LookaheadDays),
		Session: authn,
		Loader:  &monitor.BrowserLoader{Manager: mgr},
		Extractor: extract.New(extract.Config{
			StateAttr:     cfg.Detect.StateAttr,
			EmptyPhrase:   cfg.Detect.EmptyPhrase,
			CardSelectors: cfg.Detect.CardSelectors,
			ActionPhrases: cfg.Detect.ActionPhrases,
			MinCount:      cfg.Detect.MinCount,
			Logger:        logger,
		}),
		Store:     st,
		Notifier:  notifier,
		Artifacts: artifacts,
		Summary:   cfg.Summary,
		Heartbeat: cfg.Heartbeat,
		Logger:    logger,
	})

	switch {
	case serveMCP:
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "dropwatch",
			Version: "1.0.0",
		}, nil)
		runner.RegisterMCP(srv, cfg.BaseURL)
		logger.Info("dropwatch: MCP stdio serving")
		return srv.Run(ctx, &mcp.StdioTransport{})

	case probe > 0:
		report, err := runner.Probe(ctx, cfg.BaseURL, probe)
		if err != nil {
			return err
		}
		logger.Info("dropwatch: probe complete",
			"date", report.Page.DateKey(),
			"available", report.Snapshot.Available,
			"count", report.Snapshot.Count,
			"strategy", report.Snapshot.Strategy)
		return nil

	default:
		res, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("dropwatch: run complete",
			"checked", res.Checked,
			"events", len(res.Events),
			"errors", len(res.Errors))
		return nil
	}
}
