package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/internal/config"
	"github.com/younsl/costadvisor/internal/logging"
	"github.com/younsl/costadvisor/internal/models"
	"github.com/younsl/costadvisor/pkg/advisor"
	"github.com/younsl/costadvisor/pkg/aws"
	"github.com/younsl/costadvisor/pkg/compute"
	"github.com/younsl/costadvisor/pkg/formatter"
	"github.com/younsl/costadvisor/pkg/pricing"
	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/storage"
	"github.com/younsl/costadvisor/pkg/store"
)

// startSpinner creates and starts a spinner on stderr
func startSpinner(message string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	return s
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

// userRules resolves the user's saved rules on top of the rules file, or
// the built-in defaults when no file is given
func userRules(cfg config.Config, logger zerolog.Logger) (*store.Preferences, rules.Set, error) {
	base := rules.Defaults()
	if cfg.RulesFile != "" {
		loaded, err := rules.Load(cfg.RulesFile)
		if err != nil {
			return nil, rules.Set{}, err
		}
		base = loaded
	}

	prefs, err := store.NewPreferences(cfg.PreferencesDir, base, logger)
	if err != nil {
		return nil, rules.Set{}, err
	}
	set, err := prefs.Get(cfg.User)
	if err != nil {
		return nil, rules.Set{}, err
	}
	return prefs, set, nil
}

func runAdvise(ctx context.Context, cfg config.Config, out io.Writer) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	intent, err := advisor.ParseIntent(cfg.Intent)
	if err != nil {
		return err
	}

	// Broken saved rules fail before any collection starts
	prefs, _, err := userRules(cfg, logger)
	if err != nil {
		return err
	}

	// Pick up edits to the saved rules while collection runs
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := prefs.Watch(watchCtx); err != nil {
			logger.Debug().Err(err).Msg("Preferences watcher stopped")
		}
	}()

	scanStartTime := time.Now()
	resources, buckets, err := collect(ctx, cfg, intent, logger)
	if err != nil {
		return err
	}

	// Re-read in case the saved rules changed during collection
	ruleSet, err := prefs.Get(cfg.User)
	if err != nil {
		return err
	}

	resolver := pricing.NewResolver(pricingAPI(ctx, cfg, logger), logger, pricing.WithTimeout(cfg.PricingTimeout))
	adv := advisor.New(
		compute.NewEvaluator(resolver, logger, compute.WithConcurrency(cfg.Concurrency)),
		storage.NewEvaluator(resolver.StoragePricePerGB, logger),
		logger,
	)

	report, err := adv.Advise(ctx, advisor.Request{
		Intent:    intent,
		Resources: resources,
		Buckets:   buckets,
		Rules:     ruleSet,
		TopN:      cfg.TopN,
	})
	if err != nil {
		var cfgErr *rules.ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("rules for user %s are invalid: %w", cfg.User, err)
		}
		return err
	}
	scanDuration := time.Since(scanStartTime)

	recordHistory(cfg, report, logger)

	if cfg.Output == config.OutputJSON {
		return formatter.PrintJSON(out, report)
	}

	formatter.PrintRecommendationsTable(out, report, scanStartTime, scanDuration)
	formatter.PrintReasons(out, report)
	formatter.PrintStorageSummary(out, report.Recommendations)
	formatter.PrintSkipSummary(out, report)
	formatter.PrintPricingStats(out, resolver.Stats().Snapshot())
	return nil
}

// pricingAPI returns the Pricing API client, or nil to price from the
// fallback tables only
func pricingAPI(ctx context.Context, cfg config.Config, logger zerolog.Logger) pricing.ProductsAPI {
	if !cfg.PricingAPI {
		return nil
	}
	client, err := pricing.NewAWSProductsAPI(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Pricing API unavailable, using fallback prices")
		return nil
	}
	return client
}

// collect loads descriptors from the input file or from AWS
func collect(ctx context.Context, cfg config.Config, intent advisor.Intent, logger zerolog.Logger) ([]models.ResourceDescriptor, []models.BucketDescriptor, error) {
	if cfg.InputFile != "" {
		input, err := readInput(cfg.InputFile)
		if err != nil {
			return nil, nil, err
		}
		return input.Resources, input.Buckets, nil
	}

	var resources []models.ResourceDescriptor
	var buckets []models.BucketDescriptor

	if intent == advisor.IntentCompute || intent == advisor.IntentAll {
		s := startSpinner(fmt.Sprintf("Collecting EC2 instances in %d region(s) ...", len(cfg.Regions)))
		start := time.Now()
		collected, err := aws.CollectEC2(ctx, cfg.Regions, logger)
		s.FinalMSG = fmt.Sprintf("✓ [%d instances found] EC2 collected - Completed in %.2f seconds\n",
			len(collected), time.Since(start).Seconds())
		s.Stop()
		if err != nil {
			logger.Warn().Err(err).Msg("EC2 collection incomplete")
		}
		resources = collected
	}

	if intent == advisor.IntentStorage || intent == advisor.IntentAll {
		s := startSpinner(fmt.Sprintf("Collecting S3 buckets in %d region(s) ...", len(cfg.Regions)))
		start := time.Now()
		collected, err := aws.CollectS3(ctx, cfg.Regions, logger, cfg.MaxObjects)
		s.FinalMSG = fmt.Sprintf("✓ [%d buckets found] S3 collected - Completed in %.2f seconds\n",
			len(collected), time.Since(start).Seconds())
		s.Stop()
		if err != nil {
			logger.Warn().Err(err).Msg("S3 collection incomplete")
		}
		buckets = collected
	}

	return resources, buckets, nil
}

func recordHistory(cfg config.Config, report advisor.Report, logger zerolog.Logger) {
	history, err := store.NewHistory(cfg.HistoryFile)
	if err != nil {
		logger.Warn().Err(err).Msg("History unavailable")
		return
	}
	entry, err := history.Append(store.EntryFromReport(cfg.User, report))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record history")
		return
	}
	logger.Debug().Str("entry", entry.ID).Str("path", history.Path()).Msg("History recorded")
}
