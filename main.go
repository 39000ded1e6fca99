// Package main implements the main entry point for a vintage DRAM, ROM and PLA chip tester
package main

import (
	"context"
	"errors"
	"os"

	chipapp "github.com/retroenv/chipcheck/internal/app"
	"github.com/retroenv/chipcheck/internal/cli"
	"github.com/retroenv/chipcheck/internal/config"
	"github.com/retroenv/chipcheck/internal/metrics"
	"github.com/retroenv/chipcheck/internal/pipeline"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			chipapp.PrintBanner(logger, opts, version, commit, date)
			if msg := usageErr.Error(); msg != "" {
				logger.Error(msg)
			}
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	chipapp.PrintBanner(logger, opts, version, commit, date)

	fs := afero.NewOsFs()
	profile, err := config.LoadProfile(fs, opts.Profile)
	if err != nil {
		logger.Fatal(err.Error())
	}
	chipapp.PrintInfo(logger, opts, profile)

	var m *metrics.Metrics
	if opts.Metrics != "" {
		m = metrics.New(profile.Name)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	group, groupCtx := errgroup.WithContext(runCtx)

	if m != nil {
		group.Go(func() error {
			logger.Info("Serving metrics", log.String("address", opts.Metrics))
			return m.Serve(groupCtx, opts.Metrics)
		})
	}

	var result pipeline.Result
	group.Go(func() error {
		// the metrics server shuts down once the test is done
		defer stop()

		var err error
		result, err = pipeline.New(logger, fs, m).Execute(groupCtx, opts, profile)
		return err
	})

	if err := group.Wait(); err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Test stopped",
				log.Int("cycles", result.Summary.Cycles),
				log.Int("failed", result.Summary.FailedCycles))
		} else {
			logger.Error("Test failed", log.Err(err))
			os.Exit(1)
		}
	}

	if result.Failed() {
		os.Exit(2)
	}
}
