// Package app provides the main application helpers of the chip tester.
package app

import (
	"fmt"
	"strings"

	"github.com/retroenv/chipcheck/internal/config"
	"github.com/retroenv/chipcheck/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// PrintBanner prints application version information.
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("chipcheck", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}

// PrintInfo prints the information about the test and the chip profile.
func PrintInfo(logger *log.Logger, opts options.Program, profile config.Profile) {
	if opts.Quiet {
		return
	}

	switch profile.Kind {
	case config.DRAM:
		logger.Info("Testing DRAM",
			log.String("profile", profile.Name),
			log.String("port", opts.Port),
			log.Int("size", 1<<profile.AddressBits),
			log.Stringer("settle", profile.Settle),
		)
		if opts.Cycles == 0 {
			logger.Info("Running until interrupted, press Ctrl+C to stop")
		}

	case config.ROM, config.PLA:
		logger.Info("Capturing "+strings.ToUpper(string(profile.Kind)),
			log.String("profile", profile.Name),
			log.String("port", opts.Port),
			log.Int("address_bits", profile.AddressBits),
			log.Int("data_bits", profile.DataBits),
		)
	}
}
