// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/jcodagnone/revgeo/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	ConfigPath string
	Debug      bool
	Verbose    bool
}

var (
	rootOpts = &rootOptions{}

	// settings is loaded before any subcommand runs.
	settings = &config.Config{}
)

var rootCmd = &cobra.Command{
	Use:   "revgeo",
	Short: "reverse geocoding for XMP sidecars",
	Long: `
revgeo fills the location fields (Location, City, State, Country and
CountryCode) of XMP sidecar files from their GPS coordinates, using Google
Maps or OpenStreetMap, and optionally the data stored in a Lightroom catalog.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootOpts.ConfigPath)
		if err != nil {
			return err
		}

		if rootOpts.Debug {
			cfg.Log.Level = "debug"
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}

		settings = cfg
		zap.L().Debug("configuration loaded",
			zap.String("provider", cfg.Provider),
			zap.Bool("google_api_key", cfg.GoogleAPIKey != ""),
			zap.Bool("openstreetmap_email", cfg.OpenStreetMapEmail != ""))

		return nil
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	err := rootCmd.Execute()

	_ = zap.L().Sync()

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&rootOpts.ConfigPath,
		"config",
		"",
		"Config file (default $XDG_CONFIG_HOME/revgeo/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&rootOpts.Debug,
		"debug",
		false,
		"Log at debug level",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&rootOpts.Verbose,
		"verbose",
		"v",
		false,
		"Also log the raw provider responses (with --debug)",
	)
}
