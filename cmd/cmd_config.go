// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcodagnone/revgeo/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type configOptions struct {
	GoogleAPIKey string
	Email        string
	Provider     string
}

var configOpts = &configOptions{}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stored credentials",
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Stores a Google API key or an OpenStreetMap email",
	Long: `Stores the credentials so that update can run without -g or -e. Saving one
of them clears the other.

$ revgeo config save -e me@example.com`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}

		cfg, err := savedConfig(path, configOpts)
		if err != nil {
			return err
		}

		if err := config.Save(path, cfg); err != nil {
			return err
		}

		zap.L().Info("configuration saved", zap.String("path", path))

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}

		return writeConfig(os.Stdout, path, settings)
	},
}

// savedConfig applies the flags over what the file at path holds. Values
// that only come from REVGEO_* variables are never persisted.
func savedConfig(path string, opts *configOptions) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.GoogleAPIKey != "":
		cfg.GoogleAPIKey, cfg.OpenStreetMapEmail = opts.GoogleAPIKey, ""
	case opts.Email != "":
		cfg.GoogleAPIKey, cfg.OpenStreetMapEmail = "", opts.Email
	}

	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configPath() (string, error) {
	if rootOpts.ConfigPath != "" {
		return rootOpts.ConfigPath, nil
	}

	return config.DefaultPath()
}

func writeConfig(w io.Writer, path string, cfg *config.Config) error {
	_, err := fmt.Fprintf(w,
		"%-20s: %s\n%-20s: %s\n%-20s: %s\n%-20s: %s\n%-20s: %s\n",
		"File", path,
		"Provider", orDash(cfg.Provider),
		"Google API key", orDash(maskSecret(cfg.GoogleAPIKey)),
		"OpenStreetMap email", orDash(cfg.OpenStreetMapEmail),
		"Log level", orDash(cfg.Log.Level),
	)

	return err
}

// maskSecret keeps the last four characters.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configShowCmd)

	configSaveCmd.Flags().StringVarP(
		&configOpts.GoogleAPIKey,
		"google-api-key",
		"g",
		"",
		"Google Maps API key",
	)
	configSaveCmd.Flags().StringVarP(
		&configOpts.Email,
		"email",
		"e",
		"",
		"Contact email for OpenStreetMap",
	)
	configSaveCmd.Flags().StringVar(
		&configOpts.Provider,
		"provider",
		"",
		"Default geocoding provider: google or openstreetmap",
	)

	configSaveCmd.MarkFlagsMutuallyExclusive("google-api-key", "email")
	configSaveCmd.MarkFlagsOneRequired("google-api-key", "email", "provider")
}
