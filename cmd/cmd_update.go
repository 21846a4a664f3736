// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"

	"github.com/jcodagnone/revgeo/catalog"
	"github.com/jcodagnone/revgeo/config"
	"github.com/jcodagnone/revgeo/geocoding"
	"github.com/jcodagnone/revgeo/resolve"
	"github.com/jcodagnone/revgeo/sidecar"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type updateOptions struct {
	Sources      []string
	Lightroom    string
	Strict       bool
	Fields       []string
	GoogleAPIKey string
	Email        string
	Provider     string
	FuzzyCache   string
	NoBackup     bool
	DryRun       bool

	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
}

var updateOpts = &updateOptions{}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fills the location fields of XMP sidecars",
	Long: `Reads the GPS coordinates of every sidecar, reverse geocodes them and writes
the location fields that are missing, or the ones selected with -f.

$ revgeo update -x ~/Pictures/2024 -e me@example.com
---> /home/me/Pictures/2024/IMG_0001.xmp: [UPDATED]
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runUpdate(updateOpts)
	},
}

func runUpdate(opts *updateOptions) error {
	policy, err := resolve.NewPolicy(opts.Fields)
	if err != nil {
		return err
	}

	radius, err := parseFuzzyDistance(opts.FuzzyCache)
	if err != nil {
		return err
	}

	cfg, kind, err := providerSettings(settings, opts)
	if err != nil {
		return err
	}

	logger := zap.L()

	provider, err := newProvider(cfg, kind, opts)
	if err != nil {
		return err
	}

	resolverOpts := &resolve.Options{
		DryRun:      opts.DryRun,
		NoBackup:    opts.NoBackup,
		FuzzyRadius: radius,
		Logger:      logger,
		Progress:    isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsTerminal(os.Stdout.Fd()),
	}

	if opts.Lightroom != "" {
		lr, err := catalog.OpenLightroom(opts.Lightroom, opts.Strict)
		if err != nil {
			return err
		}
		defer lr.Close()

		logger.Info("using lightroom catalog", zap.String("path", lr.Path()), zap.Bool("strict", opts.Strict))
		resolverOpts.Catalog = lr
	}

	files, err := sidecar.CollectFiles(afero.NewOsFs(), opts.Sources)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		logger.Warn("no sidecars found", zap.Strings("sources", opts.Sources))

		return nil
	}

	store, err := sidecar.NewExifToolStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("starting",
		zap.Int("files", len(files)),
		zap.String("provider", provider.Name()),
		zap.Stringer("fields", policy),
		zap.Float64("fuzzy_radius_m", radius),
		zap.Bool("dry_run", opts.DryRun))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, runErr := resolve.NewResolver(store, provider, policy, resolverOpts).Run(ctx, files)
	if report != nil {
		report.PrintSummary(os.Stdout, resolverOpts.Catalog != nil)
	}

	return runErr
}

// providerSettings merges the credential flags over the loaded config and
// picks the provider. Without an explicit choice, an email selects
// OpenStreetMap and anything else Google.
func providerSettings(base *config.Config, opts *updateOptions) (*config.Config, geocoding.Kind, error) {
	cfg := *base

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
		return nil, "", err
	}

	name := cfg.Provider
	if name == "" {
		name = string(geocoding.KindGoogle)
		if cfg.OpenStreetMapEmail != "" {
			name = string(geocoding.KindOpenStreetMap)
		}
	}

	kind, err := geocoding.ParseKind(name)
	if err != nil {
		return nil, "", err
	}

	return &cfg, kind, nil
}

func newProvider(cfg *config.Config, kind geocoding.Kind, opts *updateOptions) (geocoding.Provider, error) {
	client := geocoding.NewHTTPClient(&geocoding.ClientOptions{
		UserAgent:           fmt.Sprintf("revgeo/%s (+https://github.com/jcodagnone/revgeo)", Version),
		EnableHTTPTrace:     opts.EnableHTTPTrace,
		EnableHTTPBodyTrace: opts.EnableHTTPBodyTrace,
	})

	return geocoding.NewProvider(kind, geocoding.Credentials{
		GoogleAPIKey: cfg.GoogleAPIKey,
		Email:        cfg.OpenStreetMapEmail,
	}, client, geocoding.Options{
		Logger:  zap.L().Named(string(kind)),
		Verbose: rootOpts.Verbose,
	})
}

var fuzzyDistanceRe = regexp.MustCompile(`^(\d+)(m|km)$`)

// parseFuzzyDistance turns "10m" or "1km" into meters. Empty disables the
// fuzzy cache.
func parseFuzzyDistance(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}

	m := fuzzyDistanceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, eris.Errorf("invalid fuzzy cache distance %q (want <int>m or <int>km)", s)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, eris.Wrapf(err, "invalid fuzzy cache distance %q", s)
	}

	if m[2] == "km" {
		return float64(n) * 1000, nil
	}

	return float64(n), nil
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringArrayVarP(
		&updateOpts.Sources,
		"xmp",
		"x",
		nil,
		"Sidecar file or folder to process, repeatable",
	)
	updateCmd.Flags().StringVarP(
		&updateOpts.Lightroom,
		"lightroom",
		"l",
		"",
		"Folder holding the Lightroom catalog (.lrcat)",
	)
	updateCmd.Flags().BoolVarP(
		&updateOpts.Strict,
		"strict",
		"s",
		false,
		"Only match catalog images in the same folder as the sidecar",
	)
	updateCmd.Flags().StringArrayVarP(
		&updateOpts.Fields,
		"field",
		"f",
		nil,
		"Field to write even if set (location, city, state, country, countrycode, overwrite), repeatable",
	)
	updateCmd.Flags().StringVarP(
		&updateOpts.GoogleAPIKey,
		"google-api-key",
		"g",
		"",
		"Google Maps API key",
	)
	updateCmd.Flags().StringVarP(
		&updateOpts.Email,
		"email",
		"e",
		"",
		"Contact email for OpenStreetMap",
	)
	updateCmd.Flags().StringVar(
		&updateOpts.Provider,
		"provider",
		"",
		"Geocoding provider: google or openstreetmap",
	)
	updateCmd.Flags().StringVar(
		&updateOpts.FuzzyCache,
		"fuzzy-cache",
		"",
		"Reuse cached locations within this distance, like 10m or 1km",
	)
	updateCmd.Flags().Lookup("fuzzy-cache").NoOptDefVal = "10m"
	updateCmd.Flags().BoolVarP(
		&updateOpts.NoBackup,
		"nobackup",
		"n",
		false,
		"Do not back up sidecars before writing them",
	)
	updateCmd.Flags().BoolVar(
		&updateOpts.DryRun,
		"test",
		false,
		"Show what would be written without touching any file",
	)
	updateCmd.Flags().BoolVar(
		&updateOpts.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	updateCmd.Flags().BoolVar(
		&updateOpts.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)

	updateCmd.MarkFlagsMutuallyExclusive("google-api-key", "email")
	_ = updateCmd.MarkFlagRequired("xmp")
}
