// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcodagnone/revgeo/geocoding"
	"github.com/jcodagnone/revgeo/spatial"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugDmsCmd = &cobra.Command{
	Use:   "dms",
	Short: "Converts coordinates between the sidecar and decimal formats",
	Long: `Reads one coordinate per line. Sidecar coordinates are printed as decimal
degrees, decimal degrees are printed as both a latitude and a longitude.

$ printf '35,39.57N\n-58.3816\n' | revgeo debug dms
35,39.57N	35.6595
-58.3816	58,22.896S	58,22.896W
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		input := os.Stdin
		if isatty.IsTerminal(input.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter coordinates to convert, one per line…")
		}

		return convertCoordinates(input, os.Stdout)
	},
}

func convertCoordinates(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if decimal := spatial.SexagesimalToDecimal(line); decimal != line {
			fmt.Fprintf(w, "%s\t%s\n", line, decimal)

			continue
		}

		value, err := spatial.ParseCoordinate(line)
		if err != nil {
			fmt.Fprintf(w, "%s\t%q\n", line, err)

			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", line,
			spatial.DecimalToSexagesimal(value, spatial.Latitude),
			spatial.DecimalToSexagesimal(value, spatial.Longitude))
	}

	return scanner.Err()
}

var debugGeocodeOpts = &updateOptions{}

var debugGeocodeCmd = &cobra.Command{
	Use:   "geocode <latitude> <longitude>",
	Short: "Reverse geocodes one coordinate and prints the raw record",
	Long: `Both coordinates can be given in decimal degrees or in the sidecar format.

$ revgeo debug geocode -e me@example.com 35,39.57N 139,42.03E`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, kind, err := providerSettings(settings, debugGeocodeOpts)
		if err != nil {
			return err
		}

		provider, err := newProvider(cfg, kind, debugGeocodeOpts)
		if err != nil {
			return err
		}

		record := provider.Resolve(context.Background(), args[1], args[0])

		s, err := json.Marshal(record)
		if err != nil {
			return err
		}

		fmt.Printf("%s\t%s\t%s\n", geocoding.Key(args[1], args[0]), provider.Name(), s)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugDmsCmd)
	debugCmd.AddCommand(debugGeocodeCmd)

	debugGeocodeCmd.Flags().StringVarP(
		&debugGeocodeOpts.GoogleAPIKey,
		"google-api-key",
		"g",
		"",
		"Google Maps API key",
	)
	debugGeocodeCmd.Flags().StringVarP(
		&debugGeocodeOpts.Email,
		"email",
		"e",
		"",
		"Contact email for OpenStreetMap",
	)
	debugGeocodeCmd.Flags().StringVar(
		&debugGeocodeOpts.Provider,
		"provider",
		"",
		"Geocoding provider: google or openstreetmap",
	)
	debugGeocodeCmd.Flags().BoolVar(
		&debugGeocodeOpts.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	debugGeocodeCmd.Flags().BoolVar(
		&debugGeocodeOpts.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)
	debugGeocodeCmd.MarkFlagsMutuallyExclusive("google-api-key", "email")
}
