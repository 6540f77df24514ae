// Command estimate previews the carbon credits a farm would earn.
//
// Usage:
//
//	estimate --crop rice --land 5 --water alternate_wetting_drying [--agroforestry tree_plantation] [--ndvi 0.8] [--json]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/internal/logging"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "estimate",
		Usage:     "Estimate carbon credits for a farm",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "crop",
				Aliases: []string{"c"},
				Value:   estimation.CropRice,
				Usage:   "Crop type (rice, agroforestry, mixed_crops, vegetables)",
			},
			&cli.Float64Flag{
				Name:     "land",
				Aliases:  []string{"l"},
				Usage:    "Land size in hectares",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "water",
				Aliases: []string{"w"},
				Usage:   "Water management practice for rice (" + strings.Join(estimation.KnownWaterPractices(), ", ") + ")",
			},
			&cli.StringFlag{
				Name:  "fertilizer",
				Usage: "Fertilizer usage, recorded but not scored",
			},
			&cli.StringSliceFlag{
				Name:  "agroforestry",
				Usage: "Agroforestry method, repeatable",
			},
			&cli.Float64Flag{
				Name:  "ndvi",
				Usage: "Observed NDVI for the farm",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log fallback warnings",
			},
		},
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	logger := zap.NewNop()
	if c.Bool("verbose") {
		var err error
		if logger, err = logging.New("debug", true); err != nil {
			return err
		}
		defer logger.Sync()
	}

	input := estimation.EstimationInput{
		CropType:         c.String("crop"),
		LandSizeHectares: c.Float64("land"),
		Practices: &estimation.Practices{
			WaterManagement:     c.String("water"),
			FertilizerUsage:     c.String("fertilizer"),
			AgroforestryMethods: c.StringSlice("agroforestry"),
		},
	}
	if c.IsSet("ndvi") {
		ndvi := c.Float64("ndvi")
		input.RemoteSensing = &estimation.RemoteSensing{NDVI: &ndvi}
	}

	result, err := estimation.NewEstimator(logger).Estimate(input)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Crop:                %s\n", input.CropType)
	fmt.Fprintf(out, "Land size:           %.2f ha\n", input.LandSizeHectares)
	fmt.Fprintf(out, "Biomass estimate:    %.2f tonnes CO2\n", result.BiomassEstimate)
	fmt.Fprintf(out, "Soil sequestration:  %.2f tonnes CO2\n", result.Breakdown.SoilCarbonSequestration)
	fmt.Fprintf(out, "Methane reduction:   %.2f tonnes CO2e\n", result.MethaneEmissionReduction)
	fmt.Fprintf(out, "Carbon credits:      %.2f tonnes CO2e\n", result.CarbonCredits)
	fmt.Fprintf(out, "Confidence:          %.1f%%\n", result.ConfidenceScore*100)
	return nil
}
