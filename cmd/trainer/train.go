package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"soilsense/internal/services/training"
	"soilsense/pkg/errors"
)

var (
	trainSource  string
	trainCSVPath string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the model on the training table and publish the bundle",
	Long: `Standardizes the seven soil features, sweeps the cluster count, fits k-means with
seeded restarts, profiles the clusters and publishes the bundle as the current version.

Examples:
  trainer train --source csv --csv data/soil.csv
  trainer train --source postgres`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainSource, "source", "csv", "training table source: csv|postgres")
	trainCmd.Flags().StringVar(&trainCSVPath, "csv", "soil_samples.csv", "CSV file for --source csv")
}

func runTrain(cmd *cobra.Command, args []string) error {
	c := newContainer()
	defer c.Close()

	var source training.SampleSource
	switch trainSource {
	case "csv":
		source = training.CSVSource{Path: trainCSVPath}
	case "postgres":
		if c.Repos.Samples == nil {
			return errors.NewValidationError("source", "postgres source requires POSTGRES_HOST", trainSource)
		}
		source = c.Repos.Samples
	default:
		return errors.NewValidationError("source", "must be csv or postgres", trainSource)
	}

	outcome, err := c.Services.Training.TrainFrom(cmd.Context(), source)
	if err != nil {
		return err
	}

	return printOutcome(cmd.OutOrStdout(), outcome)
}

func printOutcome(w io.Writer, outcome *training.Outcome) error {
	b := outcome.Bundle
	selected, _ := b.Report.Selected()

	fmt.Fprintf(w, "Published %s\n", b.Version)
	fmt.Fprintf(w, "  clusters:   %d\n", b.K())
	fmt.Fprintf(w, "  silhouette: %.4f\n", selected.Silhouette)
	fmt.Fprintf(w, "  samples:    %s\n", humanize.Comma(int64(b.Report.Samples)))
	fmt.Fprintf(w, "  took:       %s\n", outcome.Duration.Round(time.Millisecond))
	if outcome.Failures != nil {
		fmt.Fprintf(w, "  failures:   %v\n", outcome.Failures)
	}

	fmt.Fprintln(w, "\nDataset summary:")
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(outcome.Summary)
}
