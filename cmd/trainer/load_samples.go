package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"soilsense/internal/services/training"
	"soilsense/pkg/errors"
)

var loadSamplesCmd = &cobra.Command{
	Use:   "load-samples <file.csv>",
	Short: "Append the rows of a CSV file to the Postgres training table",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadSamples,
}

func runLoadSamples(cmd *cobra.Command, args []string) error {
	c := newContainer()
	defer c.Close()

	if c.Repos.Samples == nil {
		return errors.Wrap(errors.ErrInvalidInput, "load-samples requires POSTGRES_HOST")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open csv")
	}
	defer f.Close()

	samples, err := training.ReadCSV(f)
	if err != nil {
		return err
	}

	if err := c.Repos.Samples.Insert(cmd.Context(), samples); err != nil {
		return err
	}

	total, err := c.Repos.Samples.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s rows (%s in table)\n",
		humanize.Comma(int64(len(samples))), humanize.Comma(int64(total)))
	return nil
}
