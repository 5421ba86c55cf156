package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"soilsense/internal/bootstrap"
)

var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "Train, publish and inspect soil clustering bundles",
	Long: `trainer fits the soil clustering model offline and publishes the bundle to the
configured store (MODEL_STORE). Serving instances pick the new bundle up on their
next reload, or immediately when Kafka is configured.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(trainCmd, inspectCmd, migrateCmd, loadSamplesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newContainer wires config, stores and the training service for one command
func newContainer() *bootstrap.Container {
	c := bootstrap.NewContainer()
	c.MustInitTrainer()
	return c
}
