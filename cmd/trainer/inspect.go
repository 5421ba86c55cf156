package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/selection"
	"soilsense/internal/services/prediction"
	"soilsense/pkg/errors"
)

var inspectVersions bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [version]",
	Short: "Print a published bundle as YAML",
	Long: `Prints the selection report, cluster profiles and original-scale centers of a
bundle. Without a version the current bundle is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectVersions, "versions", false, "list published versions instead")
}

// inspection is the YAML view of one bundle
type inspection struct {
	Version   string              `yaml:"version"`
	CreatedAt time.Time           `yaml:"created_at"`
	Age       string              `yaml:"age"`
	K         int                 `yaml:"k"`
	Features  []string            `yaml:"features"`
	Report    *selection.Report   `yaml:"report"`
	Clusters  []inspectionCluster `yaml:"clusters"`
}

type inspectionCluster struct {
	profile.Profile `yaml:",inline"`
	Name            string             `yaml:"name"`
	Center          map[string]float64 `yaml:"center"`
	Description     string             `yaml:"description"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	c := newContainer()
	defer c.Close()
	ctx := cmd.Context()

	if inspectVersions {
		versions, err := c.Store.Versions(ctx)
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	}

	var (
		b   *bundle.Bundle
		err error
	)
	if len(args) == 1 {
		b, err = c.Store.Load(ctx, args[0])
	} else {
		b, err = bundle.LoadCurrent(ctx, c.Store)
	}
	if err != nil {
		return err
	}

	policy, err := prediction.PolicyFromConfig(c.Config.Policy)
	if err != nil {
		return err
	}
	return renderBundle(cmd.OutOrStdout(), b, policy)
}

func renderBundle(w io.Writer, b *bundle.Bundle, policy prediction.Policy) error {
	centers, err := b.CentersOriginal()
	if err != nil {
		return errors.Wrap(err, "inverse transform centers")
	}

	view := inspection{
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		Age:       humanize.Time(b.CreatedAt),
		K:         b.K(),
		Features:  b.Features,
		Report:    b.Report,
		Clusters:  make([]inspectionCluster, 0, b.K()),
	}
	for i, p := range b.Profiles.Profiles {
		center := make(map[string]float64, len(b.Features))
		for j, name := range b.Features {
			center[name] = centers[i][j]
		}
		view.Clusters = append(view.Clusters, inspectionCluster{
			Profile:     p,
			Name:        prediction.ClusterName(p.ClusterID),
			Center:      center,
			Description: prediction.Describe(p.ClusterID, p, policy),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(view)
}
