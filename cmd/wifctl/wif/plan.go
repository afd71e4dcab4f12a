package wif

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
	"github.com/gcp-wif/wifctl/pkg/state"
)

var (
	// PlanOpts captures the options that affect the plan of the federation
	PlanOpts = options{}
)

// NewPlanCmd provides the "plan" subcommand
func NewPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what an apply would change, without changing anything",
		RunE:  planCmd,
	}
	addConfigFlags(planCmd.PersistentFlags(), &PlanOpts)
	return planCmd
}

func planCmd(cmd *cobra.Command, argv []string) error {
	ctx := context.Background()
	log := log.Default()

	cfg, err := PlanOpts.resolve()
	if err != nil {
		return err
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to initiate GCP client")
	}

	provisioner := federation.NewProvisioner(cfg, client)
	outputs, results, err := provisioner.Plan(ctx, log)
	printResults(results)
	if err != nil {
		return err
	}

	if store := newStore(client, cfg); store != nil {
		previous, err := store.Load(ctx)
		if err != nil {
			return err
		}
		for _, change := range state.Diff(previous, state.NewSnapshot(cfg, outputs)) {
			log.Printf("Drift from recorded state: %s", change)
		}
	}
	return nil
}
