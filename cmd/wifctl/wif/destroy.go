package wif

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
)

var (
	// DestroyOpts captures the options that affect the teardown of the federation
	DestroyOpts = options{}
)

// NewDestroyCmd provides the "destroy" subcommand
func NewDestroyCmd() *cobra.Command {
	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the GitHub Actions federation",
		Long: "Remove the project role binding, soft-delete the OIDC provider and the " +
			"workload identity pool, and optionally delete the CI service account. " +
			"Service APIs are left enabled.",
		RunE: destroyCmd,
	}
	addConfigFlags(destroyCmd.PersistentFlags(), &DestroyOpts)
	destroyCmd.PersistentFlags().BoolVar(&DestroyOpts.DeleteServiceAccount, "delete-service-account", false,
		"Also delete the CI service account")
	return destroyCmd
}

func destroyCmd(cmd *cobra.Command, argv []string) error {
	ctx := context.Background()
	log := log.Default()

	cfg, err := DestroyOpts.resolve()
	if err != nil {
		return err
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to initiate GCP client")
	}

	log.Println("Destroying workload identity federation...")
	provisioner := federation.NewProvisioner(cfg, client)
	if err := provisioner.Destroy(ctx, log, DestroyOpts.DeleteServiceAccount); err != nil {
		return err
	}

	if store := newStore(client, cfg); store != nil {
		if err := store.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}
