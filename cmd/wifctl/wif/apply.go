package wif

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
)

var (
	// ApplyOpts captures the options that affect the apply of the federation
	ApplyOpts = options{}
)

// NewApplyCmd provides the "apply" subcommand
func NewApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision the GitHub Actions federation on a project",
		Long: "Idempotently provision the workload identity federation: enable the required " +
			"service APIs, create the workload identity pool and its GitHub OIDC provider, " +
			"create the CI service account, and grant the project role to the repository's " +
			"principal set. Re-running against an already provisioned project makes no changes.",
		RunE: applyCmd,
	}
	addConfigFlags(applyCmd.PersistentFlags(), &ApplyOpts)
	return applyCmd
}

func applyCmd(cmd *cobra.Command, argv []string) error {
	ctx := context.Background()
	log := log.Default()

	cfg, err := ApplyOpts.resolve()
	if err != nil {
		return err
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to initiate GCP client")
	}

	log.Println("Applying workload identity federation...")
	provisioner := federation.NewProvisioner(cfg, client)
	outputs, results, err := provisioner.Apply(ctx, log)
	printResults(results)
	if err != nil {
		return err
	}

	if err := recordState(ctx, newStore(client, cfg), cfg, outputs); err != nil {
		return err
	}

	printOutputs(outputs)
	return nil
}

func printResults(results []federation.NodeResult) {
	w := tabwriter.NewWriter(os.Stdout, 8, 0, 2, ' ', 0)
	for _, result := range results {
		switch result.Status {
		case federation.StatusFailed, federation.StatusSkipped:
			fmt.Fprintf(w, "%s:\t%s\t%v\n", result.Name, result.Status, result.Err)
		default:
			fmt.Fprintf(w, "%s:\t%s\t%s\n", result.Name, result.Status, joinActions(result.Actions))
		}
	}
	w.Flush()
}

func joinActions(actions []string) string {
	if len(actions) == 0 {
		return "-"
	}
	joined := actions[0]
	for _, action := range actions[1:] {
		joined += "; " + action
	}
	return joined
}

func printOutputs(outputs *federation.Outputs) {
	w := tabwriter.NewWriter(os.Stdout, 8, 0, 2, ' ', 0)
	fmt.Fprintf(w, "workload_identity_provider:\t%s\n", outputs.WorkloadIdentityProvider)
	fmt.Fprintf(w, "service_account:\t%s\n", outputs.ServiceAccountEmail)
	fmt.Fprintf(w, "principal_set:\t%s\n", outputs.PrincipalSet)
	w.Flush()
}
