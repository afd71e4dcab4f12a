package wif

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
)

var (
	// DescribeOpts captures the options of the describe subcommand
	DescribeOpts = options{}
)

// NewDescribeCmd provides the "describe" subcommand
func NewDescribeCmd() *cobra.Command {
	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Show details of the deployed federation",
		RunE:  describeCmd,
	}
	addConfigFlags(describeCmd.PersistentFlags(), &DescribeOpts)
	return describeCmd
}

func describeCmd(cmd *cobra.Command, argv []string) error {
	ctx := context.Background()

	cfg, err := DescribeOpts.resolve()
	if err != nil {
		return err
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to initiate GCP client")
	}

	poolResource := federation.PoolResource(cfg.ProjectId, cfg.PoolId)
	pool, err := client.GetWorkloadIdentityPool(ctx, poolResource)
	if err != nil {
		return errors.Wrapf(gcp.Classify(poolResource, err),
			"failed to get workload identity pool '%s'", cfg.PoolId)
	}

	providerResource := federation.ProviderResource(cfg.ProjectId, cfg.PoolId, cfg.ProviderId)
	provider, err := client.GetWorkloadIdentityProvider(ctx, providerResource)
	if err != nil {
		return errors.Wrapf(gcp.Classify(providerResource, err),
			"failed to get workload identity provider '%s'", cfg.ProviderId)
	}

	// Print output
	w := tabwriter.NewWriter(os.Stdout, 8, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Pool:\t%s\n", pool.Name)
	fmt.Fprintf(w, "Pool State:\t%s\n", pool.State)
	fmt.Fprintf(w, "Provider:\t%s\n", provider.Name)
	fmt.Fprintf(w, "Provider State:\t%s\n", provider.State)
	if provider.Oidc != nil {
		fmt.Fprintf(w, "Issuer:\t%s\n", provider.Oidc.IssuerUri)
	}
	fmt.Fprintf(w, "Condition:\t%s\n", provider.AttributeCondition)
	fmt.Fprintf(w, "Service Account:\t%s\n", gcp.FmtSaEmail(cfg.ServiceAccountName, cfg.ProjectId))

	return w.Flush()
}
