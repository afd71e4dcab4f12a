package wif

import (
	"context"
	"encoding/json"

	"github.com/MicahParks/jwkset"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	iamv1 "google.golang.org/api/iam/v1"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
	"github.com/gcp-wif/wifctl/pkg/issuer"
)

var (
	// VerifyOpts captures the options of the verify subcommand
	VerifyOpts = options{}
)

// NewVerifyCmd provides the "verify" subcommand
func NewVerifyCmd() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the deployed federation trusts only the configured repository",
		Long: "Check that the deployed OIDC provider is bound to the GitHub Actions issuer, " +
			"that its attribute condition pins the configured repository, and that the " +
			"issuer is reachable and serving signing keys.",
		RunE: verifyCmd,
	}
	addConfigFlags(verifyCmd.PersistentFlags(), &VerifyOpts)
	return verifyCmd
}

func verifyCmd(cmd *cobra.Command, argv []string) error {
	ctx := context.Background()

	cfg, err := VerifyOpts.resolve()
	if err != nil {
		return err
	}

	client, err := gcp.NewClient(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to initiate GCP client")
	}

	providerResource := federation.ProviderResource(cfg.ProjectId, cfg.PoolId, cfg.ProviderId)
	provider, err := client.GetWorkloadIdentityProvider(ctx, providerResource)
	if err != nil {
		return errors.Wrapf(gcp.Classify(providerResource, err),
			"failed to get workload identity provider '%s'", cfg.ProviderId)
	}

	if err := checkDeployedProvider(provider, providerResource, cfg.Repo); err != nil {
		return err
	}

	issuerClient := issuer.NewClient(nil)
	metadata, err := issuerClient.Discover(ctx, provider.Oidc.IssuerUri)
	if err != nil {
		return err
	}
	if metadata.Issuer != provider.Oidc.IssuerUri {
		return errors.Errorf("issuer advertises '%s', provider is bound to '%s'",
			metadata.Issuer, provider.Oidc.IssuerUri)
	}
	jwks, err := issuerClient.Keys(ctx, metadata.JwksUri)
	if err != nil {
		return err
	}
	if provider.Oidc.JwksJson != "" {
		matches, err := pinnedJwksMatches(provider.Oidc.JwksJson, jwks)
		if err != nil {
			return err
		}
		if !matches {
			return errors.Errorf(
				"provider '%s' pins signing keys that differ from the issuer's published JWKS",
				providerResource)
		}
	}

	cmd.Println("Federation configuration is valid")
	return nil
}

// pinnedJwksMatches compares the JWKS pinned on the provider against the key
// set the issuer currently serves. A pinned set that fell behind a key
// rotation would reject every fresh workflow token.
func pinnedJwksMatches(pinned string, fetched *jwkset.JWKSMarshal) (bool, error) {
	raw, err := json.Marshal(fetched)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode fetched JWKS")
	}
	return issuer.JwksEqual(pinned, string(raw)), nil
}

// checkDeployedProvider verifies the deployed provider is active, bound to
// the GitHub Actions issuer, and restricts trust to the configured repository.
func checkDeployedProvider(provider *iamv1.WorkloadIdentityPoolProvider, resource, repo string) error {
	if provider.State != "ACTIVE" || provider.Disabled {
		return errors.Errorf("provider '%s' is not active", resource)
	}
	if provider.Oidc == nil || provider.Oidc.IssuerUri != federation.GitHubIssuerURI {
		return errors.Errorf("provider '%s' is not bound to the GitHub Actions issuer '%s'",
			resource, federation.GitHubIssuerURI)
	}
	if err := federation.ValidateAttributeCondition(provider.AttributeCondition, repo); err != nil {
		return errors.Wrapf(err, "provider '%s' does not restrict trust to repository '%s'",
			resource, repo)
	}
	return nil
}
