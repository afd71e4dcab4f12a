package federation

import (
	"context"
	"fmt"
	"log"
	"reflect"

	"github.com/pkg/errors"
	iamv1 "google.golang.org/api/iam/v1"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

const providerDescription = "GitHub Actions OIDC, managed by wifctl"

// desiredProvider is the provider the configuration calls for. The issuer is
// always the GitHub Actions token endpoint.
func (r *reconciler) desiredProvider() *iamv1.WorkloadIdentityPoolProvider {
	return &iamv1.WorkloadIdentityPoolProvider{
		Name:               r.cfg.ProviderId,
		DisplayName:        r.cfg.ProviderId,
		Description:        providerDescription,
		State:              "ACTIVE",
		Disabled:           false,
		AttributeMapping:   AttributeMapping(),
		AttributeCondition: AttributeCondition(r.cfg.Repo, r.cfg.Organization),
		Oidc: &iamv1.Oidc{
			IssuerUri: GitHubIssuerURI,
		},
	}
}

// ensureProvider reconciles the OIDC provider under the pool. The attribute
// condition is validated against the configured repository before any API
// call: a provider whose condition does not pin the repository would trust
// every repository on GitHub.
func (r *reconciler) ensureProvider(
	ctx context.Context,
	log *log.Logger,
	apply bool,
) ([]string, error) {
	desired := r.desiredProvider()
	if err := ValidateAttributeCondition(desired.AttributeCondition, r.cfg.Repo); err != nil {
		return nil, err
	}

	providerId := r.cfg.ProviderId
	poolId := r.cfg.PoolId
	parent := PoolResource(r.cfg.ProjectId, poolId)
	resource := ProviderResource(r.cfg.ProjectId, poolId, providerId)

	existing, err := r.client.GetWorkloadIdentityProvider(ctx, resource)
	if err != nil {
		if gcp.IsNotFound(err) {
			if apply {
				if _, err := r.client.CreateWorkloadIdentityProvider(ctx, parent, providerId, desired); err != nil {
					return nil, errors.Wrapf(gcp.Classify(resource, err),
						"failed to create workload identity provider '%s'", providerId)
				}
				log.Printf("Workload identity provider created with name '%s' for pool '%s'", providerId, poolId)
			}
			return []string{fmt.Sprintf("create OIDC provider %s", providerId)}, nil
		}
		return nil, errors.Wrapf(gcp.Classify(resource, err),
			"failed to check if there is existing workload identity provider '%s' in pool '%s'",
			providerId, poolId)
	}

	if existing.Oidc == nil || existing.Oidc.IssuerUri != GitHubIssuerURI {
		// A foreign issuer on the same provider id is not reconciled in
		// place; trusting a different issuer is a different federation.
		if existing.Oidc != nil && existing.Oidc.IssuerUri != "" && existing.State == "ACTIVE" {
			return nil, &gcp.ConflictError{
				Resource: resource,
				Reason: fmt.Sprintf("provider is bound to issuer '%s', expected '%s'",
					existing.Oidc.IssuerUri, GitHubIssuerURI),
			}
		}
	}

	var needsUpdate bool
	if existing.Description != desired.Description ||
		existing.Disabled ||
		existing.DisplayName != desired.DisplayName ||
		existing.State != desired.State ||
		existing.AttributeCondition != desired.AttributeCondition ||
		!reflect.DeepEqual(existing.AttributeMapping, desired.AttributeMapping) ||
		existing.Oidc == nil ||
		existing.Oidc.IssuerUri != desired.Oidc.IssuerUri {
		needsUpdate = true
	}
	if !needsUpdate {
		return nil, nil
	}

	actions := []string{fmt.Sprintf("update OIDC provider %s", providerId)}
	if !apply {
		return actions, nil
	}

	patch := r.desiredProvider()
	patch.Name = resource
	patch.ForceSendFields = []string{"Disabled"}
	mask := "displayName,description,disabled,attributeMapping,attributeCondition,oidc"
	if _, err := r.client.UpdateWorkloadIdentityProvider(ctx, resource, patch, mask); err != nil {
		return actions, errors.Wrapf(gcp.Classify(resource, err),
			"failed to update identity provider '%s' for workload identity pool '%s'", providerId, poolId)
	}
	log.Printf("Workload identity pool '%s' identity provider '%s' was updated", poolId, providerId)
	return actions, nil
}

// deleteProvider soft-deletes the OIDC provider.
func (r *reconciler) deleteProvider(ctx context.Context, log *log.Logger) error {
	resource := ProviderResource(r.cfg.ProjectId, r.cfg.PoolId, r.cfg.ProviderId)
	if _, err := r.client.DeleteWorkloadIdentityProvider(ctx, resource); err != nil {
		if gcp.IsNotFound(err) {
			log.Printf("Workload identity provider '%s' not found", r.cfg.ProviderId)
			return nil
		}
		return errors.Wrapf(gcp.Classify(resource, err),
			"failed to delete workload identity provider '%s'", r.cfg.ProviderId)
	}
	log.Printf("Workload identity provider '%s' deleted", r.cfg.ProviderId)
	return nil
}
