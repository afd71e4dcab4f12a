package federation

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/iam/admin/apiv1/adminpb"
	"github.com/pkg/errors"

	"github.com/gcp-wif/wifctl/pkg/gcp"
	"github.com/gcp-wif/wifctl/pkg/retry"
)

const (
	maxRetries   = 10
	retryDelayMs = 500
)

const workloadIdentityUserRole = "roles/iam.workloadIdentityUser"

const serviceAccountDescription = "GitHub Actions CI identity, managed by wifctl"

// ensureServiceAccount creates the CI service account if absent, re-enables
// it if disabled, and grants roles/iam.workloadIdentityUser on it to the
// repository's principal set so the federated identity can impersonate it.
func (r *reconciler) ensureServiceAccount(
	ctx context.Context,
	log *log.Logger,
	apply bool,
) ([]string, error) {
	accountId := r.cfg.ServiceAccountName
	saResource := gcp.FmtSaResourceId(accountId, r.cfg.ProjectId)

	var actions []string
	existing, err := r.client.GetServiceAccount(ctx, &adminpb.GetServiceAccountRequest{Name: saResource})
	if err != nil {
		if !gcp.IsNotFound(err) {
			return nil, errors.Wrapf(gcp.Classify(saResource, err),
				"failed to check if there is existing service account '%s'", accountId)
		}
		actions = append(actions, fmt.Sprintf("create service account %s", accountId))
		if !apply {
			// The access grant below requires the account; report it as
			// pending and stop here.
			return append(actions, fmt.Sprintf("grant %s to the repository principal set", workloadIdentityUserRole)), nil
		}
		existing, err = r.createServiceAccount(ctx, log, accountId)
		if err != nil {
			return actions, err
		}
	}

	if existing.Disabled {
		actions = append(actions, fmt.Sprintf("re-enable service account %s", accountId))
		if apply {
			if err := r.client.EnableServiceAccount(ctx, accountId, r.cfg.ProjectId); err != nil {
				return actions, errors.Wrapf(gcp.Classify(saResource, err),
					"failed to enable service account '%s'", accountId)
			}
			log.Printf("IAM service account '%s' has been enabled", accountId)
		}
	}

	grantActions, err := r.grantFederatedAccess(ctx, log, apply, saResource)
	return append(actions, grantActions...), err
}

// Returns the internal representation of the created service account. If the
// account already exists, the current instance is fetched and returned
// without error.
func (r *reconciler) createServiceAccount(
	ctx context.Context,
	log *log.Logger,
	accountId string,
) (*adminpb.ServiceAccount, error) {
	request := &adminpb.CreateServiceAccountRequest{
		Name:      fmt.Sprintf("projects/%s", r.cfg.ProjectId),
		AccountId: accountId,
		ServiceAccount: &adminpb.ServiceAccount{
			DisplayName: accountId,
			Description: serviceAccountDescription,
		},
	}
	sa, err := r.client.CreateServiceAccount(ctx, request)
	if err != nil {
		if gcp.IsAlreadyExists(err) {
			return r.client.GetServiceAccount(ctx, &adminpb.GetServiceAccountRequest{
				Name: gcp.FmtSaResourceId(accountId, r.cfg.ProjectId),
			})
		}
		return nil, errors.Wrap(gcp.Classify(gcp.FmtSaResourceId(accountId, r.cfg.ProjectId), err),
			"Failed to create IAM service account")
	}
	log.Printf("IAM service account '%s' has been created", accountId)
	return sa, nil
}

// grantFederatedAccess adds the workloadIdentityUser role for the principal
// set on the service account's access policy. Additive and idempotent.
func (r *reconciler) grantFederatedAccess(
	ctx context.Context,
	log *log.Logger,
	apply bool,
	saResource string,
) ([]string, error) {
	principal := gcp.PolicyMember(PrincipalSet(r.projectNumber, r.cfg.PoolId, r.cfg.Repo))

	// There is a window of time after a service account creation call during
	// which the account is not visible to adjacent API calls. The policy
	// write is wrapped in retry logic to be robust to these synchronization
	// issues.
	var actions []string
	err := retry.Delayed(func() error {
		policy, err := r.client.GetServiceAccountAccessPolicy(ctx, saResource)
		if err != nil {
			return errors.Wrapf(gcp.Classify(saResource, err),
				"failed to determine access policy of service account '%s'", r.cfg.ServiceAccountName)
		}
		if policy.HasRole(principal, workloadIdentityUserRole) {
			return nil
		}
		actions = []string{fmt.Sprintf("grant %s to %s", workloadIdentityUserRole, principal)}
		if !apply {
			return nil
		}
		policy.AddRole(principal, workloadIdentityUserRole)
		if err := r.client.SetServiceAccountAccessPolicy(ctx, policy); err != nil {
			return errors.Wrapf(gcp.Classify(saResource, err),
				"failed to attach federated access on service account '%s'", r.cfg.ServiceAccountName)
		}
		log.Printf("Federated access granted to service account '%s'", r.cfg.ServiceAccountName)
		return nil
	}, maxRetries, retryDelayMs*time.Millisecond)
	return actions, err
}

// deleteServiceAccount removes the CI service account.
func (r *reconciler) deleteServiceAccount(ctx context.Context, log *log.Logger, allowMissing bool) error {
	accountId := r.cfg.ServiceAccountName
	if err := r.client.DeleteServiceAccount(ctx, accountId, r.cfg.ProjectId, allowMissing); err != nil {
		return errors.Wrapf(gcp.Classify(gcp.FmtSaResourceId(accountId, r.cfg.ProjectId), err),
			"failed to delete service account '%s'", accountId)
	}
	log.Printf("IAM service account '%s' deleted", accountId)
	return nil
}
