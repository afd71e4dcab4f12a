package federation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	iamv1 "google.golang.org/api/iam/v1"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

const poolDescription = "GitHub Actions federation, managed by wifctl"

// ensurePool reconciles the workload identity pool: creates it when absent,
// undeletes it when soft-deleted, re-enables it when disabled, and keeps the
// display name in sync. Returns the actions taken or pending.
func (r *reconciler) ensurePool(
	ctx context.Context,
	log *log.Logger,
	apply bool,
) ([]string, error) {
	poolId := r.cfg.PoolId
	parent := PoolParent(r.cfg.ProjectId)
	resource := PoolResource(r.cfg.ProjectId, poolId)

	existing, err := r.client.GetWorkloadIdentityPool(ctx, resource)
	if err != nil {
		if gcp.IsNotFound(err) {
			if apply {
				pool := &iamv1.WorkloadIdentityPool{
					Name:        poolId,
					DisplayName: poolId,
					Description: poolDescription,
					State:       "ACTIVE",
					Disabled:    false,
				}
				if _, err := r.client.CreateWorkloadIdentityPool(ctx, parent, poolId, pool); err != nil {
					return nil, errors.Wrapf(gcp.Classify(resource, err),
						"failed to create workload identity pool '%s'", poolId)
				}
				log.Printf("Workload identity pool created with name '%s'", poolId)
			}
			return []string{fmt.Sprintf("create workload identity pool %s", poolId)}, nil
		}
		return nil, errors.Wrapf(gcp.Classify(resource, err),
			"failed to check if there is existing workload identity pool '%s'", poolId)
	}

	// The API canonicalizes output-only resource names to the project-number
	// form, so an existing pool matches on either the id or the number parent.
	if existing.Name != "" &&
		!strings.HasPrefix(existing.Name, PoolParent(r.cfg.ProjectId)) &&
		!strings.HasPrefix(existing.Name, PoolParent(strconv.FormatInt(r.projectNumber, 10))) {
		return nil, &gcp.ConflictError{
			Resource: existing.Name,
			Reason:   fmt.Sprintf("pool '%s' exists outside project '%s'", poolId, r.cfg.ProjectId),
		}
	}

	var actions []string
	if existing.State == "DELETED" {
		actions = append(actions, fmt.Sprintf("undelete workload identity pool %s", poolId))
		if apply {
			_, err := r.client.UndeleteWorkloadIdentityPool(ctx, resource, &iamv1.UndeleteWorkloadIdentityPoolRequest{})
			if err != nil {
				return actions, errors.Wrapf(gcp.Classify(resource, err),
					"failed to undelete workload identity pool '%s'", poolId)
			}
			log.Printf("Undeleted workload identity pool '%s'", poolId)
		}
	}

	var patch *iamv1.WorkloadIdentityPool
	var mask []string
	if existing.Disabled {
		actions = append(actions, fmt.Sprintf("re-enable workload identity pool %s", poolId))
		// Disabled is a zero value, it must be forced onto the wire.
		patch = &iamv1.WorkloadIdentityPool{Disabled: false, ForceSendFields: []string{"Disabled"}}
		mask = append(mask, "disabled")
	}
	if existing.DisplayName != poolId {
		actions = append(actions, fmt.Sprintf("reconcile display name of pool %s", poolId))
		if patch == nil {
			patch = &iamv1.WorkloadIdentityPool{}
		}
		patch.DisplayName = poolId
		mask = append(mask, "displayName")
	}
	if patch != nil && apply {
		if _, err := r.client.UpdateWorkloadIdentityPool(ctx, resource, patch, strings.Join(mask, ",")); err != nil {
			return actions, errors.Wrapf(gcp.Classify(resource, err),
				"failed to update workload identity pool '%s'", poolId)
		}
		log.Printf("Workload identity pool '%s' has been updated", poolId)
	}
	return actions, nil
}

// deletePool soft-deletes the pool. Deleting the pool invalidates every
// provider under it.
func (r *reconciler) deletePool(ctx context.Context, log *log.Logger) error {
	resource := PoolResource(r.cfg.ProjectId, r.cfg.PoolId)
	if _, err := r.client.DeleteWorkloadIdentityPool(ctx, resource); err != nil {
		if gcp.IsNotFound(err) {
			log.Printf("Workload identity pool '%s' not found", r.cfg.PoolId)
			return nil
		}
		return errors.Wrapf(gcp.Classify(resource, err),
			"failed to delete workload identity pool '%s'", r.cfg.PoolId)
	}
	log.Printf("Workload identity pool '%s' deleted", r.cfg.PoolId)
	return nil
}
