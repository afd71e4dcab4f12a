package federation

import (
	"context"
	"fmt"
	"log"

	"github.com/pkg/errors"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

// ensureRoleBinding grants the configured role on the project to the
// repository's principal set. The binding is additive only: members and roles
// already present in the policy are never removed.
func (r *reconciler) ensureRoleBinding(
	ctx context.Context,
	log *log.Logger,
	apply bool,
) ([]string, error) {
	member := PrincipalSet(r.projectNumber, r.cfg.PoolId, r.cfg.Repo)
	projectResource := fmt.Sprintf("projects/%s", r.cfg.ProjectId)

	policy, err := r.client.GetProjectIamPolicy(ctx, r.cfg.ProjectId, &cloudresourcemanager.GetIamPolicyRequest{})
	if err != nil {
		return nil, errors.Wrap(gcp.Classify(projectResource, err), "failed to fetch policy for project")
	}

	modified := addPolicyBindingForProject(policy, r.cfg.Role, member)
	if !modified {
		return nil, nil
	}

	actions := []string{fmt.Sprintf("bind %s to %s", r.cfg.Role, member)}
	if !apply {
		return actions, nil
	}

	_, err = r.client.SetProjectIamPolicy(ctx, r.cfg.ProjectId, &cloudresourcemanager.SetIamPolicyRequest{
		Policy: policy,
	})
	if err != nil {
		return actions, errors.Wrapf(gcp.Classify(projectResource, err),
			"failed to bind role '%s' to principal '%s'", r.cfg.Role, member)
	}
	log.Printf("Bound role '%s' to principal '%s'", r.cfg.Role, member)
	return actions, nil
}

// removeRoleBinding removes the principal set from the configured role. Other
// members of the binding are untouched.
func (r *reconciler) removeRoleBinding(ctx context.Context, log *log.Logger) error {
	member := PrincipalSet(r.projectNumber, r.cfg.PoolId, r.cfg.Repo)
	projectResource := fmt.Sprintf("projects/%s", r.cfg.ProjectId)

	policy, err := r.client.GetProjectIamPolicy(ctx, r.cfg.ProjectId, &cloudresourcemanager.GetIamPolicyRequest{})
	if err != nil {
		return errors.Wrap(gcp.Classify(projectResource, err), "failed to fetch policy for project")
	}

	modified := applyMemberToRoleInPolicy(policy, r.cfg.Role, member, removeMemberFromBinding)
	if !modified {
		return nil
	}
	_, err = r.client.SetProjectIamPolicy(ctx, r.cfg.ProjectId, &cloudresourcemanager.SetIamPolicyRequest{
		Policy: policy,
	})
	if err != nil {
		return errors.Wrapf(gcp.Classify(projectResource, err),
			"failed to remove binding of role '%s' for principal '%s'", r.cfg.Role, member)
	}
	log.Printf("Removed binding of role '%s' for principal '%s'", r.cfg.Role, member)
	return nil
}

func addPolicyBindingForProject(policy *cloudresourcemanager.Policy, roleName, memberName string) bool {
	for i, binding := range policy.Bindings {
		if binding.Role == roleName {
			return addMemberToBinding(memberName, policy.Bindings[i])
		}
	}

	// if we didn't find an existing binding entry, then make one
	policy.Bindings = append(policy.Bindings, &cloudresourcemanager.Binding{
		Members: []string{memberName},
		Role:    roleName,
	})
	return true
}

// adds member to existing binding. returns bool indicating if an entry was made
func addMemberToBinding(memberName string, binding *cloudresourcemanager.Binding) bool {
	for _, member := range binding.Members {
		if member == memberName {
			// already present
			return false
		}
	}

	binding.Members = append(binding.Members, memberName)
	return true
}

// removes member from the binding. returns bool indicating if the member was
// present.
func removeMemberFromBinding(memberName string, binding *cloudresourcemanager.Binding) bool {
	for i, member := range binding.Members {
		if member == memberName {
			binding.Members = append(binding.Members[:i], binding.Members[i+1:]...)
			return true
		}
	}
	return false
}

// applyMemberToRoleInPolicy locates the binding for the role and calls apply
// with the member and the binding. Returns what apply returned, or false if
// the role has no binding.
func applyMemberToRoleInPolicy(
	policy *cloudresourcemanager.Policy,
	roleName string,
	memberName string,
	apply func(member string, binding *cloudresourcemanager.Binding) bool,
) bool {
	for i, binding := range policy.Bindings {
		if binding.Role == roleName {
			return apply(memberName, policy.Bindings[i])
		}
	}
	return false
}
