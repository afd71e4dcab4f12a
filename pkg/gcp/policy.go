// Defines a Policy type which wraps the iam.Policy object. This enables
// callers of the gcp package to process service account access policies
// without needing to make additional imports.
package gcp

import (
	"cloud.google.com/go/iam"
)

// The member the policy applies to.
//
// For federated identities this takes the form:
// * `principalSet://iam.googleapis.com/projects/{NUMBER}/locations/global/workloadIdentityPools/{POOL}/attribute.repository/{OWNER/REPO}`
//
// For service accounts:
// * `serviceAccount:{EMAIL_ADDRESS}`
type PolicyMember string

// The name of the role belonging to the policy.
//
// For predefined roles:
// * `roles/{role_id}`
//
// For custom roles:
// * `projects/{project}/roles/{role_id}`
type RoleName string

type Policy interface {
	HasRole(member PolicyMember, roleName RoleName) bool
	AddRole(member PolicyMember, roleName RoleName)

	// Getters
	IamPolicy() *iam.Policy
	ResourceId() string
}

type policy struct {
	policy     *iam.Policy
	resourceId string
}

// NewPolicy wraps an iam.Policy for the given resource.
func NewPolicy(iamPolicy *iam.Policy, resourceId string) Policy {
	return &policy{policy: iamPolicy, resourceId: resourceId}
}

func (p *policy) AddRole(member PolicyMember, roleName RoleName) {
	p.policy.Add(string(member), iam.RoleName(roleName))
}

func (p *policy) HasRole(member PolicyMember, roleName RoleName) bool {
	return p.policy.HasRole(string(member), iam.RoleName(roleName))
}

func (p *policy) IamPolicy() *iam.Policy {
	return p.policy
}

func (p *policy) ResourceId() string {
	return p.resourceId
}
