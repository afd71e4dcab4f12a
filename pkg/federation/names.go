package federation

import (
	"fmt"
	"strings"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

// GitHubIssuerURI is the token endpoint of GitHub Actions' OIDC issuer. The
// provider is always bound to this issuer; it is not configurable.
const GitHubIssuerURI = "https://token.actions.githubusercontent.com"

// RequiredServices are the project APIs the federation depends on. Enabling
// an already enabled service is a no-op, so the list errs on the inclusive
// side.
var RequiredServices = []string{
	"cloudresourcemanager.googleapis.com",
	"iam.googleapis.com",
	"iamcredentials.googleapis.com",
	"serviceusage.googleapis.com",
	"sts.googleapis.com",
}

// AttributeMapping maps pool attributes to claims of the GitHub Actions OIDC
// token. Only attribute.repository (and repository_owner) gate trust; actor
// is mapped for auditability.
func AttributeMapping() map[string]string {
	return map[string]string{
		"google.subject":             "assertion.sub",
		"attribute.actor":            "assertion.actor",
		"attribute.repository":       "assertion.repository",
		"attribute.repository_owner": "assertion.repository_owner",
	}
}

// AttributeCondition builds the trust condition for the provider. It always
// pins the exact repository; the owning organization is pinned as well.
func AttributeCondition(repo, organization string) string {
	condition := fmt.Sprintf("assertion.repository == %q", repo)
	if organization != "" {
		condition += fmt.Sprintf(" && assertion.repository_owner == %q", organization)
	}
	return condition
}

// ValidateAttributeCondition rejects any condition that does not restrict
// trust to the exact configured repository. A provider applied with a
// condition failing this check would let any repository assume the identity,
// so this runs before every provider write.
func ValidateAttributeCondition(condition, repo string) error {
	if repo == "" {
		return gcp.NewConfigurationError("repo must not be empty")
	}
	if condition == "" {
		return gcp.NewConfigurationError("attribute condition must not be empty")
	}
	if !strings.Contains(condition, "assertion.repository") {
		return gcp.NewConfigurationError(
			"attribute condition %q does not reference assertion.repository", condition)
	}
	if !strings.Contains(condition, fmt.Sprintf("%q", repo)) {
		return gcp.NewConfigurationError(
			"attribute condition %q does not pin repository '%s'", condition, repo)
	}
	return nil
}

// PoolParent formats the parent resource for workload identity pools of a
// project.
func PoolParent(projectId string) string {
	return fmt.Sprintf("projects/%s/locations/global", projectId)
}

// PoolResource formats the fully-qualified resource name of the pool.
func PoolResource(projectId, poolId string) string {
	return fmt.Sprintf("%s/workloadIdentityPools/%s", PoolParent(projectId), poolId)
}

// ProviderResource formats the fully-qualified resource name of the OIDC
// provider. This is the string CI workflows consume as
// workload_identity_provider.
func ProviderResource(projectId, poolId, providerId string) string {
	return fmt.Sprintf("%s/providers/%s", PoolResource(projectId, poolId), providerId)
}

// PrincipalSet formats the IAM member matching every identity of the pool
// whose repository attribute equals the configured repository. Principal sets
// are addressed by project number, not project id.
func PrincipalSet(projectNumber int64, poolId, repo string) string {
	return fmt.Sprintf(
		"principalSet://iam.googleapis.com/projects/%d/locations/global/workloadIdentityPools/%s/attribute.repository/%s",
		projectNumber, poolId, repo,
	)
}
