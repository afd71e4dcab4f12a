package federation

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

var (
	repoRE      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*/[A-Za-z0-9_.-]+$`)
	projectIdRE = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)
	accountIdRE = regexp.MustCompile(`^[a-z]([a-z0-9-]{4,28})[a-z0-9]$`)
	wifIdRE     = regexp.MustCompile(`^[a-z0-9-]{4,32}$`)
	roleRE      = regexp.MustCompile(`^(roles/[A-Za-z0-9._]+|projects/[a-z][a-z0-9-]{4,28}[a-z0-9]/roles/[A-Za-z0-9._]+)$`)
)

// Config is the full operator-supplied input for one federation. It is
// immutable once validated; every resource the provisioner manages derives
// its identity from these fields.
type Config struct {
	// ID of the Google cloud project the federation is provisioned in.
	ProjectId string `yaml:"project"`

	// Account id of the service account the CI workflow impersonates.
	ServiceAccountName string `yaml:"serviceAccount"`

	// GitHub repository, in "owner/repo" form, that is trusted to assume
	// the federated identity. No other repository may assume it.
	Repo string `yaml:"repo"`

	// ID of the workload identity pool.
	PoolId string `yaml:"pool"`

	// ID of the OIDC provider attached to the pool.
	ProviderId string `yaml:"provider"`

	// GitHub organization owning the repository. When set it must match the
	// owner half of Repo and is additionally pinned in the trust condition.
	Organization string `yaml:"organization"`

	// Project role granted to the repository's principal set.
	Role string `yaml:"role"`

	// Optional remote state location.
	StateBucket string `yaml:"stateBucket"`
	StatePrefix string `yaml:"statePrefix"`
}

// LoadConfigFile reads a Config from a YAML file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file '%s'", path)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration file '%s'", path)
	}
	return cfg, nil
}

// RepoOwner returns the owner half of the configured repository.
func (c *Config) RepoOwner() string {
	owner, _, _ := strings.Cut(c.Repo, "/")
	return owner
}

// Validate checks every operator input before any cloud API call is made.
func (c *Config) Validate() error {
	if c.ProjectId == "" {
		return gcp.NewConfigurationError("project is required")
	}
	if !projectIdRE.MatchString(c.ProjectId) {
		return gcp.NewConfigurationError("project '%s' is not a valid project id", c.ProjectId)
	}
	if c.ServiceAccountName == "" {
		return gcp.NewConfigurationError("serviceAccount is required")
	}
	if !accountIdRE.MatchString(c.ServiceAccountName) {
		return gcp.NewConfigurationError(
			"serviceAccount '%s' must be 6-30 characters of lowercase letters, digits and hyphens",
			c.ServiceAccountName)
	}
	if c.Repo == "" {
		return gcp.NewConfigurationError("repo is required")
	}
	if !repoRE.MatchString(c.Repo) {
		return gcp.NewConfigurationError("repo '%s' must be in 'owner/repo' form", c.Repo)
	}
	if c.PoolId == "" {
		return gcp.NewConfigurationError("pool is required")
	}
	if !wifIdRE.MatchString(c.PoolId) || strings.HasPrefix(c.PoolId, "gcp-") {
		return gcp.NewConfigurationError("pool '%s' is not a valid workload identity pool id", c.PoolId)
	}
	if c.ProviderId == "" {
		return gcp.NewConfigurationError("provider is required")
	}
	if !wifIdRE.MatchString(c.ProviderId) || strings.HasPrefix(c.ProviderId, "gcp-") {
		return gcp.NewConfigurationError("provider '%s' is not a valid identity provider id", c.ProviderId)
	}
	if c.Organization == "" {
		return gcp.NewConfigurationError("organization is required")
	}
	if c.Organization != c.RepoOwner() {
		return gcp.NewConfigurationError(
			"organization '%s' does not match the owner of repo '%s'", c.Organization, c.Repo)
	}
	if c.Role == "" {
		return gcp.NewConfigurationError("role is required")
	}
	if !roleRE.MatchString(c.Role) {
		return gcp.NewConfigurationError(
			"role '%s' must be 'roles/{id}' or 'projects/{project}/roles/{id}'", c.Role)
	}
	if (c.StateBucket == "") != (c.StatePrefix == "") {
		return gcp.NewConfigurationError("stateBucket and statePrefix must be set together")
	}
	return nil
}
