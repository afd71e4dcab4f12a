package wif

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/gcp-wif/wifctl/pkg/federation"
	"github.com/gcp-wif/wifctl/pkg/gcp"
	"github.com/gcp-wif/wifctl/pkg/state"
)

// options captures the command line inputs shared by the federation
// subcommands. Flags override values read from the configuration file.
type options struct {
	ConfigFile           string
	Project              string
	ServiceAccount       string
	Repo                 string
	Pool                 string
	Provider             string
	Organization         string
	Role                 string
	StateBucket          string
	StatePrefix          string
	DeleteServiceAccount bool
}

func addConfigFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.ConfigFile, "config", "",
		"Path of a YAML file providing the configuration; flags override its values")
	fs.StringVar(&opts.Project, "project", "",
		"ID of the Google cloud project")
	fs.StringVar(&opts.ServiceAccount, "service-account", "",
		"Account id of the service account the CI workflow impersonates")
	fs.StringVar(&opts.Repo, "repo", "",
		"GitHub repository trusted to assume the identity, in 'owner/repo' form")
	fs.StringVar(&opts.Pool, "pool", "",
		"ID of the workload identity pool")
	fs.StringVar(&opts.Provider, "provider", "",
		"ID of the OIDC provider attached to the pool")
	fs.StringVar(&opts.Organization, "organization", "",
		"GitHub organization owning the repository")
	fs.StringVar(&opts.Role, "role", "",
		"Project role granted to the repository principal set, e.g. 'roles/artifactregistry.writer'")
	fs.StringVar(&opts.StateBucket, "state-bucket", "",
		"GCS bucket recording the last-applied state")
	fs.StringVar(&opts.StatePrefix, "state-prefix", "",
		"Object prefix of the state blob within the state bucket")
}

// resolve merges the configuration file with the flags and validates the
// result. Flags win over file values.
func (o *options) resolve() (*federation.Config, error) {
	cfg := &federation.Config{}
	if o.ConfigFile != "" {
		loaded, err := federation.LoadConfigFile(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	override(&cfg.ProjectId, o.Project)
	override(&cfg.ServiceAccountName, o.ServiceAccount)
	override(&cfg.Repo, o.Repo)
	override(&cfg.PoolId, o.Pool)
	override(&cfg.ProviderId, o.Provider)
	override(&cfg.Organization, o.Organization)
	override(&cfg.Role, o.Role)
	override(&cfg.StateBucket, o.StateBucket)
	override(&cfg.StatePrefix, o.StatePrefix)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func newStore(client gcp.Client, cfg *federation.Config) *state.Store {
	if cfg.StateBucket == "" {
		return nil
	}
	return state.NewStore(client.StorageClient(), cfg.StateBucket, cfg.StatePrefix)
}

// recordState persists the outputs of a successful apply, carrying forward
// the generation of the previously stored snapshot.
func recordState(
	ctx context.Context,
	store *state.Store,
	cfg *federation.Config,
	outputs *federation.Outputs,
) error {
	if store == nil {
		return nil
	}
	_, err := store.Update(ctx, func(prev *state.Snapshot) *state.Snapshot {
		return state.NewSnapshot(cfg, outputs)
	})
	return errors.Wrap(err, "failed to record applied state")
}
