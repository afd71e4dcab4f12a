package federation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

// Node names of the resource graph, in apply order.
const (
	NodeAPIs           = "required-apis"
	NodePool           = "workload-identity-pool"
	NodeProvider       = "oidc-provider"
	NodeServiceAccount = "service-account"
	NodeRoleBinding    = "role-binding"
)

// NodeStatus is the terminal state of one graph node after a run.
type NodeStatus string

const (
	StatusUnchanged NodeStatus = "unchanged"
	StatusApplied   NodeStatus = "applied"
	StatusPending   NodeStatus = "pending"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
)

// NodeResult reports what happened to one node.
type NodeResult struct {
	Name    string
	Status  NodeStatus
	Actions []string
	Err     error
}

// Outputs are the resource identifiers produced by a successful apply.
// WorkloadIdentityProvider is the single output the CI workflow's
// authentication step consumes.
type Outputs struct {
	WorkloadIdentityPool     string
	WorkloadIdentityProvider string
	ServiceAccountEmail      string
	PrincipalSet             string
	ProjectNumber            int64
}

// reconciler carries the validated configuration and the resolved project
// number through the per-resource ensure methods.
type reconciler struct {
	cfg           *Config
	client        gcp.Client
	projectNumber int64
}

// Provisioner applies the federation resource graph to a project. Writes to
// the same project are serialized: concurrent mutation of one project's IAM
// state is not assumed safe.
type Provisioner struct {
	cfg    *Config
	client gcp.Client
}

func NewProvisioner(cfg *Config, client gcp.Client) *Provisioner {
	return &Provisioner{cfg: cfg, client: client}
}

var projectLocks sync.Map

func lockProject(projectId string) func() {
	value, _ := projectLocks.LoadOrStore(projectId, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type node struct {
	name string
	deps []string
	run  func(ctx context.Context, log *log.Logger, apply bool) ([]string, error)
}

// nodes returns the resource graph in topological order. The dependency list
// is explicit so the ordering stays auditable.
func (r *reconciler) nodes() []node {
	return []node{
		{name: NodeAPIs, run: r.ensureEnabledAPIs},
		{name: NodePool, deps: []string{NodeAPIs}, run: r.ensurePool},
		{name: NodeProvider, deps: []string{NodePool}, run: r.ensureProvider},
		{name: NodeServiceAccount, deps: []string{NodeAPIs, NodePool}, run: r.ensureServiceAccount},
		{name: NodeRoleBinding, deps: []string{NodeAPIs, NodePool}, run: r.ensureRoleBinding},
	}
}

// Apply reconciles every node of the graph against the project. A failing
// node halts its dependents; nodes already applied are left committed and are
// reconciled again on the next run.
func (p *Provisioner) Apply(ctx context.Context, log *log.Logger) (*Outputs, []NodeResult, error) {
	return p.run(ctx, log, true)
}

// Plan computes the actions an apply would take without mutating any cloud
// resource.
func (p *Provisioner) Plan(ctx context.Context, log *log.Logger) (*Outputs, []NodeResult, error) {
	return p.run(ctx, log, false)
}

func (p *Provisioner) run(ctx context.Context, log *log.Logger, apply bool) (*Outputs, []NodeResult, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	unlock := lockProject(p.cfg.ProjectId)
	defer unlock()

	// Resolving the project number doubles as the access check: a caller
	// without rights on the project fails here, before any resource is
	// touched, so a denied apply leaves no partial pool behind.
	projectNumber, err := p.client.ProjectNumberFromId(ctx, p.cfg.ProjectId)
	if err != nil {
		return nil, nil, errors.Wrapf(
			gcp.Classify(fmt.Sprintf("projects/%s", p.cfg.ProjectId), err),
			"failed to resolve project '%s'", p.cfg.ProjectId)
	}

	r := &reconciler{cfg: p.cfg, client: p.client, projectNumber: projectNumber}

	var firstErr error
	done := map[string]bool{}
	failed := map[string]bool{}
	var results []NodeResult

	for _, n := range p.orderedNodes(r) {
		if blockedBy := blockingDep(n, done, failed); blockedBy != "" {
			results = append(results, NodeResult{
				Name:   n.name,
				Status: StatusSkipped,
				Err:    errors.Errorf("dependency '%s' was not applied", blockedBy),
			})
			continue
		}
		actions, err := n.run(ctx, log, apply)
		result := NodeResult{Name: n.name, Actions: actions}
		switch {
		case err != nil:
			result.Status = StatusFailed
			result.Err = err
			failed[n.name] = true
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "failed to reconcile '%s'", n.name)
			}
		case len(actions) == 0:
			result.Status = StatusUnchanged
			done[n.name] = true
		case apply:
			result.Status = StatusApplied
			done[n.name] = true
		default:
			result.Status = StatusPending
			done[n.name] = true
		}
		results = append(results, result)
	}

	if firstErr != nil {
		return nil, results, firstErr
	}
	return p.outputs(projectNumber), results, nil
}

// orderedNodes verifies the declared dependencies are satisfiable in the
// listed order. The list is authored topologically; this is a guard against
// edits that would break it.
func (p *Provisioner) orderedNodes(r *reconciler) []node {
	all := r.nodes()
	seen := map[string]bool{}
	for _, n := range all {
		for _, dep := range n.deps {
			if !seen[dep] {
				panic(fmt.Sprintf("node '%s' depends on '%s' which is not ordered before it", n.name, dep))
			}
		}
		seen[n.name] = true
	}
	return all
}

func blockingDep(n node, done, failed map[string]bool) string {
	for _, dep := range n.deps {
		if failed[dep] || !done[dep] {
			return dep
		}
	}
	return ""
}

// outputs formats the resource names consumers see. The STS exchange behind
// the CI authentication step addresses pools and providers by project number,
// so the emitted names use the number form, like PrincipalSet does.
func (p *Provisioner) outputs(projectNumber int64) *Outputs {
	project := strconv.FormatInt(projectNumber, 10)
	return &Outputs{
		WorkloadIdentityPool:     PoolResource(project, p.cfg.PoolId),
		WorkloadIdentityProvider: ProviderResource(project, p.cfg.PoolId, p.cfg.ProviderId),
		ServiceAccountEmail:      gcp.FmtSaEmail(p.cfg.ServiceAccountName, p.cfg.ProjectId),
		PrincipalSet:             PrincipalSet(projectNumber, p.cfg.PoolId, p.cfg.Repo),
		ProjectNumber:            projectNumber,
	}
}

// Destroy tears the federation down: the role binding and the service
// account grant go first, then the provider and the pool are soft-deleted.
// Service APIs stay enabled; disabling a shared API is not safe to automate.
func (p *Provisioner) Destroy(ctx context.Context, log *log.Logger, deleteServiceAccount bool) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	unlock := lockProject(p.cfg.ProjectId)
	defer unlock()

	projectNumber, err := p.client.ProjectNumberFromId(ctx, p.cfg.ProjectId)
	if err != nil {
		return errors.Wrapf(
			gcp.Classify(fmt.Sprintf("projects/%s", p.cfg.ProjectId), err),
			"failed to resolve project '%s'", p.cfg.ProjectId)
	}
	r := &reconciler{cfg: p.cfg, client: p.client, projectNumber: projectNumber}

	if err := r.removeRoleBinding(ctx, log); err != nil {
		return err
	}
	if deleteServiceAccount {
		if err := r.deleteServiceAccount(ctx, log, true); err != nil {
			return err
		}
	}
	if err := r.deleteProvider(ctx, log); err != nil {
		return err
	}
	return r.deletePool(ctx, log)
}
