package federation

import (
	"context"
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

// ensureEnabledAPIs enables every missing required service on the project,
// one service at a time. A failure reports the service that failed; services
// enabled before it stay enabled, since extra enabled APIs are harmless and
// the next run picks up where this one stopped.
func (r *reconciler) ensureEnabledAPIs(
	ctx context.Context,
	log *log.Logger,
	apply bool,
) ([]string, error) {
	enabled, err := r.client.ListEnabledServices(ctx, r.cfg.ProjectId)
	if err != nil {
		return nil, errors.Wrapf(
			gcp.Classify(fmt.Sprintf("projects/%s", r.cfg.ProjectId), err),
			"failed to list enabled services of project '%s'", r.cfg.ProjectId)
	}
	enabledSet := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		enabledSet[name] = true
	}

	var actions []string
	for _, name := range RequiredServices {
		if enabledSet[name] {
			continue
		}
		actions = append(actions, fmt.Sprintf("enable API %s", name))
		if !apply {
			continue
		}
		if err := r.client.EnableService(ctx, r.cfg.ProjectId, name); err != nil {
			return actions, errors.Wrapf(
				gcp.Classify(fmt.Sprintf("projects/%s/services/%s", r.cfg.ProjectId, name), err),
				"failed to enable API '%s'", name)
		}
		log.Printf("Service API '%s' has been enabled", name)
	}
	return actions, nil
}
