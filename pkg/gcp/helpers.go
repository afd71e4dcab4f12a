package gcp

import (
	"fmt"
	"strings"
)

// FmtSaResourceId formats the fully-qualified resource name of a service
// account from its account id and project.
func FmtSaResourceId(accountId, projectId string) string {
	return fmt.Sprintf("projects/%s/serviceAccounts/%s", projectId, FmtSaEmail(accountId, projectId))
}

// FmtSaEmail formats the email address of a project service account.
func FmtSaEmail(accountId, projectId string) string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", accountId, projectId)
}

// extractSaEmail returns the email portion of a service account resource id,
// or the empty string if the id is not in the expected form.
func extractSaEmail(saResourceId string) string {
	parts := strings.SplitAfter(saResourceId, "/serviceAccounts/")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
