package gcp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resource name helpers", func() {
	It("formats the service account resource id", func() {
		Expect(FmtSaResourceId("ci-runner", "test-project")).To(
			Equal("projects/test-project/serviceAccounts/ci-runner@test-project.iam.gserviceaccount.com"))
	})
	It("formats the service account email", func() {
		Expect(FmtSaEmail("ci-runner", "test-project")).To(
			Equal("ci-runner@test-project.iam.gserviceaccount.com"))
	})
	It("extracts the email from a resource id", func() {
		resourceId := FmtSaResourceId("ci-runner", "test-project")
		Expect(extractSaEmail(resourceId)).To(Equal("ci-runner@test-project.iam.gserviceaccount.com"))
	})
	It("returns the empty string for malformed resource ids", func() {
		Expect(extractSaEmail("not-a-resource-id")).To(BeEmpty())
	})
})
