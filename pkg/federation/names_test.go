package federation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Attribute condition", func() {
	It("pins the exact repository in quotes", func() {
		condition := AttributeCondition("acme/widgets", "")
		Expect(condition).To(Equal(`assertion.repository == "acme/widgets"`))
	})

	It("additionally pins the owning organization when configured", func() {
		condition := AttributeCondition("acme/widgets", "acme")
		Expect(condition).To(Equal(
			`assertion.repository == "acme/widgets" && assertion.repository_owner == "acme"`))
	})

	Describe("validation", func() {
		It("accepts the generated condition", func() {
			condition := AttributeCondition("acme/widgets", "acme")
			Expect(ValidateAttributeCondition(condition, "acme/widgets")).To(Succeed())
		})

		DescribeTable("rejects conditions that widen trust",
			func(condition, repo, fragment string) {
				err := ValidateAttributeCondition(condition, repo)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(fragment))
			},
			Entry("empty repository",
				`assertion.repository == ""`, "", "repo must not be empty"),
			Entry("empty condition",
				"", "acme/widgets", "must not be empty"),
			Entry("condition not referencing the repository claim",
				`assertion.actor == "octocat"`, "acme/widgets", "does not reference assertion.repository"),
			Entry("condition pinning a different repository",
				`assertion.repository == "acme/gadgets"`, "acme/widgets", "does not pin repository"),
			Entry("repository present but unquoted",
				`assertion.repository.startsWith("acme")`, "acme/widgets", "does not pin repository"),
		)
	})
})

var _ = Describe("Resource names", func() {
	It("formats the pool resource", func() {
		Expect(PoolResource("acme-ci-project", "github-pool")).To(Equal(
			"projects/acme-ci-project/locations/global/workloadIdentityPools/github-pool"))
	})

	It("formats the provider resource consumed as workload_identity_provider", func() {
		Expect(ProviderResource("acme-ci-project", "github-pool", "github-provider")).To(Equal(
			"projects/acme-ci-project/locations/global/workloadIdentityPools/github-pool/providers/github-provider"))
	})

	It("addresses the principal set by project number", func() {
		Expect(PrincipalSet(123456789, "github-pool", "acme/widgets")).To(Equal(
			"principalSet://iam.googleapis.com/projects/123456789/locations/global" +
				"/workloadIdentityPools/github-pool/attribute.repository/acme/widgets"))
	})
})

var _ = Describe("Attribute mapping", func() {
	It("maps the subject and the audit attributes", func() {
		mapping := AttributeMapping()
		Expect(mapping).To(HaveKeyWithValue("google.subject", "assertion.sub"))
		Expect(mapping).To(HaveKeyWithValue("attribute.repository", "assertion.repository"))
		Expect(mapping).To(HaveKeyWithValue("attribute.repository_owner", "assertion.repository_owner"))
		Expect(mapping).To(HaveKeyWithValue("attribute.actor", "assertion.actor"))
	})
})
