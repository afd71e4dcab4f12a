package federation

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gcp-wif/wifctl/pkg/gcp"
)

var _ = Describe("Service account reconciliation", func() {
	var (
		ctx      context.Context
		cfg      *Config
		fake     *fakeClient
		r        *reconciler
		resource string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = testConfig()
		fake = newFakeClient(cfg.ProjectId, testProjectNumber)
		r = &reconciler{cfg: cfg, client: fake, projectNumber: testProjectNumber}
		resource = gcp.FmtSaResourceId(cfg.ServiceAccountName, cfg.ProjectId)
	})

	It("creates the account and grants federated access", func() {
		actions, err := r.ensureServiceAccount(ctx, testLogger(), true)
		Expect(err).ToNot(HaveOccurred())
		Expect(actions).To(ConsistOf(
			"create service account github-actions-ci",
			"grant roles/iam.workloadIdentityUser to "+
				PrincipalSet(testProjectNumber, cfg.PoolId, cfg.Repo),
		))

		Expect(fake.serviceAccounts).To(HaveKey(resource))
		principal := gcp.PolicyMember(PrincipalSet(testProjectNumber, cfg.PoolId, cfg.Repo))
		Expect(fake.saPolicies[resource]).ToNot(BeNil())
		policy := gcp.NewPolicy(fake.saPolicies[resource], resource)
		Expect(policy.HasRole(principal, "roles/iam.workloadIdentityUser")).To(BeTrue())
	})

	It("is a no-op on a second run", func() {
		_, err := r.ensureServiceAccount(ctx, testLogger(), true)
		Expect(err).ToNot(HaveOccurred())

		actions, err := r.ensureServiceAccount(ctx, testLogger(), true)
		Expect(err).ToNot(HaveOccurred())
		Expect(actions).To(BeEmpty())
		Expect(fake.setSaPolicyCalls).To(Equal(1))
	})

	It("re-enables a disabled account", func() {
		_, err := r.ensureServiceAccount(ctx, testLogger(), true)
		Expect(err).ToNot(HaveOccurred())
		fake.serviceAccounts[resource].Disabled = true

		actions, err := r.ensureServiceAccount(ctx, testLogger(), true)
		Expect(err).ToNot(HaveOccurred())
		Expect(actions).To(ConsistOf("re-enable service account github-actions-ci"))
		Expect(fake.serviceAccounts[resource].Disabled).To(BeFalse())
	})

	It("reports the pending create and grant without applying", func() {
		actions, err := r.ensureServiceAccount(ctx, testLogger(), false)
		Expect(err).ToNot(HaveOccurred())
		Expect(actions).To(ConsistOf(
			"create service account github-actions-ci",
			"grant roles/iam.workloadIdentityUser to the repository principal set",
		))
		Expect(fake.serviceAccounts).To(BeEmpty())
		Expect(fake.setSaPolicyCalls).To(BeZero())
	})

	It("tolerates a missing account on delete when allowed", func() {
		Expect(r.deleteServiceAccount(ctx, testLogger(), true)).To(Succeed())
	})
})
