package wif

import (
	"encoding/json"

	"github.com/MicahParks/jwkset"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	iamv1 "google.golang.org/api/iam/v1"

	"github.com/gcp-wif/wifctl/pkg/federation"
)

var _ = Describe("checkDeployedProvider", func() {
	const (
		resource = "projects/acme-ci-project/locations/global/workloadIdentityPools/github-pool/providers/github-provider"
		repo     = "acme/widgets"
	)

	goodProvider := func() *iamv1.WorkloadIdentityPoolProvider {
		return &iamv1.WorkloadIdentityPoolProvider{
			Name:               resource,
			State:              "ACTIVE",
			AttributeCondition: federation.AttributeCondition(repo, "acme"),
			Oidc:               &iamv1.Oidc{IssuerUri: federation.GitHubIssuerURI},
		}
	}

	It("accepts a correctly deployed provider", func() {
		Expect(checkDeployedProvider(goodProvider(), resource, repo)).To(Succeed())
	})

	It("rejects an inactive provider", func() {
		provider := goodProvider()
		provider.State = "DELETED"
		err := checkDeployedProvider(provider, resource, repo)
		Expect(err).To(MatchError(ContainSubstring("not active")))
	})

	It("rejects a disabled provider", func() {
		provider := goodProvider()
		provider.Disabled = true
		err := checkDeployedProvider(provider, resource, repo)
		Expect(err).To(MatchError(ContainSubstring("not active")))
	})

	It("rejects a provider bound to a different issuer", func() {
		provider := goodProvider()
		provider.Oidc.IssuerUri = "https://gitlab.example.com"
		err := checkDeployedProvider(provider, resource, repo)
		Expect(err).To(MatchError(ContainSubstring("not bound to the GitHub Actions issuer")))
	})

	It("rejects a provider whose condition no longer pins the repository", func() {
		provider := goodProvider()
		provider.AttributeCondition = `assertion.repository_owner == "acme"`
		err := checkDeployedProvider(provider, resource, repo)
		Expect(err).To(MatchError(ContainSubstring("does not restrict trust")))
	})
})

var _ = Describe("pinnedJwksMatches", func() {
	const servedJwks = `{"keys":[{"kty":"RSA","kid":"cc413527-173f-5a05-976e-9c52b1d7b431",` +
		`"use":"sig","alg":"RS256","n":"u07aLLRaSQ","e":"AQAB"}]}`

	fetched := func(raw string) *jwkset.JWKSMarshal {
		jwks := &jwkset.JWKSMarshal{}
		Expect(json.Unmarshal([]byte(raw), jwks)).To(Succeed())
		return jwks
	}

	It("matches a pinned set equal to the served keys", func() {
		matches, err := pinnedJwksMatches(servedJwks, fetched(servedJwks))
		Expect(err).ToNot(HaveOccurred())
		Expect(matches).To(BeTrue())
	})

	It("detects a pinned set that fell behind a key rotation", func() {
		stale := `{"keys":[{"kty":"RSA","kid":"rotated-out","use":"sig",` +
			`"alg":"RS256","n":"u07aLLRaSQ","e":"AQAB"}]}`
		matches, err := pinnedJwksMatches(stale, fetched(servedJwks))
		Expect(err).ToNot(HaveOccurred())
		Expect(matches).To(BeFalse())
	})

	It("treats a malformed pinned document as a mismatch", func() {
		matches, err := pinnedJwksMatches(`{"keys": [`, fetched(servedJwks))
		Expect(err).ToNot(HaveOccurred())
		Expect(matches).To(BeFalse())
	})
})
