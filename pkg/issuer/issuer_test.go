package issuer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testJwks = `{
	"keys": [
		{
			"kty": "RSA",
			"kid": "cc413527-173f-5a05-976e-9c52b1d7b431",
			"use": "sig",
			"alg": "RS256",
			"n": "1Zs_2cWFWjDsDRjzn28sFZ75cyPHKSiHzF4y1RXSBYdNO32FGpvY_ei_P62gHXkNhcO89xqSWEJsRSMQRGbWrGZoBIUxFFYK16A7ao9qzRXC9h9aQurdboW7yL9RnSqRmOfVoyU1OT0ef7yBYxxcK9q2tqAzCkyeVkYtzhxR0mE-ffmyKTM1DUNFirAoomjeYy1qdMaC2FmwSVCiymeOveOAKOFDHrS5pyTAA3DUYh8QpnUp_dBr0VhdgYzvZVfoVs8WXSWBCaB05szWjZJtaq7fDqoBCFaQrZ3MoNT0nZUJJPDACVgYh6egAWrmCZK-PNtdgLiXQUSgmRb1w3YPqQ",
			"e": "AQAB"
		}
	]
}`

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		server *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux := http.NewServeMux()
		mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"issuer": %q, "jwks_uri": %q}`, server.URL, server.URL+"/.well-known/jwks")
		})
		mux.HandleFunc("/.well-known/jwks", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, testJwks)
		})
		mux.HandleFunc("/empty-jwks", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"keys": []}`)
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	Describe("Discover", func() {
		It("fetches the discovery document", func() {
			metadata, err := NewClient(server.Client()).Discover(ctx, server.URL)
			Expect(err).ToNot(HaveOccurred())
			Expect(metadata.Issuer).To(Equal(server.URL))
			Expect(metadata.JwksUri).To(Equal(server.URL + "/.well-known/jwks"))
		})

		It("tolerates a trailing slash on the issuer", func() {
			metadata, err := NewClient(server.Client()).Discover(ctx, server.URL+"/")
			Expect(err).ToNot(HaveOccurred())
			Expect(metadata.Issuer).To(Equal(server.URL))
		})

		It("fails when the issuer does not serve a discovery document", func() {
			_, err := NewClient(server.Client()).Discover(ctx, server.URL+"/nowhere")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Keys", func() {
		It("parses the served JWKS", func() {
			jwks, err := NewClient(server.Client()).Keys(ctx, server.URL+"/.well-known/jwks")
			Expect(err).ToNot(HaveOccurred())
			Expect(jwks.Keys).To(HaveLen(1))
			Expect(jwks.Keys[0].KID).To(Equal("cc413527-173f-5a05-976e-9c52b1d7b431"))
		})

		It("rejects an empty key set", func() {
			_, err := NewClient(server.Client()).Keys(ctx, server.URL+"/empty-jwks")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("contains no keys"))
		})
	})
})

var _ = Describe("JwksEqual", func() {
	DescribeTable("compares two key sets",
		func(a, b string, expected bool) {
			Expect(JwksEqual(a, b)).To(Equal(expected))
		},
		Entry("identical documents", testJwks, testJwks, true),
		Entry("same keys, different whitespace", testJwks, `{"keys":[{"kty":"RSA","kid":"cc413527-173f-5a05-976e-9c52b1d7b431","use":"sig","alg":"RS256","n":"1Zs_2cWFWjDsDRjzn28sFZ75cyPHKSiHzF4y1RXSBYdNO32FGpvY_ei_P62gHXkNhcO89xqSWEJsRSMQRGbWrGZoBIUxFFYK16A7ao9qzRXC9h9aQurdboW7yL9RnSqRmOfVoyU1OT0ef7yBYxxcK9q2tqAzCkyeVkYtzhxR0mE-ffmyKTM1DUNFirAoomjeYy1qdMaC2FmwSVCiymeOveOAKOFDHrS5pyTAA3DUYh8QpnUp_dBr0VhdgYzvZVfoVs8WXSWBCaB05szWjZJtaq7fDqoBCFaQrZ3MoNT0nZUJJPDACVgYh6egAWrmCZK-PNtdgLiXQUSgmRb1w3YPqQ","e":"AQAB"}]}`, true),
		Entry("different key ids", testJwks, `{"keys":[{"kty":"RSA","kid":"other","use":"sig","alg":"RS256","n":"abc","e":"AQAB"}]}`, false),
		Entry("empty against populated", `{"keys":[]}`, testJwks, false),
		Entry("malformed document", `{"keys": [`, testJwks, false),
	)
})
