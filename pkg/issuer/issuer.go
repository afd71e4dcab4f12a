// Package issuer inspects an OIDC issuer's published metadata. The verify
// command uses it to check that the deployed provider still points at the
// GitHub Actions token endpoint and that the endpoint is serving keys.
package issuer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/MicahParks/jwkset"
	"github.com/pkg/errors"
)

// Metadata is the subset of the OIDC discovery document this tool consumes.
type Metadata struct {
	Issuer  string `json:"issuer"`
	JwksUri string `json:"jwks_uri"`
}

type Client struct {
	httpClient *http.Client
}

// NewClient builds an issuer client. A nil httpClient falls back to
// http.DefaultClient.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Discover fetches the issuer's OIDC discovery document.
func (c *Client) Discover(ctx context.Context, issuerUri string) (*Metadata, error) {
	url := strings.TrimSuffix(issuerUri, "/") + "/.well-known/openid-configuration"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch discovery document from '%s'", url)
	}
	metadata := &Metadata{}
	if err := json.Unmarshal(body, metadata); err != nil {
		return nil, errors.Wrapf(err, "failed to parse discovery document from '%s'", url)
	}
	if metadata.Issuer == "" || metadata.JwksUri == "" {
		return nil, errors.Errorf("discovery document from '%s' is missing issuer or jwks_uri", url)
	}
	return metadata, nil
}

// Keys fetches and parses the issuer's JWKS. An issuer serving an empty key
// set cannot have its tokens validated.
func (c *Client) Keys(ctx context.Context, jwksUri string) (*jwkset.JWKSMarshal, error) {
	body, err := c.get(ctx, jwksUri)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch JWKS from '%s'", jwksUri)
	}
	jwks := &jwkset.JWKSMarshal{}
	if err := json.Unmarshal(body, jwks); err != nil {
		return nil, errors.Wrapf(err, "failed to parse JWKS from '%s'", jwksUri)
	}
	if len(jwks.Keys) == 0 {
		return nil, errors.Errorf("JWKS from '%s' contains no keys", jwksUri)
	}
	return jwks, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", response.Status)
	}
	return io.ReadAll(response.Body)
}

// JwksEqual checks if two string parameters represent equal json web key
// sets. false is returned if the two jwks do not have equivalent values, or
// if there is an error processing the expected fields of either parameter.
func JwksEqual(jwksStrA, jwksStrB string) bool {
	var jwksA, jwksB jwkset.JWKSMarshal

	if err := json.Unmarshal(json.RawMessage(jwksStrA), &jwksA); err != nil {
		return false
	}
	if err := json.Unmarshal(json.RawMessage(jwksStrB), &jwksB); err != nil {
		return false
	}

	return reflect.DeepEqual(jwksA, jwksB)
}
