package gateway_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maas-gateway-verifier/pkg/gateway"
)

func jsonResponse(status int, body string) *gateway.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &gateway.Response{Status: status, Header: header, Body: []byte(body)}
}

func TestValidate_WellFormedCatalogPasses(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodGet, "https://gw.example/v1/models",
		jsonResponse(200, `{"data": [{"id": "qwen", "ready": true}]}`))
	assert.NoError(t, err)
}

func TestValidate_MalformedCatalogFails(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	// Model entries require an id.
	err = v.Validate(context.Background(), http.MethodGet, "https://gw.example/v1/models",
		jsonResponse(200, `{"data": [{"ready": true}]}`))
	assert.Error(t, err)
}

func TestValidate_TokenResponse(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodPost, "https://gw.example/v1/tokens",
		jsonResponse(200, `{"token": "abc"}`))
	assert.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodPost, "https://gw.example/v1/tokens",
		jsonResponse(200, `{"nope": true}`))
	assert.Error(t, err)
}

func TestValidate_BasePathPrefixedURL(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	// The management API mounts the contract under a base path; routing
	// must still reach the /v1 operations behind it.
	err = v.Validate(context.Background(), http.MethodGet, "https://gw.example/maas-api/v1/models",
		jsonResponse(200, `{"data": [{"id": "qwen", "ready": true}]}`))
	assert.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodGet, "https://gw.example/maas-api/v1/models",
		jsonResponse(200, `{"data": [{"ready": true}]}`))
	assert.Error(t, err, "a contract violation behind the base path must not pass unchecked")
}

func TestValidate_UncoveredPathPasses(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodPost, "https://gw.example/simulator/v1/chat/completions",
		jsonResponse(200, `whatever`))
	assert.NoError(t, err)
}

func TestValidate_ErrorStatusesPassThroughDefault(t *testing.T) {
	v, err := gateway.NewResponseValidator()
	require.NoError(t, err)

	err = v.Validate(context.Background(), http.MethodGet, "https://gw.example/v1/models",
		jsonResponse(401, `{"error": "unauthenticated"}`))
	assert.NoError(t, err)
}
