package gateway

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var managementAPIContract []byte

// ResponseValidator checks management API responses against the embedded
// API contract, so a gateway that answers 200 with a malformed catalog
// still fails verification.
type ResponseValidator struct {
	router routers.Router
}

// NewResponseValidator loads and validates the embedded contract.
func NewResponseValidator() (*ResponseValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(managementAPIContract)
	if err != nil {
		return nil, fmt.Errorf("failed to load API contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("embedded API contract is invalid: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build contract router: %w", err)
	}
	return &ResponseValidator{router: router}, nil
}

// Validate checks a response against the contract. The URL may carry the
// management API base path (e.g. /maas-api/v1/models): the contract declares
// its paths from /v1, so routing retries with the contract-relative tail.
// Paths the contract does not describe pass unchecked: the contract covers
// the management API, not every inference route a scenario might poke.
func (v *ResponseValidator) Validate(ctx context.Context, method, rawURL string, resp *Response) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(nil))
	if err != nil {
		return err
	}

	route, pathParams, err := v.router.FindRoute(req)
	if errors.Is(err, routers.ErrPathNotFound) {
		if idx := strings.Index(req.URL.Path, "/v1/"); idx > 0 {
			trimmed := *req.URL
			trimmed.Path = req.URL.Path[idx:]
			req.URL = &trimmed
			route, pathParams, err = v.router.FindRoute(req)
		}
	}
	if err != nil {
		if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
			return nil
		}
		return fmt.Errorf("failed to match %s %s against contract: %w", method, rawURL, err)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		},
		Status: resp.Status,
		Header: resp.Header,
	}
	input.SetBodyBytes(resp.Body)

	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		return fmt.Errorf("response for %s %s violates API contract: %w", method, rawURL, err)
	}
	return nil
}
