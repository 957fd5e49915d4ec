package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"maas-gateway-verifier/pkg/verify/poll"
)

// APIKey is a long-lived credential issued by the management API.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`

	// Secret is only populated on creation; listings never return it.
	Secret string `json:"key,omitempty"`
}

// CreateAPIKey issues a new API key named name for the token's identity.
func (c *Client) CreateAPIKey(ctx context.Context, token, name string) (*APIKey, error) {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	resp, err := c.DoAPI(ctx, Request{Path: "/v1/api-keys", Token: token, Payload: payload})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusCreated && resp.Status != http.StatusOK {
		return nil, &UnexpectedStatusError{Operation: "create api key", Status: resp.Status, Body: resp.Body}
	}

	var key APIKey
	if err := resp.JSON(&key); err != nil {
		return nil, err
	}
	if key.Secret == "" {
		return nil, fmt.Errorf("api key creation returned no secret")
	}
	return &key, nil
}

// ListAPIKeys returns the identity's keys, secrets omitted.
func (c *Client) ListAPIKeys(ctx context.Context, token string) ([]APIKey, error) {
	resp, err := c.DoAPI(ctx, Request{Path: "/v1/api-keys", Token: token})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, &UnexpectedStatusError{Operation: "list api keys", Status: resp.Status, Body: resp.Body}
	}

	var envelope struct {
		Data []APIKey `json:"data"`
		Keys []APIKey `json:"keys"`
	}
	if err := resp.JSON(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Keys, nil
}

// RevokeAPIKey deletes the key. Revoking an already revoked key succeeds.
func (c *Client) RevokeAPIKey(ctx context.Context, token, id string) error {
	resp, err := c.DoAPI(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/v1/api-keys/" + id,
		Token:  token,
	})
	if err != nil {
		return err
	}
	switch resp.Status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return &UnexpectedStatusError{Operation: "revoke api key", Status: resp.Status, Body: resp.Body}
	}
}

// APIKeyProbe observes whether the key is currently honored, for polling
// key activation and revocation propagation. The key authenticates a
// catalog read; the observation is the HTTP status.
func (c *Client) APIKeyProbe(secret string) poll.Probe[int] {
	return func(ctx context.Context) (int, error) {
		resp, err := c.DoAPI(ctx, Request{Path: "/v1/models", Token: secret})
		if err != nil {
			return 0, poll.Transient(err)
		}
		return resp.Status, nil
	}
}
