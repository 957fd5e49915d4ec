package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// Model is one entry of the model catalog.
type Model struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Ready bool   `json:"ready"`
}

// DisplayName prefers the human name and falls back to the ID.
func (m Model) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// ListModels fetches the model catalog from the management API. The catalog
// endpoint has served its list under both a "data" key (OpenAI style) and a
// "models" key across versions; both shapes are accepted.
func (c *Client) ListModels(ctx context.Context, token string) ([]Model, *Response, error) {
	resp, err := c.DoAPI(ctx, Request{Path: "/v1/models", Token: token})
	if err != nil {
		return nil, nil, err
	}
	if resp.Status != 200 {
		return nil, resp, &UnexpectedStatusError{
			Operation: "list models",
			Status:    resp.Status,
			Body:      resp.Body,
		}
	}

	models, err := decodeModelList(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return models, resp, nil
}

func decodeModelList(body []byte) ([]Model, error) {
	var envelope struct {
		Data   []Model `json:"data"`
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// A bare array is also accepted.
		var bare []Model
		if bareErr := json.Unmarshal(body, &bare); bareErr == nil {
			return bare, nil
		}
		return nil, fmt.Errorf("failed to decode model catalog: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	if envelope.Models != nil {
		return envelope.Models, nil
	}
	return []Model{}, nil
}

// FindModel returns the catalog entry whose ID or name matches ref, or nil.
func FindModel(models []Model, ref string) *Model {
	for i := range models {
		if models[i].ID == ref || models[i].Name == ref {
			return &models[i]
		}
	}
	return nil
}

// UnexpectedStatusError reports a management API call that answered with a
// status the operation cannot proceed from.
type UnexpectedStatusError struct {
	Operation string
	Status    int
	Body      []byte
}

func (e *UnexpectedStatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("%s returned %d: %s", e.Operation, e.Status, body)
}
