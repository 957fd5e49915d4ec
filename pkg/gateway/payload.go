package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
)

// DefaultChatTemplate is the completion payload sent by scenarios that only
// care about the response status, kept small so rate limit scenarios burn a
// predictable token count per request.
const DefaultChatTemplate = `{
  "model": "{{ model_name }}",
  "messages": [{"role": "user", "content": "{{ prompt }}"}],
  "temperature": 0,
  "max_tokens": 16
}`

// PayloadTemplate renders request payloads from Jinja-style templates, so
// scenario payloads can be authored as fixtures with model names and
// prompts filled in at run time.
type PayloadTemplate struct {
	template *exec.Template
}

// NewPayloadTemplate parses the template text.
func NewPayloadTemplate(text string) (*PayloadTemplate, error) {
	tpl, err := gonja.FromString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload template: %w", err)
	}
	return &PayloadTemplate{template: tpl}, nil
}

// Render fills the template with vars and verifies the result is valid
// JSON, catching broken fixtures before they hit the gateway.
func (p *PayloadTemplate) Render(vars map[string]interface{}) ([]byte, error) {
	out, err := p.template.ExecuteToString(exec.NewContext(vars))
	if err != nil {
		return nil, fmt.Errorf("failed to render payload template: %w", err)
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("rendered payload is not valid JSON: %s", out)
	}
	return []byte(out), nil
}

// ChatPayload renders the default completion payload for a model.
func ChatPayload(modelName string) ([]byte, error) {
	tpl, err := NewPayloadTemplate(DefaultChatTemplate)
	if err != nil {
		return nil, err
	}
	return tpl.Render(map[string]interface{}{
		"model_name": modelName,
		"prompt":     "Hello",
	})
}
