package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SchemaRegistry is a minimal Confluent Schema Registry client: look up the
// latest version of a subject, register the schema if the subject is new.
type SchemaRegistry struct {
	baseURL string
	client  *http.Client
}

// NewSchemaRegistry constructs a registry client.
func NewSchemaRegistry(baseURL string) *SchemaRegistry {
	return &SchemaRegistry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the schema ID for a subject, registering the supplied
// JSON schema when the subject does not exist yet.
func (r *SchemaRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, ok, err := r.latestVersion(ctx, subject)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	return r.register(ctx, subject, schema)
}

func (r *SchemaRegistry) latestVersion(ctx context.Context, subject string) (int, bool, error) {
	url := fmt.Sprintf("%s/subjects/%s/versions/latest", r.baseURL, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, false, fmt.Errorf("schema registry lookup %s: %s", subject, body)
	}

	id, err := decodeSchemaID(resp.Body)
	return id, err == nil, err
}

func (r *SchemaRegistry) register(ctx context.Context, subject string, schema string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/subjects/%s/versions", r.baseURL, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("schema registry register %s: %s", subject, data)
	}

	return decodeSchemaID(resp.Body)
}

func decodeSchemaID(body io.Reader) (int, error) {
	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}
