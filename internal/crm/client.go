package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Contact is the subset of the CRM contact we care about.
type Contact struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Tags      []string `json:"tags"`
}

// Client is the outbound CRM surface the reconciliation core depends on.
// Every call is a network call with its own failure modes; callers treat
// all of them as fallible and never let a failure block a webhook response.
type Client interface {
	GetContact(ctx context.Context, contactID string) (*Contact, error)
	AddTag(ctx context.Context, contactID, tag string) error
	RemoveTag(ctx context.Context, contactID, tag string) error
	TriggerWorkflow(ctx context.Context, contactID, workflowName string) error
	UpdateCustomField(ctx context.Context, contactID, key, value string) error
}

type httpClient struct {
	base   string
	apiKey string
	http   *http.Client
	log    *zap.Logger
}

// NewHTTPClient talks to the GoHighLevel REST API.
func NewHTTPClient(base, apiKey string, log *zap.Logger) Client {
	return &httpClient{
		base:   base,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log.With(zap.String("client", "crm")),
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}

	return nil
}

func (c *httpClient) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	var wrapper struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/"+contactID, nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Contact, nil
}

func (c *httpClient) AddTag(ctx context.Context, contactID, tag string) error {
	body := map[string][]string{"tags": {tag}}
	return c.do(ctx, http.MethodPost, "/contacts/"+contactID+"/tags", body, nil)
}

func (c *httpClient) RemoveTag(ctx context.Context, contactID, tag string) error {
	body := map[string][]string{"tags": {tag}}
	return c.do(ctx, http.MethodDelete, "/contacts/"+contactID+"/tags", body, nil)
}

func (c *httpClient) TriggerWorkflow(ctx context.Context, contactID, workflowName string) error {
	return c.do(ctx, http.MethodPost, "/workflows/"+workflowName+"/contacts/"+contactID, nil, nil)
}

func (c *httpClient) UpdateCustomField(ctx context.Context, contactID, key, value string) error {
	body := map[string]any{
		"customFields": []map[string]string{{"key": key, "value": value}},
	}
	return c.do(ctx, http.MethodPut, "/contacts/"+contactID, body, nil)
}
