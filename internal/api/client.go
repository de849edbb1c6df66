package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docflow/internal/documents"
)

// OwnerHeader carries the requesting owner's identifier on API calls.
const OwnerHeader = "X-Owner-ID"

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	ownerID string
	http    *http.Client
}

// NewClient constructs a client for the daemon at baseURL, acting as ownerID.
func NewClient(baseURL, ownerID string) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		ownerID: ownerID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Submit registers a new document.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*DocumentWithStages, error) {
	var out DocumentWithStages
	if err := c.do(ctx, http.MethodPost, "/api/documents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Documents lists the owner's documents.
func (c *Client) Documents(ctx context.Context) ([]DocumentWithStages, error) {
	var out DocumentListResponse
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// Document fetches one document with stages.
func (c *Client) Document(ctx context.Context, id int64) (*DocumentWithStages, error) {
	var out DocumentWithStages
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/%d", id), nil, nil)
}

// Reprocess restarts a document from the given stage.
func (c *Client) Reprocess(ctx context.Context, id int64, stage int) (*DocumentWithStages, error) {
	var out DocumentWithStages
	path := fmt.Sprintf("/api/documents/%d/reprocess", id)
	if err := c.do(ctx, http.MethodPost, path, ReprocessRequest{Stage: stage}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunStage executes one stage synchronously.
func (c *Client) RunStage(ctx context.Context, id int64, stage int) (*StageRecord, error) {
	var out StageRecord
	path := fmt.Sprintf("/api/documents/%d/process/%d", id, stage)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the owner's document counts.
func (c *Client) Stats(ctx context.Context) (documents.Stats, error) {
	var out StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return documents.Stats{}, err
	}
	return out.Stats, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ownerID != "" {
		req.Header.Set(OwnerHeader, c.ownerID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon api returned status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
