// Package upstream provides an HTTP client for the incident-management backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/incidents"
)

const (
	defaultTimeout = 10 * time.Second
	// maxPages bounds ListIncidents when the backend keeps reporting more data.
	maxPages = 50
	pageSize = 100
	// maxErrorBody limits how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Config holds backend client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the incident-management backend over its JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("upstream client: base url is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("upstream client: parse base url: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error %d: %s: %s", e.Status, e.PublicMessage(), e.Message)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.PublicMessage())
}

// PublicMessage returns the backend's error text, or a generic status line when absent.
func (e *APIError) PublicMessage() string {
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// MagicLinkResponse is the body of POST /auth.
type MagicLinkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RequestMagicLink asks the backend to send a login link to email.
func (c *Client) RequestMagicLink(ctx context.Context, email string) (*MagicLinkResponse, error) {
	var out MagicLinkResponse
	if err := c.do(ctx, http.MethodPost, "/auth", nil, map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IncidentPage is the body of GET /incidents.
type IncidentPage struct {
	Incidents []domain.Incident `json:"incidents"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PerPage   int               `json:"per_page"`
}

// GetIncidents fetches one page of incidents.
func (c *Client) GetIncidents(ctx context.Context, params incidents.ListParams, page, perPage int) (*IncidentPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Severity != "" {
		q.Set("severity", string(params.Severity))
	}
	if params.Brand != "" {
		q.Set("brand", params.Brand)
	}
	if params.Market != "" {
		q.Set("market", params.Market)
	}
	if !params.Since.IsZero() {
		q.Set("since", params.Since.UTC().Format(time.RFC3339))
	}
	if !params.Until.IsZero() {
		q.Set("until", params.Until.UTC().Format(time.RFC3339))
	}

	var out IncidentPage
	if err := c.do(ctx, http.MethodGet, "/incidents", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIncidents implements incidents.Source by walking every page.
func (c *Client) ListIncidents(ctx context.Context, params incidents.ListParams) ([]domain.Incident, error) {
	var all []domain.Incident
	for page := 1; page <= maxPages; page++ {
		p, err := c.GetIncidents(ctx, params, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Incidents...)

		if len(p.Incidents) == 0 || len(all) >= p.Total {
			break
		}
	}
	if all == nil {
		all = []domain.Incident{}
	}
	return all, nil
}

// ReportResponse is the body of POST /reports.
type ReportResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SubmitReport forwards an incident report.
func (c *Client) SubmitReport(ctx context.Context, report domain.IncidentReport) (*ReportResponse, error) {
	var out ReportResponse
	if err := c.do(ctx, http.MethodPost, "/reports", nil, report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the backend answers HTTP at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetIncidents(ctx, incidents.ListParams{}, 1, 1)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}
