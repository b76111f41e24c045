// Package kobo implements a client for the KoboToolbox REST API v2 and the
// document model for raw survey submissions.
package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted KoboToolbox instance used when no base URL
// is configured.
const DefaultBaseURL = "https://kf.kobotoolbox.org"

const maxErrorBodyBytes = 2048

// Form describes one form/asset accessible to the authenticated user.
type Form struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	AssetType     string `json:"asset_type"`
	HasDeployment bool   `json:"has_deployment"`
	URL           string `json:"url"`
}

// Page is one page of submission documents plus the provider-reported total.
type Page struct {
	Count   int        `json:"count"`
	Results []Document `json:"results"`
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Token is the KoboToolbox API token. Required.
	Token string
	// BaseURL overrides DefaultBaseURL when set.
	BaseURL string
	// HTTPClient overrides the default 30s-timeout client when set.
	HTTPClient *http.Client
	// Timeout applies to the default HTTP client only.
	Timeout time.Duration
}

// Client issues authenticated requests to the KoboToolbox API. It performs
// no retries; callers decide how to handle ErrTransient.
type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
}

// NewClient constructs a Client, failing when no token is provided.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("kobo: token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpc = &http.Client{Timeout: timeout}
	}
	return &Client{token: cfg.Token, baseURL: baseURL, httpc: httpc}, nil
}

// ListForms retrieves all forms/assets accessible to the authenticated user.
func (c *Client) ListForms(ctx context.Context) ([]Form, error) {
	var out struct {
		Results []Form `json:"results"`
	}
	if err := c.get(ctx, "/api/v2/assets/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// FormDetails retrieves metadata for a single form.
func (c *Client) FormDetails(ctx context.Context, formUID string) (Form, error) {
	var form Form
	if err := c.get(ctx, "/api/v2/assets/"+url.PathEscape(formUID)+"/", nil, &form); err != nil {
		return Form{}, err
	}
	return form, nil
}

// Submissions fetches one page of submissions for a form starting at the
// given offset. A limit of 0 leaves the page size to the provider.
func (c *Client) Submissions(ctx context.Context, formUID string, start, limit int) (Page, error) {
	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var page Page
	if err := c.get(ctx, "/api/v2/assets/"+url.PathEscape(formUID)+"/data/", params, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// SubmissionCount reports the total number of submissions for a form by
// probing the data endpoint with a single-record page.
func (c *Client) SubmissionCount(ctx context.Context, formUID string) (int, error) {
	params := url.Values{}
	params.Set("limit", "1")
	var page Page
	if err := c.get(ctx, "/api/v2/assets/"+url.PathEscape(formUID)+"/data/", params, &page); err != nil {
		return 0, err
	}
	return page.Count, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("kobo: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("request %s: %w", path, &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kobo: decode response: %w", err)
	}
	return nil
}
