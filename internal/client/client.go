// Package client provides an HTTP client for the visit-desk REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

// Client is an HTTP client for the visit-desk API. It implements
// visit.Source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ visit.Source = (*Client)(nil)

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is an error response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap lets callers match server error codes with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_visit":
		return visit.ErrInvalidVisit
	case "not_allowed":
		return visit.ErrTransitionNotAllowed
	case "not_found":
		return visit.ErrNotFound
	default:
		return nil
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/health", nil, nil)
}

// FetchVisits returns one page of the viewer's visits grouped by day.
func (c *Client) FetchVisits(ctx context.Context, f visit.Filter) ([]visit.Group, error) {
	params := url.Values{}
	if !f.From.IsZero() {
		params.Set("from", f.From.Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		params.Set("to", f.To.Format(time.RFC3339))
	}
	if f.ListingID > 0 {
		params.Set("listing_id", strconv.FormatInt(f.ListingID, 10))
	}
	if f.Offset > 0 {
		params.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}

	path := "/api/visits"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var groups []visit.Group
	if err := c.send(ctx, http.MethodGet, path, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// FetchVisit returns a single visit.
func (c *Client) FetchVisit(ctx context.Context, id int64) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.send(ctx, http.MethodGet, fmt.Sprintf("/api/visits/%d", id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SubmitVisitAction asks the server to move a visit to status.
func (c *Client) SubmitVisitAction(ctx context.Context, id int64, status visit.Status) error {
	body := map[string]visit.Status{"status": status}
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/api/visits/%d", id), body, nil)
}

// WriteReview attaches a review to a completed visit.
func (c *Client) WriteReview(ctx context.Context, visitID int64, rating int, comment string) (*review.Review, error) {
	body := map[string]interface{}{"rating": rating, "comment": comment}
	var rv review.Review
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/visits/%d/review", visitID), body, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// FetchReview returns a review by ID.
func (c *Client) FetchReview(ctx context.Context, id int64) (*review.Review, error) {
	var rv review.Review
	if err := c.send(ctx, http.MethodGet, fmt.Sprintf("/api/reviews/%d", id), nil, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// ReplyToReview posts the listing owner's answer to a review.
func (c *Client) ReplyToReview(ctx context.Context, id int64, text string) (*review.Review, error) {
	body := map[string]string{"text": text}
	var rv review.Review
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/reviews/%d/reply", id), body, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// DeleteReview removes the caller's review.
func (c *Client) DeleteReview(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/reviews/%d", id), nil, nil)
}

// FetchReportCategories lists the reasons a review can be reported for.
func (c *Client) FetchReportCategories(ctx context.Context) ([]review.Category, error) {
	var cats []review.Category
	if err := c.send(ctx, http.MethodGet, "/api/report-categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// send performs a request with an optional JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: "server error: " + http.StatusText(resp.StatusCode)}
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Code = errResp.Code
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", wrapMalformed(err))
		}
	}

	return nil
}

// wrapMalformed makes a decode failure match visit.ErrMalformedData.
func wrapMalformed(err error) error {
	if errors.Is(err, visit.ErrMalformedData) {
		return err
	}
	return fmt.Errorf("%w: %v", visit.ErrMalformedData, err)
}
