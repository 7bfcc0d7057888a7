// Package google wraps the Google Places API (New) text search and place
// details endpoints.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// MaxResults is the Places page-size ceiling. There is no pagination.
	MaxResults = 20

	searchFieldMask  = "places.id,places.displayName,places.formattedAddress,places.rating,places.userRatingCount"
	detailsFieldMask = "id,displayName,formattedAddress,rating,userRatingCount,reviews"

	unnamed = "Unnamed"
)

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) ([]Listing, error)
	// GetDetails returns nil, nil when Places has no record for the id.
	GetDetails(ctx context.Context, placeID string) (*Listing, error)
}

// TextSearchRequest is a broad text query.
type TextSearchRequest struct {
	Query        string
	MaxResults   int
	LanguageCode string
}

// Listing is a business listing as seen by the search oracle.
type Listing struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Address         string     `json:"address,omitempty"`
	Rating          *float64   `json:"rating,omitempty"`
	UserRatingCount int        `json:"user_rating_count"`
	Feedback        []Feedback `json:"feedback,omitempty"`
}

// RatingOrZero returns the rating, treating a missing rating as 0.
func (l *Listing) RatingOrZero() float64 {
	if l.Rating == nil {
		return 0
	}
	return *l.Rating
}

// Latest returns the most recent public feedback entry, if any.
func (l *Listing) Latest() *Feedback {
	if len(l.Feedback) == 0 {
		return nil
	}
	return &l.Feedback[0]
}

// Feedback is one public review snippet attached to a listing.
type Feedback struct {
	Text         string   `json:"text"`
	Rating       *float64 `json:"rating,omitempty"`
	RelativeTime string   `json:"relative_time,omitempty"`
	AuthorName   string   `json:"author_name,omitempty"`
}

// SearchError reports a transport or auth failure talking to Places.
type SearchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("google: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("google: %s: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e *SearchError) Retryable() bool {
	switch e.StatusCode {
	case 0, http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds every request issued by the client. The installed
// http.Client is copied, never modified in place.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
	LanguageCode   string `json:"languageCode,omitempty"`
}

type textSearchResponse struct {
	Places []place `json:"places"`
}

type place struct {
	ID               string      `json:"id"`
	DisplayName      displayName `json:"displayName"`
	FormattedAddress string      `json:"formattedAddress"`
	Rating           *float64    `json:"rating"`
	UserRatingCount  int         `json:"userRatingCount"`
	Reviews          []review    `json:"reviews"`
}

type displayName struct {
	Text string `json:"text"`
}

type review struct {
	Text struct {
		Text string `json:"text"`
	} `json:"text"`
	Rating                         *float64 `json:"rating"`
	RelativePublishTimeDescription string   `json:"relativePublishTimeDescription"`
	AuthorAttribution              struct {
		DisplayName string `json:"displayName"`
	} `json:"authorAttribution"`
}

func (p place) toListing() Listing {
	name := p.DisplayName.Text
	if name == "" {
		name = unnamed
	}
	l := Listing{
		ID:              p.ID,
		Name:            name,
		Address:         p.FormattedAddress,
		Rating:          p.Rating,
		UserRatingCount: p.UserRatingCount,
	}
	for _, r := range p.Reviews {
		l.Feedback = append(l.Feedback, Feedback{
			Text:         r.Text.Text,
			Rating:       r.Rating,
			RelativeTime: r.RelativePublishTimeDescription,
			AuthorName:   r.AuthorAttribution.DisplayName,
		})
	}
	return l
}

func clampResults(n int) int {
	if n <= 0 || n > MaxResults {
		return MaxResults
	}
	return n
}

func (c *httpClient) TextSearch(ctx context.Context, sr TextSearchRequest) ([]Listing, error) {
	body, err := json.Marshal(textSearchRequest{
		TextQuery:      sr.Query,
		MaxResultCount: clampResults(sr.MaxResults),
		LanguageCode:   sr.LanguageCode,
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.do(req, searchFieldMask)
	if err != nil {
		return nil, &SearchError{Op: "text search", Err: err}
	}
	if status != http.StatusOK {
		return nil, &SearchError{Op: "text search", StatusCode: status, Err: eris.New(string(respBody))}
	}

	var result textSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &SearchError{Op: "text search", Err: eris.Wrap(err, "unmarshal response")}
	}

	listings := make([]Listing, 0, len(result.Places))
	for _, p := range result.Places {
		if p.ID == "" {
			continue
		}
		listings = append(listings, p.toListing())
	}
	return listings, nil
}

func (c *httpClient) GetDetails(ctx context.Context, placeID string) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	respBody, status, err := c.do(req, detailsFieldMask)
	if err != nil {
		return nil, &SearchError{Op: "place details", Err: err}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, &SearchError{Op: "place details", StatusCode: status, Err: eris.New(string(respBody))}
	}

	var p place
	if err := json.Unmarshal(respBody, &p); err != nil {
		return nil, &SearchError{Op: "place details", Err: eris.Wrap(err, "unmarshal response")}
	}
	if p.ID == "" {
		return nil, nil
	}

	l := p.toListing()
	return &l, nil
}

func (c *httpClient) do(req *http.Request, fieldMask string) ([]byte, int, error) {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "read response")
	}
	return respBody, resp.StatusCode, nil
}
