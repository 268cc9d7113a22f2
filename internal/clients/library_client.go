// Package clients provides an HTTP client for the library API.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"infobooks/internal/catalog"
	"infobooks/internal/circulation"
	"infobooks/internal/domain"
	"infobooks/internal/httputil"
	"infobooks/internal/membership"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is returned for a non-2xx response whose code is not a known
// domain error.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
}

// LibraryClient calls the library HTTP API. Domain errors in responses are
// returned as the matching domain sentinels.
type LibraryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLibraryClient creates a client for the API served at baseURL. A nil
// httpClient uses a client with a 10 second timeout.
func NewLibraryClient(baseURL string, httpClient *http.Client) *LibraryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &LibraryClient{baseURL: baseURL, httpClient: httpClient}
}

// Register creates a member account.
func (c *LibraryClient) Register(ctx context.Context, req membership.Registration) (*membership.Profile, error) {
	var profile membership.Profile
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Login checks a member's credentials and returns their profile.
func (c *LibraryClient) Login(ctx context.Context, nationalID, password string) (*membership.Profile, error) {
	body := map[string]string{"national_id": nationalID, "password": password}
	var profile membership.Profile
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AddBook adds a title to the catalog.
func (c *LibraryClient) AddBook(ctx context.Context, req catalog.NewBook) (*catalog.BookView, error) {
	var book catalog.BookView
	if err := c.do(ctx, http.MethodPost, "/api/admin/books", req, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBook fetches one title with its copy counts.
func (c *LibraryClient) GetBook(ctx context.Context, id string) (*catalog.BookView, error) {
	var book catalog.BookView
	if err := c.do(ctx, http.MethodGet, "/api/books/"+url.PathEscape(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns the catalog in insertion order.
func (c *LibraryClient) ListBooks(ctx context.Context) ([]catalog.BookView, error) {
	var books []catalog.BookView
	if err := c.do(ctx, http.MethodGet, "/api/books", nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// Rent lends a copy of bookID to the member with nationalID.
func (c *LibraryClient) Rent(ctx context.Context, nationalID, bookID string) (*circulation.LoanReceipt, error) {
	body := map[string]string{"national_id": nationalID, "book_id": bookID}
	var receipt circulation.LoanReceipt
	if err := c.do(ctx, http.MethodPost, "/api/rent", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Return closes a loan held by the member with nationalID.
func (c *LibraryClient) Return(ctx context.Context, nationalID, loanID string) (*circulation.ReturnConfirmation, error) {
	body := map[string]string{"national_id": nationalID, "loan_id": loanID}
	var conf circulation.ReturnConfirmation
	if err := c.do(ctx, http.MethodPost, "/api/return", body, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Loans lists a member's loans with their display status.
func (c *LibraryClient) Loans(ctx context.Context, nationalID string) ([]circulation.LoanView, error) {
	var loans []circulation.LoanView
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(nationalID)+"/loans", nil, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// Stats returns the admin dashboard aggregates.
func (c *LibraryClient) Stats(ctx context.Context) (*circulation.Stats, error) {
	var stats circulation.Stats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *LibraryClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp httputil.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if err := domain.FromCode(errResp.Code); err != nil {
			return err
		}
		return &StatusError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
