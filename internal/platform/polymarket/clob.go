package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit Order
// Book) API. Only public, unauthenticated market-data endpoints are used.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, timeout time.Duration) *ClobClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchBook returns the current book snapshot for one token, used to seed the
// book cache at subscription start and to resync after a sequence gap.
func (c *ClobClient) FetchBook(ctx context.Context, tokenID string) (domain.BookSnapshot, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("polymarket/clob: fetch book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	if book.AssetID == "" {
		book.AssetID = tokenID
	}

	return book.ToDomainSnapshot(), nil
}

// FetchBooks returns snapshots for several tokens in one request.
func (c *ClobClient) FetchBooks(ctx context.Context, tokenIDs []string) ([]domain.BookSnapshot, error) {
	type bookParam struct {
		TokenID string `json:"token_id"`
	}
	reqBody := make([]bookParam, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		reqBody = append(reqBody, bookParam{TokenID: id})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: marshal books request: %w", err)
	}

	body, err := c.doPost(ctx, "/books", payload)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: fetch books: %w", err)
	}

	var books []APIBook
	if err := json.Unmarshal(body, &books); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode books: %w", err)
	}

	snaps := make([]domain.BookSnapshot, 0, len(books))
	for i := range books {
		snaps = append(snaps, books[i].ToDomainSnapshot())
	}
	return snaps, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *ClobClient) doPost(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *ClobClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
