// Package remote implements ports.DataAccess over the REST surface served
// under /api/database.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-API-Key"

const maxErrorBody = 1 << 20

// Client talks to a remote data-access service. It never retries; callers
// decide which calls are safe to repeat.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client with its own http.Client bounded by timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, apiKey, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) ListDatabases(ctx context.Context) ([]dbadmin.DatabaseRecord, error) {
	var out []dbadmin.DatabaseRecord
	if err := c.do(ctx, http.MethodGet, "/api/database", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []dbadmin.DatabaseRecord{}
	}
	return out, nil
}

func (c *Client) GetDatabase(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	var out dbadmin.DatabaseRecord
	if err := c.do(ctx, http.MethodGet, databasePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	var out dbadmin.DatabaseRecord
	if err := c.do(ctx, http.MethodPost, "/api/database", rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	var out dbadmin.DatabaseRecord
	if err := c.do(ctx, http.MethodPut, databasePath(rec.ID), rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDatabase(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, databasePath(id), nil, nil)
}

func (c *Client) SyncMetadata(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, databasePath(id)+"/sync_metadata", nil, nil)
}

func (c *Client) AddSampleDataset(ctx context.Context) (*dbadmin.DatabaseRecord, error) {
	var out dbadmin.DatabaseRecord
	if err := c.do(ctx, http.MethodPost, "/api/database/sample_dataset", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func databasePath(id int64) string {
	return "/api/database/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dbadmin.Networkf(err, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &dbadmin.Error{Kind: dbadmin.KindUnknown, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

// decodeError maps a non-2xx response to a classified error. The body is
// the JSON form of dbadmin.Error when the server is ours; anything else is
// kept as the message.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload dbadmin.Error
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		payload.Message = strings.TrimSpace(string(data))
	}
	if payload.Message == "" {
		payload.Message = resp.Status
	}

	return &dbadmin.Error{
		Kind:    kindForStatus(resp.StatusCode),
		Message: payload.Message,
		Fields:  payload.Fields,
	}
}

func kindForStatus(status int) dbadmin.ErrorKind {
	switch status {
	case http.StatusNotFound:
		return dbadmin.KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return dbadmin.KindValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return dbadmin.KindNetwork
	}
	return dbadmin.KindUnknown
}
