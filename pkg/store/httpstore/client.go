// Package httpstore implements the store API over the board backend's REST
// surface.
package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/buger/jsonparser"
	json "github.com/goccy/go-json"

	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/store"
)

// Client talks to the row store over HTTP. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ store.Store = (*Client)(nil)

// New returns a Client rooted at baseURL, authenticating with token when it
// is non-empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
	}
}

// SetHTTPClient swaps the underlying http.Client, mainly for tests and
// custom transports.
func (c *Client) SetHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) Query(ctx context.Context, table string, opts store.QueryOpts) ([]models.RawRecord, error) {
	q := url.Values{}
	for col, v := range opts.Filter {
		q.Set("filter."+col, fmt.Sprint(v))
	}
	for _, child := range opts.Expand {
		q.Add("expand", child)
	}
	if opts.OrderBy != "" {
		q.Set("order", opts.OrderBy)
		if opts.Desc {
			q.Set("desc", "true")
		}
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	endpoint := fmt.Sprintf("%s/tables/%s/records", c.baseURL, url.PathEscape(table))
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	body, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var rows []models.RawRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("httpstore: decoding %s rows: %w", table, err)
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, record models.RawRecord) (models.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/tables/%s/records", c.baseURL, url.PathEscape(table))
	return c.writeRow(ctx, http.MethodPost, endpoint, record)
}

func (c *Client) Update(ctx context.Context, table, id string, fields models.RawRecord) (models.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/tables/%s/records/%s", c.baseURL, url.PathEscape(table), url.PathEscape(id))
	return c.writeRow(ctx, http.MethodPatch, endpoint, fields)
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	endpoint := fmt.Sprintf("%s/tables/%s/records/%s", c.baseURL, url.PathEscape(table), url.PathEscape(id))
	_, err := c.request(ctx, http.MethodDelete, endpoint, nil)
	return err
}

func (c *Client) writeRow(ctx context.Context, method, endpoint string, payload models.RawRecord) (models.RawRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpstore: encoding payload: %w", err)
	}
	body, err := c.request(ctx, method, endpoint, data)
	if err != nil {
		return nil, err
	}
	var row models.RawRecord
	if len(body) > 0 {
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("httpstore: decoding row: %w", err)
		}
	}
	return row, nil
}

func (c *Client) request(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

// decodeError maps an error response to a structured store error. The field
// extraction avoids a full decode of arbitrary error bodies.
func decodeError(status int, body []byte) error {
	code := store.CodeInternal
	msg := http.StatusText(status)

	if raw, err := jsonparser.GetString(body, "code"); err == nil {
		switch store.Code(raw) {
		case store.CodeNotFound, store.CodeUniqueViolation, store.CodeUnauthorized:
			code = store.Code(raw)
		}
	} else {
		switch status {
		case http.StatusNotFound:
			code = store.CodeNotFound
		case http.StatusConflict:
			code = store.CodeUniqueViolation
		case http.StatusUnauthorized, http.StatusForbidden:
			code = store.CodeUnauthorized
		}
	}
	if m, err := jsonparser.GetString(body, "message"); err == nil && m != "" {
		msg = m
	}

	return &store.Error{Code: code, Message: msg}
}
